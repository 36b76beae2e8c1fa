// Package story serves editorial stories from the backend and the
// hardcoded partner coupon catalog.
package story

import (
	"context"

	"go.uber.org/zap"

	"github.com/sardegnaricette/v2/internal/domain/story"
)

// StoryAPI is the slice of the backend client the service needs.
type StoryAPI interface {
	ListStories(ctx context.Context, search string) ([]story.Story, error)
	GetStory(ctx context.Context, id string) (*story.Story, error)
}

// Service exposes stories and coupons to the web layer.
type Service struct {
	api    StoryAPI
	logger *zap.Logger
}

// NewService creates a story service.
func NewService(api StoryAPI, logger *zap.Logger) *Service {
	return &Service{api: api, logger: logger}
}

// List returns published stories, optionally filtered by search.
func (s *Service) List(ctx context.Context, search string) ([]story.Story, error) {
	return s.api.ListStories(ctx, search)
}

// Get returns one story.
func (s *Service) Get(ctx context.Context, id string) (*story.Story, error) {
	return s.api.GetStory(ctx, id)
}

// Partner coupons are a fixed catalog; there is no redemption logic
// behind them.
var coupons = []story.Coupon{
	{
		ID:          "cantina-su-entu",
		Partner:     "Cantina Su'Entu",
		Code:        "SARDEGNA10",
		Description: "Sconto sui vini della cantina",
		Discount:    "10%",
	},
	{
		ID:          "panificio-porta",
		Partner:     "Panificio Porta",
		Code:        "CARASAU15",
		Description: "Sconto sul pane carasau artigianale",
		Discount:    "15%",
	},
	{
		ID:          "agriturismo-li-scopi",
		Partner:     "Agriturismo Li Scopi",
		Code:        "CENA20",
		Description: "Sconto sulla cena tipica sarda",
		Discount:    "20%",
	},
}

// Coupons returns the partner coupon catalog.
func (s *Service) Coupons() []story.Coupon {
	out := make([]story.Coupon, len(coupons))
	copy(out, coupons)
	return out
}
