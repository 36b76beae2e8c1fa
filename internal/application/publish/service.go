// Package publish implements the authenticated recipe CRUD flow: draft
// validation before any request leaves the process, then multipart
// create/update through the backend client.
package publish

import (
	"context"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sardegnaricette/v2/internal/domain/recipe"
	"github.com/sardegnaricette/v2/internal/infrastructure/http/backend"
	"github.com/sardegnaricette/v2/pkg/errors"
)

// Report reasons accepted by the backend.
const (
	ReasonInappropriate = "inappropriate_content"
	ReasonSpam          = "spam"
	ReasonCopyright     = "copyright"
	ReasonOther         = "other"
)

var validReasons = map[string]bool{
	ReasonInappropriate: true,
	ReasonSpam:          true,
	ReasonCopyright:     true,
	ReasonOther:         true,
}

// Draft is a recipe as submitted by the publish form. Category is the
// Italian display name; it is translated before transmission.
type Draft struct {
	Title        string   `validate:"required,max=255"`
	Description  string   `validate:"required"`
	Category     string   `validate:"required"`
	PrepTime     int      `validate:"gt=0"`
	GlutenFree   bool
	LactoseFree  bool
	IsSardinian  bool
	IsPublished  *bool
	FinalComment string
	Ingredients  []string
	Instructions []string
	ImageName    string
	Image        io.Reader
}

// RecipeWriteAPI is the slice of the backend client the service needs.
type RecipeWriteAPI interface {
	CreateRecipe(ctx context.Context, tokens backend.TokenSource, draft backend.RecipeDraft) (*recipe.Recipe, error)
	UpdateRecipe(ctx context.Context, tokens backend.TokenSource, slugOrID string, draft backend.RecipeDraft) (*recipe.Recipe, error)
	DeleteRecipe(ctx context.Context, tokens backend.TokenSource, slugOrID string) error
	ReportRecipe(ctx context.Context, tokens backend.TokenSource, slugOrID, reason, description string) error
	MyRecipes(ctx context.Context, tokens backend.TokenSource) ([]recipe.Recipe, error)
}

// Service validates drafts and forwards them to the backend.
type Service struct {
	api      RecipeWriteAPI
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates a publish service.
func NewService(api RecipeWriteAPI, logger *zap.Logger) *Service {
	return &Service{
		api:      api,
		validate: validator.New(),
		logger:   logger,
	}
}

// prepare validates the draft and converts it to the wire form. Blank
// ingredient and instruction lines are dropped before the count check so
// a form full of empty rows does not pass.
func (s *Service) prepare(d Draft) (backend.RecipeDraft, error) {
	if err := s.validate.Struct(d); err != nil {
		return backend.RecipeDraft{}, errors.NewValidationError(validationDetails(err))
	}

	ingredients := trimNonEmpty(d.Ingredients)
	if len(ingredients) == 0 {
		return backend.RecipeDraft{}, errors.NewValidationError("almeno un ingrediente è richiesto")
	}
	instructions := trimNonEmpty(d.Instructions)
	if len(instructions) == 0 {
		return backend.RecipeDraft{}, errors.NewValidationError("almeno un passaggio è richiesto")
	}

	category := recipe.CategoryFromDisplay(d.Category)
	if !category.Known() {
		return backend.RecipeDraft{}, errors.NewValidationError("categoria non valida: " + d.Category)
	}

	return backend.RecipeDraft{
		Title:        strings.TrimSpace(d.Title),
		Description:  strings.TrimSpace(d.Description),
		Category:     category,
		PrepTime:     d.PrepTime,
		GlutenFree:   d.GlutenFree,
		LactoseFree:  d.LactoseFree,
		IsSardinian:  d.IsSardinian,
		IsPublished:  d.IsPublished,
		FinalComment: strings.TrimSpace(d.FinalComment),
		Ingredients:  ingredients,
		Instructions: instructions,
		ImageName:    d.ImageName,
		Image:        d.Image,
	}, nil
}

// Create validates and publishes a new recipe.
func (s *Service) Create(ctx context.Context, tokens backend.TokenSource, d Draft) (*recipe.Recipe, error) {
	wire, err := s.prepare(d)
	if err != nil {
		return nil, err
	}
	created, err := s.api.CreateRecipe(ctx, tokens, wire)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Recipe created", zap.Int64("recipe_id", created.ID))
	return created, nil
}

// Update validates and patches an existing recipe.
func (s *Service) Update(ctx context.Context, tokens backend.TokenSource, slugOrID string, d Draft) (*recipe.Recipe, error) {
	wire, err := s.prepare(d)
	if err != nil {
		return nil, err
	}
	updated, err := s.api.UpdateRecipe(ctx, tokens, slugOrID, wire)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Recipe updated", zap.Int64("recipe_id", updated.ID))
	return updated, nil
}

// Delete removes a recipe owned by the current user.
func (s *Service) Delete(ctx context.Context, tokens backend.TokenSource, slugOrID string) error {
	return s.api.DeleteRecipe(ctx, tokens, slugOrID)
}

// Report flags a recipe for moderation. The reason must be one of the
// accepted values; the description is optional.
func (s *Service) Report(ctx context.Context, tokens backend.TokenSource, slugOrID, reason, description string) error {
	if !validReasons[reason] {
		return errors.NewValidationError("motivo della segnalazione non valido")
	}
	return s.api.ReportRecipe(ctx, tokens, slugOrID, reason, strings.TrimSpace(description))
}

// MyRecipes lists the current user's recipes, drafts included.
func (s *Service) MyRecipes(ctx context.Context, tokens backend.TokenSource) ([]recipe.Recipe, error) {
	return s.api.MyRecipes(ctx, tokens)
}

func trimNonEmpty(lines []string) []string {
	var out []string
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func validationDetails(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	var parts []string
	for _, fe := range verrs {
		switch fe.Field() {
		case "Title":
			parts = append(parts, "il titolo è richiesto")
		case "Description":
			parts = append(parts, "la descrizione è richiesta")
		case "Category":
			parts = append(parts, "la categoria è richiesta")
		case "PrepTime":
			parts = append(parts, "il tempo di preparazione deve essere positivo")
		default:
			parts = append(parts, strings.ToLower(fe.Field())+" non valido")
		}
	}
	return strings.Join(parts, ", ")
}
