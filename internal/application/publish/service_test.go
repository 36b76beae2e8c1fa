package publish

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sardegnaricette/v2/internal/domain/recipe"
	"github.com/sardegnaricette/v2/internal/infrastructure/http/backend"
	apperrors "github.com/sardegnaricette/v2/pkg/errors"
)

type fakeWriteAPI struct {
	created *backend.RecipeDraft
	calls   int
}

func (f *fakeWriteAPI) CreateRecipe(_ context.Context, _ backend.TokenSource, d backend.RecipeDraft) (*recipe.Recipe, error) {
	f.calls++
	f.created = &d
	return &recipe.Recipe{ID: 42, Title: d.Title}, nil
}

func (f *fakeWriteAPI) UpdateRecipe(_ context.Context, _ backend.TokenSource, _ string, d backend.RecipeDraft) (*recipe.Recipe, error) {
	f.calls++
	f.created = &d
	return &recipe.Recipe{ID: 42, Title: d.Title}, nil
}

func (f *fakeWriteAPI) DeleteRecipe(context.Context, backend.TokenSource, string) error {
	f.calls++
	return nil
}

func (f *fakeWriteAPI) ReportRecipe(_ context.Context, _ backend.TokenSource, _, _, _ string) error {
	f.calls++
	return nil
}

func (f *fakeWriteAPI) MyRecipes(context.Context, backend.TokenSource) ([]recipe.Recipe, error) {
	return nil, nil
}

func validDraft() Draft {
	return Draft{
		Title:        "Malloreddus alla Campidanese",
		Description:  "Gnocchetti sardi con salsiccia",
		Category:     recipe.DisplayPastaDishes,
		PrepTime:     45,
		Ingredients:  []string{"malloreddus", "salsiccia", "pomodoro"},
		Instructions: []string{"Soffriggere", "Cuocere la pasta"},
	}
}

func TestCreateTranslatesCategory(t *testing.T) {
	api := &fakeWriteAPI{}
	s := NewService(api, zap.NewNop())

	created, err := s.Create(context.Background(), nil, validDraft())
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)

	require.NotNil(t, api.created)
	assert.Equal(t, recipe.CategoryPastaDishes, api.created.Category)
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Draft)
		message string
	}{
		{"missing title", func(d *Draft) { d.Title = "" }, "il titolo è richiesto"},
		{"missing description", func(d *Draft) { d.Description = "" }, "la descrizione è richiesta"},
		{"zero prep time", func(d *Draft) { d.PrepTime = 0 }, "il tempo di preparazione deve essere positivo"},
		{"unknown category", func(d *Draft) { d.Category = "Zuppe" }, "categoria non valida"},
		{"all ingredients blank", func(d *Draft) { d.Ingredients = []string{"  ", ""} }, "almeno un ingrediente"},
		{"no instructions", func(d *Draft) { d.Instructions = nil }, "almeno un passaggio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeWriteAPI{}
			s := NewService(api, zap.NewNop())

			d := validDraft()
			tt.mutate(&d)

			_, err := s.Create(context.Background(), nil, d)
			require.Error(t, err)
			assert.Zero(t, api.calls, "invalid drafts never reach the backend")

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.CodeValidationFailed, appErr.Code)
			assert.Contains(t, appErr.Details, tt.message)
		})
	}
}

func TestCreateDropsBlankLines(t *testing.T) {
	api := &fakeWriteAPI{}
	s := NewService(api, zap.NewNop())

	d := validDraft()
	d.Ingredients = []string{" malloreddus ", "", "  ", "salsiccia"}
	d.Instructions = []string{"Soffriggere", "   "}

	_, err := s.Create(context.Background(), nil, d)
	require.NoError(t, err)

	assert.Equal(t, []string{"malloreddus", "salsiccia"}, api.created.Ingredients)
	assert.Equal(t, []string{"Soffriggere"}, api.created.Instructions)
}

func TestReportValidatesReason(t *testing.T) {
	api := &fakeWriteAPI{}
	s := NewService(api, zap.NewNop())

	err := s.Report(context.Background(), nil, "porceddu", "because", "")
	require.Error(t, err)
	assert.Zero(t, api.calls)

	for _, reason := range []string{ReasonInappropriate, ReasonSpam, ReasonCopyright, ReasonOther} {
		require.NoError(t, s.Report(context.Background(), nil, "porceddu", reason, " nota "))
	}
	assert.Equal(t, 4, api.calls)
}
