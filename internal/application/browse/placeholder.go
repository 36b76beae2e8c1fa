package browse

import (
	"time"

	"github.com/sardegnaricette/v2/internal/domain/recipe"
	"github.com/sardegnaricette/v2/internal/domain/user"
)

// Placeholder recipes shown when the backend has no recipes at all for an
// unfiltered query. Purely decorative: they are filtered client-side with
// the same predicate as real data but never sent to or merged with server
// state. Negative IDs keep them apart from anything the backend could
// return.
var placeholderRecipes = []recipe.Recipe{
	{
		ID:          -1,
		Title:       "Culurgiones Sardi",
		Description: "Pasta fresca ripiena di patate e menta",
		Category:    recipe.CategoryPastaDishes,
		PrepTime:    60,
		CreatedAt:   time.Date(2023, 10, 25, 0, 0, 0, 0, time.UTC),
		Author:      user.User{Name: "Maria"},
		IsSardinian: true,
		IsPublished: true,
	},
	{
		ID:          -2,
		Title:       "Pane Carasau",
		Description: "Il pane sardo tradizionale croccante",
		Category:    recipe.CategoryBreadPizza,
		PrepTime:    120,
		CreatedAt:   time.Date(2023, 10, 22, 0, 0, 0, 0, time.UTC),
		Author:      user.User{Name: "Giuseppe"},
		IsSardinian: true,
		IsPublished: true,
	},
	{
		ID:          -3,
		Title:       "Porceddu",
		Description: "Maialino da latte arrosto sardo",
		Category:    recipe.CategoryMeatPoultry,
		PrepTime:    180,
		CreatedAt:   time.Date(2023, 10, 20, 0, 0, 0, 0, time.UTC),
		Author:      user.User{Name: "Antonio"},
		IsSardinian: true,
		IsPublished: true,
	},
	{
		ID:          -4,
		Title:       "Seadas",
		Description: "Dolce fritto con formaggio e miele",
		Category:    recipe.CategoryDesserts,
		PrepTime:    45,
		CreatedAt:   time.Date(2023, 10, 18, 0, 0, 0, 0, time.UTC),
		Author:      user.User{Name: "Lucia"},
		IsSardinian: true,
		IsPublished: true,
	},
	{
		ID:          -5,
		Title:       "Bottarga di Muggine",
		Description: "Uova di muggine essiccate",
		Category:    recipe.CategoryFish,
		PrepTime:    30,
		CreatedAt:   time.Date(2023, 10, 15, 0, 0, 0, 0, time.UTC),
		Author:      user.User{Name: "Paolo"},
		IsSardinian: true,
		IsPublished: true,
	},
}

// filterPlaceholders applies the category and search predicate to the
// placeholder set.
func filterPlaceholders(f FilterState) []recipe.Recipe {
	category := recipe.Category("")
	if f.SelectedCategory != "" {
		category = recipe.CategoryFromDisplay(f.SelectedCategory)
	}

	var out []recipe.Recipe
	for _, r := range placeholderRecipes {
		if category != "" && r.Category != category {
			continue
		}
		if !r.MatchesQuery(f.SearchText) {
			continue
		}
		out = append(out, r)
	}
	return out
}
