package browse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sardegnaricette/v2/internal/domain/recipe"
	"github.com/sardegnaricette/v2/internal/domain/user"
)

func makeRecipes(editorialAt ...int) []recipe.Recipe {
	editorial := make(map[int]bool, len(editorialAt))
	for _, i := range editorialAt {
		editorial[i] = true
	}
	out := make([]recipe.Recipe, 12)
	for i := range out {
		out[i] = recipe.Recipe{
			ID:     int64(i + 1),
			Author: user.User{Name: "autore", IsRedazione: editorial[i]},
		}
	}
	return out
}

func ids(recipes []recipe.Recipe) []int64 {
	out := make([]int64, len(recipes))
	for i, r := range recipes {
		out[i] = r.ID
	}
	return out
}

func TestEditorialFirstPinsAtMostThree(t *testing.T) {
	// Twelve recipes, editorial at positions 2, 5, 8 and 11: the first
	// three move to the front, the fourth stays where the remaining order
	// puts it.
	in := makeRecipes(1, 4, 7, 10)

	out := EditorialFirst(in, 3)

	require.Len(t, out, 12)
	assert.Equal(t, []int64{2, 5, 8, 1, 3, 4, 6, 7, 9, 10, 11, 12}, ids(out))
	for i := 0; i < 3; i++ {
		assert.True(t, out[i].IsEditorial())
	}
	assert.True(t, out[10].IsEditorial(), "fourth editorial keeps its relative slot")
}

func TestEditorialFirstFewerThanCap(t *testing.T) {
	in := makeRecipes(5)
	out := EditorialFirst(in, 3)

	assert.Equal(t, []int64{6, 1, 2, 3, 4, 5, 7, 8, 9, 10, 11, 12}, ids(out))
}

func TestEditorialFirstNoEditorialKeepsOrder(t *testing.T) {
	in := makeRecipes()
	out := EditorialFirst(in, 3)
	assert.Equal(t, ids(in), ids(out))
}

func TestEditorialFirstDoesNotMutateInput(t *testing.T) {
	in := makeRecipes(3, 4, 5)
	before := ids(in)

	_ = EditorialFirst(in, 3)

	assert.Equal(t, before, ids(in))
}

func TestEditorialFirstZeroCap(t *testing.T) {
	in := makeRecipes(0, 1)
	out := EditorialFirst(in, 0)
	assert.Equal(t, ids(in), ids(out))
}

func TestEditorialFirstEmpty(t *testing.T) {
	assert.Empty(t, EditorialFirst(nil, 3))
}
