package browse

import "github.com/sardegnaricette/v2/internal/domain/recipe"

// EditorialFirst partitions the list into editorial-authored items, capped
// at maxPinned, followed by everything else. Relative order inside each
// partition is preserved and pinned items are not repeated. Pure function:
// the input slice is never mutated.
func EditorialFirst(recipes []recipe.Recipe, maxPinned int) []recipe.Recipe {
	if len(recipes) == 0 || maxPinned <= 0 {
		out := make([]recipe.Recipe, len(recipes))
		copy(out, recipes)
		return out
	}

	pinned := make([]recipe.Recipe, 0, maxPinned)
	rest := make([]recipe.Recipe, 0, len(recipes))

	for _, r := range recipes {
		if r.IsEditorial() && len(pinned) < maxPinned {
			pinned = append(pinned, r)
			continue
		}
		rest = append(rest, r)
	}

	return append(pinned, rest...)
}
