// Package recipe contains the read-side recipe model used by the browse
// pipeline and the publish flow. The backend owns the write model; this
// service only projects what the REST API returns.
package recipe

import (
	"strings"
	"time"

	"github.com/sardegnaricette/v2/internal/domain/user"
)

// Recipe is the projection of a recipe as served by the backend list and
// detail endpoints. Immutable from the browse pipeline's point of view
// except for IsLiked and LikesCount, which a like toggle patches in place.
type Recipe struct {
	ID           int64         `json:"id"`
	Slug         string        `json:"slug,omitempty"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	FinalComment string        `json:"final_comment,omitempty"`
	Category     Category      `json:"category"`
	PrepTime     int           `json:"prep_time"`
	Author       user.User     `json:"author"`
	Image        string        `json:"image,omitempty"`
	GlutenFree   bool          `json:"gluten_free"`
	LactoseFree  bool          `json:"lactose_free"`
	IsSardinian  bool          `json:"is_sardinian"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at,omitempty"`
	IsPublished  bool          `json:"is_published"`
	Ingredients  []Ingredient  `json:"ingredients,omitempty"`
	Instructions []Instruction `json:"instructions,omitempty"`
	LikesCount   int           `json:"likes_count"`
	IsLiked      bool          `json:"is_liked"`
}

// Ingredient is a single ingredient line.
type Ingredient struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Instruction is a single preparation step.
type Instruction struct {
	ID    int64  `json:"id"`
	Step  string `json:"step"`
	Order int    `json:"order"`
}

// IsEditorial reports whether the recipe was published by the editorial
// staff account.
func (r Recipe) IsEditorial() bool {
	return r.Author.IsRedazione
}

// MatchesQuery reports whether the recipe matches a free-text query with a
// case-insensitive substring test against title, description and author
// name. Used only for client-side refinement of the placeholder set; real
// data is filtered by the backend.
func (r Recipe) MatchesQuery(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(r.Description), q) {
		return true
	}
	return strings.Contains(strings.ToLower(r.Author.Label()), q)
}
