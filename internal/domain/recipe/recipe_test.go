package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sardegnaricette/v2/internal/domain/user"
)

func TestIsEditorial(t *testing.T) {
	editorial := Recipe{Author: user.User{Name: "staff", IsRedazione: true}}
	regular := Recipe{Author: user.User{Name: "maria"}}

	assert.True(t, editorial.IsEditorial())
	assert.False(t, regular.IsEditorial())
}

func TestMatchesQuery(t *testing.T) {
	r := Recipe{
		Title:       "Culurgiones Sardi",
		Description: "Pasta fresca ripiena di patate e menta",
		Author:      user.User{Name: "maria", DisplayName: "Redazione"},
	}

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"empty query matches", "", true},
		{"whitespace only matches", "   ", true},
		{"title substring", "culurgiones", true},
		{"title case insensitive", "CULURGIONES", true},
		{"description substring", "patate", true},
		{"author display name", "redazione", true},
		{"no match", "lasagne", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.MatchesQuery(tt.query))
		})
	}
}

func TestMatchesQueryUsesAuthorLabel(t *testing.T) {
	// Without a display name the plain name is searched instead.
	r := Recipe{Title: "Pane", Author: user.User{Name: "giuseppe"}}
	assert.True(t, r.MatchesQuery("giuseppe"))
	assert.False(t, r.MatchesQuery("redazione"))
}
