package backend

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/sardegnaricette/v2/internal/domain/story"
)

type storyList []story.Story

func (l *storyList) UnmarshalJSON(data []byte) error {
	var plain []story.Story
	if err := json.Unmarshal(data, &plain); err == nil {
		*l = plain
		return nil
	}
	var paginated struct {
		Results []story.Story `json:"results"`
	}
	if err := json.Unmarshal(data, &paginated); err != nil {
		return err
	}
	*l = paginated.Results
	return nil
}

// ListStories fetches published editorial stories, optionally filtered by
// a search query.
func (c *Client) ListStories(ctx context.Context, search string) ([]story.Story, error) {
	var q url.Values
	if search != "" {
		q = url.Values{"search": []string{search}}
	}
	var list storyList
	if err := c.getJSON(ctx, "/stories/", q, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetStory fetches a single story by ID.
func (c *Client) GetStory(ctx context.Context, id string) (*story.Story, error) {
	var s story.Story
	if err := c.getJSON(ctx, "/stories/"+url.PathEscape(id)+"/", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
