package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sardegnaricette/v2/internal/domain/recipe"
)

// OrderBy values accepted by the listing endpoint.
const (
	OrderByNone      = ""
	OrderByMostLiked = "most_liked"
)

// RecipeQuery carries the non-default filter fields for the listing
// endpoint. Zero values are omitted from the request so an empty query
// means "no filter".
type RecipeQuery struct {
	Search        string
	Category      recipe.Category
	GlutenFree    bool
	LactoseFree   bool
	Sardinian     bool
	RedazioneOnly bool
	OrderBy       string
}

// Values encodes the query, omitting every field at its default.
func (q RecipeQuery) Values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" {
		v.Set("category", string(q.Category))
	}
	if q.GlutenFree {
		v.Set("gluten_free", "true")
	}
	if q.LactoseFree {
		v.Set("lactose_free", "true")
	}
	if q.Sardinian {
		v.Set("is_sardinian", "true")
	}
	if q.RedazioneOnly {
		v.Set("redazione_only", "true")
	}
	if q.OrderBy == OrderByMostLiked {
		v.Set("order_by", q.OrderBy)
	}
	return v
}

// recipeList tolerates both the paginated and the plain list response
// shapes.
type recipeList []recipe.Recipe

func (l *recipeList) UnmarshalJSON(data []byte) error {
	var plain []recipe.Recipe
	if err := json.Unmarshal(data, &plain); err == nil {
		*l = plain
		return nil
	}
	var paginated struct {
		Results []recipe.Recipe `json:"results"`
	}
	if err := json.Unmarshal(data, &paginated); err != nil {
		return err
	}
	*l = paginated.Results
	return nil
}

// ListRecipes fetches the recipe list for the given query. The token
// source may be nil for anonymous browsing; when present, the backend
// marks which recipes the user has liked.
func (c *Client) ListRecipes(ctx context.Context, tokens TokenSource, q RecipeQuery) ([]recipe.Recipe, error) {
	var list recipeList
	if err := c.getJSON(ctx, "/recipes/", q.Values(), tokens, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CategoryCounts returns the unfiltered per-category recipe counts.
func (c *Client) CategoryCounts(ctx context.Context) (recipe.CountMap, error) {
	var raw map[string]int
	if err := c.getJSON(ctx, "/recipes/category_counts/", nil, nil, &raw); err != nil {
		return nil, err
	}
	counts := make(recipe.CountMap, len(raw))
	for k, n := range raw {
		counts[recipe.Category(k)] = n
	}
	return counts, nil
}

// GetRecipe fetches a single recipe by numeric ID or slug.
func (c *Client) GetRecipe(ctx context.Context, tokens TokenSource, slugOrID string) (*recipe.Recipe, error) {
	var r recipe.Recipe
	if err := c.getJSON(ctx, "/recipes/"+url.PathEscape(slugOrID)+"/", nil, tokens, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// MyRecipes fetches the recipes authored by the current user, published or
// not.
func (c *Client) MyRecipes(ctx context.Context, tokens TokenSource) ([]recipe.Recipe, error) {
	var list recipeList
	if err := c.getJSON(ctx, "/recipes/my/", nil, tokens, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// LikeResult is the backend's answer to a like toggle.
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// ToggleLike adds or removes the current user's like on a recipe.
func (c *Client) ToggleLike(ctx context.Context, tokens TokenSource, slugOrID string) (*LikeResult, error) {
	var res LikeResult
	if err := c.postJSON(ctx, "/recipes/"+url.PathEscape(slugOrID)+"/like/", tokens, struct{}{}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReportRecipe flags a recipe for moderation.
func (c *Client) ReportRecipe(ctx context.Context, tokens TokenSource, slugOrID, reason, description string) error {
	body := map[string]string{
		"reason":      reason,
		"description": description,
	}
	return c.postJSON(ctx, "/recipes/"+url.PathEscape(slugOrID)+"/report/", tokens, body, nil)
}

// DeleteRecipe removes a recipe owned by the current user.
func (c *Client) DeleteRecipe(ctx context.Context, tokens TokenSource, slugOrID string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/recipes/" + url.PathEscape(slugOrID) + "/",
		tokens: tokens,
	}, nil)
}

// RecipeDraft is the multipart payload for creating or updating a recipe.
// Ingredients and instructions are repeated form fields; the image is
// optional.
type RecipeDraft struct {
	Title        string
	Description  string
	Category     recipe.Category
	PrepTime     int
	GlutenFree   bool
	LactoseFree  bool
	IsSardinian  bool
	IsPublished  *bool // only sent when set (update path)
	FinalComment string
	Ingredients  []string
	Instructions []string
	ImageName    string
	Image        io.Reader
}

func (d RecipeDraft) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"title":        d.Title,
		"description":  d.Description,
		"category":     string(d.Category),
		"prep_time":    strconv.Itoa(d.PrepTime),
		"gluten_free":  strconv.FormatBool(d.GlutenFree),
		"lactose_free": strconv.FormatBool(d.LactoseFree),
		"is_sardinian": strconv.FormatBool(d.IsSardinian),
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	if d.IsPublished != nil {
		if err := w.WriteField("is_published", strconv.FormatBool(*d.IsPublished)); err != nil {
			return nil, "", err
		}
	}
	if d.FinalComment != "" {
		if err := w.WriteField("final_comment", d.FinalComment); err != nil {
			return nil, "", err
		}
	}
	for _, ing := range d.Ingredients {
		if err := w.WriteField("ingredients", ing); err != nil {
			return nil, "", err
		}
	}
	for _, step := range d.Instructions {
		if err := w.WriteField("instructions", step); err != nil {
			return nil, "", err
		}
	}
	if d.Image != nil {
		name := d.ImageName
		if name == "" {
			name = "image"
		}
		part, err := w.CreateFormFile("image", name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, d.Image); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// CreateRecipe publishes a new recipe.
func (c *Client) CreateRecipe(ctx context.Context, tokens TokenSource, draft RecipeDraft) (*recipe.Recipe, error) {
	body, contentType, err := draft.encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode recipe form: %w", err)
	}
	var r recipe.Recipe
	if err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/recipes/",
		body:        body,
		contentType: contentType,
		tokens:      tokens,
	}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateRecipe patches an existing recipe.
func (c *Client) UpdateRecipe(ctx context.Context, tokens TokenSource, slugOrID string, draft RecipeDraft) (*recipe.Recipe, error) {
	body, contentType, err := draft.encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode recipe form: %w", err)
	}
	var r recipe.Recipe
	if err := c.do(ctx, request{
		method:      http.MethodPatch,
		path:        "/recipes/" + url.PathEscape(slugOrID) + "/",
		body:        body,
		contentType: contentType,
		tokens:      tokens,
	}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
