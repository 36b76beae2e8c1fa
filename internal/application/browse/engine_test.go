package browse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sardegnaricette/v2/internal/domain/recipe"
	"github.com/sardegnaricette/v2/internal/domain/user"
	"github.com/sardegnaricette/v2/internal/infrastructure/http/backend"
)

// fakeRecipeAPI records list calls and serves canned data.
type fakeRecipeAPI struct {
	mu      sync.Mutex
	recipes []recipe.Recipe
	listErr error
	queries []backend.RecipeQuery

	likeResult *backend.LikeResult
	likeErr    error
	likeCalls  int
	likeGate   chan struct{} // when set, ToggleLike blocks until closed
}

func (f *fakeRecipeAPI) ListRecipes(_ context.Context, _ backend.TokenSource, q backend.RecipeQuery) ([]recipe.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]recipe.Recipe, len(f.recipes))
	copy(out, f.recipes)
	return out, nil
}

func (f *fakeRecipeAPI) CategoryCounts(context.Context) (recipe.CountMap, error) {
	return recipe.CountMap{recipe.CategoryFish: 4}, nil
}

func (f *fakeRecipeAPI) ToggleLike(context.Context, backend.TokenSource, string) (*backend.LikeResult, error) {
	f.mu.Lock()
	f.likeCalls++
	gate := f.likeGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.likeErr != nil {
		return nil, f.likeErr
	}
	return f.likeResult, nil
}

func (f *fakeRecipeAPI) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeRecipeAPI) lastQuery() backend.RecipeQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

// fakeSession is an authenticated or anonymous token source.
type fakeSession struct {
	authenticated bool
}

func (f *fakeSession) AccessToken(context.Context) string             { return "tok" }
func (f *fakeSession) RefreshToken(context.Context) string            { return "" }
func (f *fakeSession) StoreAccessToken(context.Context, string) error { return nil }
func (f *fakeSession) ClearSession(context.Context)                   {}
func (f *fakeSession) IsAuthenticated() bool                          { return f.authenticated }

func someRecipes() []recipe.Recipe {
	return []recipe.Recipe{
		{ID: 1, Title: "Porceddu", Author: user.User{Name: "antonio"}},
		{ID: 2, Title: "Seadas", Author: user.User{Name: "staff", IsRedazione: true}},
		{ID: 3, Title: "Fregola", Author: user.User{Name: "lucia"}},
	}
}

func newTestEngine(api *fakeRecipeAPI, sess Session, debounce time.Duration) *Engine {
	return NewEngine(api, sess, Options{
		SearchDebounce:  debounce,
		EditorialPinned: 3,
	}, zap.NewNop(), nil)
}

func TestStartFetchesAndBecomesReady(t *testing.T) {
	api := &fakeRecipeAPI{recipes: someRecipes()}
	e := newTestEngine(api, &fakeSession{}, 20*time.Millisecond)
	defer e.Close()

	e.Start(context.Background())

	snap := e.Snapshot()
	assert.True(t, snap.Ready)
	assert.False(t, snap.Loading)
	assert.Len(t, snap.Recipes, 3)
	assert.Equal(t, 4, snap.Counts[recipe.CategoryFish])
	assert.Equal(t, 1, api.listCalls())
}

func TestSnapshotPinsEditorialFirst(t *testing.T) {
	api := &fakeRecipeAPI{recipes: someRecipes()}
	e := newTestEngine(api, &fakeSession{}, 20*time.Millisecond)
	defer e.Close()
	e.Start(context.Background())

	snap := e.Snapshot()
	require.Len(t, snap.Recipes, 3)
	assert.Equal(t, int64(2), snap.Recipes[0].ID)
	assert.Equal(t, int64(1), snap.Recipes[1].ID)
	assert.Equal(t, int64(3), snap.Recipes[2].ID)
}

func TestNonSearchFilterFetchesImmediately(t *testing.T) {
	api := &fakeRecipeAPI{recipes: someRecipes()}
	e := newTestEngine(api, &fakeSession{}, time.Hour)
	defer e.Close()
	e.Start(context.Background())

	category := recipe.DisplayFish
	e.SetFilter(Patch{SelectedCategory: &category})

	assert.Equal(t, 2, api.listCalls())
	assert.Equal(t, recipe.CategoryFish, api.lastQuery().Category)
}

func TestUnchangedPatchDoesNotFetch(t *testing.T) {
	api := &fakeRecipeAPI{recipes: someRecipes()}
	e := newTestEngine(api, &fakeSession{}, time.Hour)
	defer e.Close()
	e.Start(context.Background())

	empty := ""
	e.SetFilter(Patch{SearchText: &empty, SelectedCategory: &empty})

	assert.Equal(t, 1, api.listCalls())
}

func TestSearchDebounceCollapsesKeystrokes(t *testing.T) {
	api := &fakeRecipeAPI{recipes: someRecipes()}
	e := newTestEngine(api, &fakeSession{}, 30*time.Millisecond)
	defer e.Close()
	e.Start(context.Background())

	for _, text := range []string{"p", "pa", "pan", "pane"} {
		s := text
		e.SetFilter(Patch{SearchText: &s})
		time.Sleep(5 * time.Millisecond)
	}

	// Only the last keystroke's timer survives.
	assert.Eventually(t, func() bool {
		return api.listCalls() == 2
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 2, api.listCalls())
	assert.Equal(t, "pane", api.lastQuery().Search)
}

func TestFetchErrorKeepsPreviousListAndIsRetryable(t *testing.T) {
	api := &fakeRecipeAPI{recipes: someRecipes()}
	e := newTestEngine(api, &fakeSession{}, time.Hour)
	defer e.Close()
	e.Start(context.Background())

	api.mu.Lock()
	api.listErr = assert.AnError
	api.mu.Unlock()

	category := recipe.DisplayDesserts
	e.SetFilter(Patch{SelectedCategory: &category})

	snap := e.Snapshot()
	assert.Equal(t, "Impossibile caricare le ricette. Riprova più tardi.", snap.ErrorMessage)
	assert.Len(t, snap.Recipes, 3, "previous list is retained")

	api.mu.Lock()
	api.listErr = nil
	api.mu.Unlock()

	e.Retry(context.Background())
	snap = e.Snapshot()
	assert.Empty(t, snap.ErrorMessage)
}

func TestEmptyUnfilteredBackendFallsBackToPlaceholders(t *testing.T) {
	api := &fakeRecipeAPI{}
	e := newTestEngine(api, &fakeSession{}, time.Hour)
	defer e.Close()
	e.Start(context.Background())

	snap := e.Snapshot()
	assert.True(t, snap.Placeholders)
	require.Len(t, snap.Recipes, 5)
	for _, r := range snap.Recipes {
		assert.Negative(t, r.ID)
	}
}

func TestPlaceholdersAreFilteredClientSide(t *testing.T) {
	api := &fakeRecipeAPI{}
	e := newTestEngine(api, &fakeSession{}, 10*time.Millisecond)
	defer e.Close()
	e.Start(context.Background())

	search := "carasau"
	e.SetFilter(Patch{SearchText: &search})

	assert.Eventually(t, func() bool {
		snap := e.Snapshot()
		return len(snap.Recipes) == 1 && snap.Recipes[0].Title == "Pane Carasau"
	}, time.Second, 5*time.Millisecond)
}

func TestToggleLikeRequiresAuthentication(t *testing.T) {
	api := &fakeRecipeAPI{recipes: someRecipes()}
	e := newTestEngine(api, &fakeSession{authenticated: false}, time.Hour)
	defer e.Close()
	e.Start(context.Background())

	_, err := e.ToggleLike(context.Background(), 1, "1")

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, api.likeCalls, "no request leaves the process")
}

func TestToggleLikePatchesInPlace(t *testing.T) {
	api := &fakeRecipeAPI{
		recipes:    someRecipes(),
		likeResult: &backend.LikeResult{Liked: true, LikesCount: 8},
	}
	e := newTestEngine(api, &fakeSession{authenticated: true}, time.Hour)
	defer e.Close()
	e.Start(context.Background())

	res, err := e.ToggleLike(context.Background(), 3, "3")
	require.NoError(t, err)
	assert.True(t, res.Liked)

	snap := e.Snapshot()
	// Order unchanged, only the liked recipe's fields move.
	assert.Equal(t, int64(2), snap.Recipes[0].ID)
	for _, r := range snap.Recipes {
		if r.ID == 3 {
			assert.True(t, r.IsLiked)
			assert.Equal(t, 8, r.LikesCount)
		} else {
			assert.False(t, r.IsLiked)
		}
	}
}

func TestToggleLikeDeduplicatesInFlight(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeRecipeAPI{
		recipes:    someRecipes(),
		likeResult: &backend.LikeResult{Liked: true, LikesCount: 1},
		likeGate:   gate,
	}
	e := newTestEngine(api, &fakeSession{authenticated: true}, time.Hour)
	defer e.Close()
	e.Start(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := e.ToggleLike(context.Background(), 1, "1")
		done <- err
	}()

	assert.Eventually(t, func() bool { return e.IsLiking(1) }, time.Second, time.Millisecond)

	_, err := e.ToggleLike(context.Background(), 1, "1")
	assert.ErrorIs(t, err, ErrLikeInFlight)

	close(gate)
	require.NoError(t, <-done)
	assert.False(t, e.IsLiking(1))
	assert.Equal(t, 1, api.likeCalls)
}

func TestCloseCancelsPendingDebounce(t *testing.T) {
	api := &fakeRecipeAPI{recipes: someRecipes()}
	e := newTestEngine(api, &fakeSession{}, 30*time.Millisecond)
	e.Start(context.Background())

	search := "pane"
	e.SetFilter(Patch{SearchText: &search})
	e.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, api.listCalls())
}
