// Package browse implements the recipe listing pipeline: filter state,
// debounced search scheduling, editorial-first ordering, category counts
// and like toggling. It is the read-side counterpart of the publish flow.
package browse

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sardegnaricette/v2/internal/domain/recipe"
	"github.com/sardegnaricette/v2/internal/infrastructure/http/backend"
	"github.com/sardegnaricette/v2/internal/infrastructure/monitoring"
)

// OrderBy selects the listing order.
type OrderBy string

const (
	// OrderNone keeps the backend's default ordering (featured first,
	// newest first).
	OrderNone OrderBy = ""
	// OrderMostLiked sorts by like count.
	OrderMostLiked OrderBy = "most_liked"
)

// ErrNotAuthenticated is returned by ToggleLike before any request is sent
// when no user is signed in.
var ErrNotAuthenticated = errors.New("browse: not authenticated")

// ErrLikeInFlight is returned when a like for the same recipe is already
// being processed.
var ErrLikeInFlight = errors.New("browse: like already in flight")

// FilterState drives every fetch. Zero value means "no filter".
type FilterState struct {
	SearchText       string
	SelectedCategory string // Italian display name, or ""
	GlutenFree       bool
	LactoseFree      bool
	Sardinian        bool
	RedazioneOnly    bool
	OrderBy          OrderBy
}

// IsEmpty reports whether every field is at its default.
func (f FilterState) IsEmpty() bool {
	return f == FilterState{}
}

// Query translates the filter state into backend query parameters,
// omitting defaults and mapping the display category to the backend enum.
func (f FilterState) Query() backend.RecipeQuery {
	q := backend.RecipeQuery{
		Search:        f.SearchText,
		GlutenFree:    f.GlutenFree,
		LactoseFree:   f.LactoseFree,
		Sardinian:     f.Sardinian,
		RedazioneOnly: f.RedazioneOnly,
		OrderBy:       string(f.OrderBy),
	}
	if f.SelectedCategory != "" {
		q.Category = recipe.CategoryFromDisplay(f.SelectedCategory)
	}
	return q
}

// Patch is a partial filter update; nil fields are left unchanged.
type Patch struct {
	SearchText       *string
	SelectedCategory *string
	GlutenFree       *bool
	LactoseFree      *bool
	Sardinian        *bool
	RedazioneOnly    *bool
	OrderBy          *OrderBy
}

// apply merges the patch and reports whether anything changed and whether
// the change was search text only.
func (p Patch) apply(f *FilterState) (changed, searchOnly bool) {
	searchOnly = true
	set := func(dirty, isSearch bool) {
		if dirty {
			changed = true
			if !isSearch {
				searchOnly = false
			}
		}
	}
	if p.SearchText != nil {
		set(f.SearchText != *p.SearchText, true)
		f.SearchText = *p.SearchText
	}
	if p.SelectedCategory != nil {
		set(f.SelectedCategory != *p.SelectedCategory, false)
		f.SelectedCategory = *p.SelectedCategory
	}
	if p.GlutenFree != nil {
		set(f.GlutenFree != *p.GlutenFree, false)
		f.GlutenFree = *p.GlutenFree
	}
	if p.LactoseFree != nil {
		set(f.LactoseFree != *p.LactoseFree, false)
		f.LactoseFree = *p.LactoseFree
	}
	if p.Sardinian != nil {
		set(f.Sardinian != *p.Sardinian, false)
		f.Sardinian = *p.Sardinian
	}
	if p.RedazioneOnly != nil {
		set(f.RedazioneOnly != *p.RedazioneOnly, false)
		f.RedazioneOnly = *p.RedazioneOnly
	}
	if p.OrderBy != nil {
		set(f.OrderBy != *p.OrderBy, false)
		f.OrderBy = *p.OrderBy
	}
	return changed, changed && searchOnly
}

// RecipeAPI is the slice of the backend client the engine needs.
type RecipeAPI interface {
	ListRecipes(ctx context.Context, tokens backend.TokenSource, q backend.RecipeQuery) ([]recipe.Recipe, error)
	CategoryCounts(ctx context.Context) (recipe.CountMap, error)
	ToggleLike(ctx context.Context, tokens backend.TokenSource, slugOrID string) (*backend.LikeResult, error)
}

// Session is the read-only view of the auth session the engine needs: the
// bearer token source and whether a user is signed in. The engine never
// writes session storage.
type Session interface {
	backend.TokenSource
	IsAuthenticated() bool
}

// Options tunes the engine.
type Options struct {
	SearchDebounce  time.Duration
	EditorialPinned int
}

// Snapshot is the immutable view handed to the rendering layer. Recipes is
// already editorial-first ordered, or the filtered placeholder set when
// the backend is empty.
type Snapshot struct {
	Recipes      []recipe.Recipe
	Filter       FilterState
	Counts       recipe.CountMap
	Loading      bool // full-page indicator, first load only
	Searching    bool // lightweight indicator for silent refinements
	Ready        bool
	Placeholders bool
	ErrorMessage string // retryable fetch error, "" when none
}

// Engine owns the listing state for one browser session.
type Engine struct {
	api     RecipeAPI
	session Session
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
	opts    Options

	baseCtx context.Context

	mu           sync.Mutex
	filter       FilterState
	recipes      []recipe.Recipe
	counts       recipe.CountMap
	loading      bool
	searching    bool
	ready        bool
	placeholders bool
	errMsg       string
	timer        *time.Timer
	liking       map[int64]struct{}
	closed       bool
}

// NewEngine creates an engine. Call Start once before SetFilter.
func NewEngine(api RecipeAPI, sess Session, opts Options, logger *zap.Logger, metrics *monitoring.MetricsCollector) *Engine {
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = 650 * time.Millisecond
	}
	if opts.EditorialPinned <= 0 {
		opts.EditorialPinned = 3
	}
	return &Engine{
		api:     api,
		session: sess,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		counts:  recipe.ZeroCounts(),
		liking:  make(map[int64]struct{}),
	}
}

// Start performs the initial non-silent fetch and loads category counts.
// Debounced silent fetches are gated until this first fetch settles.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.baseCtx = ctx
	e.loading = true
	filter := e.filter
	e.mu.Unlock()

	// Counts are decorative and independent of filters; a failure leaves
	// the zero map in place.
	if counts, err := e.api.CategoryCounts(ctx); err == nil {
		e.mu.Lock()
		e.counts = counts
		e.mu.Unlock()
	} else {
		e.logger.Warn("Category counts unavailable", zap.Error(err))
	}

	e.fetch(ctx, filter, "initial", false)

	e.mu.Lock()
	e.ready = true
	e.mu.Unlock()
}

// SetFilter merges a partial filter update and schedules the matching
// fetch: search text changes debounce, anything else fetches immediately.
func (e *Engine) SetFilter(patch Patch) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	changed, searchOnly := patch.apply(&e.filter)
	if !changed {
		e.mu.Unlock()
		return
	}
	filter := e.filter
	ready := e.ready
	ctx := e.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}

	if searchOnly {
		if !ready {
			// The first load has not settled; it will pick up the
			// current filter when it fires.
			e.mu.Unlock()
			return
		}
		// A new keystroke cancels the previously scheduled fetch.
		if e.timer != nil {
			e.timer.Stop()
		}
		e.timer = time.AfterFunc(e.opts.SearchDebounce, func() {
			e.mu.Lock()
			current := e.filter
			closed := e.closed
			e.mu.Unlock()
			if closed {
				return
			}
			e.fetch(ctx, current, "search", true)
		})
		e.mu.Unlock()
		return
	}

	silent := ready
	e.mu.Unlock()
	trigger := "filter"
	if !ready {
		trigger = "initial"
	}
	e.fetch(ctx, filter, trigger, silent)
}

// Retry re-runs the fetch for the current filter after an error,
// non-silently.
func (e *Engine) Retry(ctx context.Context) {
	e.mu.Lock()
	filter := e.filter
	e.mu.Unlock()
	e.fetch(ctx, filter, "retry", false)
}

// fetch hits the backend and applies the result. On failure the previous
// list is retained and a retryable error message is surfaced. Responses
// apply in arrival order (last write wins).
func (e *Engine) fetch(ctx context.Context, filter FilterState, trigger string, silent bool) {
	e.mu.Lock()
	if silent {
		e.searching = true
	} else {
		e.loading = true
	}
	e.mu.Unlock()

	recipes, err := e.api.ListRecipes(ctx, e.session, filter.Query())

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = false
	e.searching = false

	if err != nil {
		e.errMsg = "Impossibile caricare le ricette. Riprova più tardi."
		if e.metrics != nil {
			e.metrics.RecordRecipeFetch(trigger, "failure")
		}
		e.logger.Warn("Recipe fetch failed",
			zap.String("trigger", trigger),
			zap.Error(err),
		)
		return
	}

	e.errMsg = ""
	if e.metrics != nil {
		e.metrics.RecordRecipeFetch(trigger, "success")
	}

	if len(recipes) == 0 && filter.IsEmpty() {
		// Empty backend, unfiltered query: fall back to the demo set.
		e.placeholders = true
		e.recipes = nil
		return
	}
	e.placeholders = false
	e.recipes = recipes
}

// Snapshot returns the current view: editorial-first ordered real data, or
// the client-filtered placeholder set.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Filter:       e.filter,
		Counts:       e.counts,
		Loading:      e.loading,
		Searching:    e.searching,
		Ready:        e.ready,
		Placeholders: e.placeholders,
		ErrorMessage: e.errMsg,
	}
	if e.placeholders {
		snap.Recipes = filterPlaceholders(e.filter)
		return snap
	}
	snap.Recipes = EditorialFirst(e.recipes, e.opts.EditorialPinned)
	return snap
}

// Counts returns the category count map.
func (e *Engine) Counts() recipe.CountMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts
}

// IsLiking reports whether a like for the recipe is in flight, so the
// control can be disabled.
func (e *Engine) IsLiking(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.liking[id]
	return ok
}

// ToggleLike toggles the current user's like on a recipe. Unauthenticated
// callers are refused before any request is sent. On success only the
// affected recipe's IsLiked and LikesCount change; order and the other
// recipes stay untouched.
func (e *Engine) ToggleLike(ctx context.Context, id int64, slugOrID string) (*backend.LikeResult, error) {
	if !e.session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	e.mu.Lock()
	if _, inFlight := e.liking[id]; inFlight {
		e.mu.Unlock()
		return nil, ErrLikeInFlight
	}
	e.liking[id] = struct{}{}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.liking, id)
		e.mu.Unlock()
	}()

	res, err := e.api.ToggleLike(ctx, e.session, slugOrID)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordLikeToggle("failure")
		}
		return nil, err
	}

	e.mu.Lock()
	for i := range e.recipes {
		if e.recipes[i].ID == id {
			e.recipes[i].IsLiked = res.Liked
			e.recipes[i].LikesCount = res.LikesCount
			break
		}
	}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordLikeToggle("success")
	}
	return res, nil
}

// Close cancels any pending debounce timer. The engine refuses further
// filter updates afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
