package webserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sardegnaricette/v2/internal/application/browse"
	"github.com/sardegnaricette/v2/internal/application/publish"
	"github.com/sardegnaricette/v2/internal/domain/recipe"
	"github.com/sardegnaricette/v2/internal/domain/story"
	"github.com/sardegnaricette/v2/internal/infrastructure/http/backend"
	apperrors "github.com/sardegnaricette/v2/pkg/errors"
)

const loginPath = "/login"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeRedirectError signals the client to perform a hard redirect to the
// login entry point.
func writeRedirectError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error":    message,
		"redirect": loginPath,
	})
}

// respondError maps any error coming out of the application layer to a
// response, never leaking internals.
func (s *WebServer) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, backend.ErrSessionExpired) {
		writeRedirectError(w, "Sessione scaduta. Accedi di nuovo.")
		return
	}
	if errors.Is(err, browse.ErrNotAuthenticated) {
		writeRedirectError(w, "Accedi per continuare.")
		return
	}
	if errors.Is(err, browse.ErrLikeInFlight) {
		writeError(w, http.StatusConflict, "Operazione già in corso.")
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message := appErr.Details
		if message == "" {
			message = appErr.Message
		}
		writeError(w, appErr.StatusCode(), message)
		return
	}

	if apiErr, ok := backend.AsError(err); ok {
		status := apiErr.Status
		if status == 0 {
			status = http.StatusBadGateway
		}
		writeError(w, status, apiErr.Message)
		return
	}

	s.logger.Error("Unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, backend.MsgGenericError)
}

// requireAuth rejects requests without an authenticated session.
func (s *WebServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sessionFrom(r).IsAuthenticated() {
			writeRedirectError(w, "Accedi per continuare.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Auth handlers

type credentialsRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

func (s *WebServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, backend.MsgGenericError)
		return
	}

	u, err := sessionFrom(r).Login(r.Context(), req.Email, req.Password)
	if err != nil {
		message := backend.MsgLoginFailed
		if apiErr, ok := backend.AsError(err); ok && apiErr.Message != "" {
			message = apiErr.Message
		}
		status := http.StatusUnauthorized
		if apiErr, ok := backend.AsError(err); ok && apiErr.Kind == backend.KindNetwork {
			status = http.StatusBadGateway
			message = backend.MsgNetworkError
		}
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u})
}

func (s *WebServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, backend.MsgGenericError)
		return
	}

	u, err := sessionFrom(r).Register(r.Context(), req.Email, req.Name, req.Password, req.Password2)
	if err != nil {
		message := backend.MsgRegisterError
		status := http.StatusBadRequest
		if apiErr, ok := backend.AsError(err); ok {
			switch apiErr.Kind {
			case backend.KindNetwork:
				status = http.StatusBadGateway
				message = backend.MsgNetworkError
			case backend.KindValidation:
				message = apiErr.JoinedFieldErrors()
			default:
				if apiErr.Message != "" {
					message = apiErr.Message
				}
			}
		}
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": u})
}

func (s *WebServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r).Logout(r.Context())
	// The engine's listing carries per-user like flags; drop it so the
	// next request fetches an anonymous view.
	s.dropEngine(sessionIDFrom(r))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Disconnesso"})
}

func (s *WebServer) handleSession(w http.ResponseWriter, r *http.Request) {
	manager := sessionFrom(r)
	resp := map[string]interface{}{
		"authenticated": manager.IsAuthenticated(),
		"loading":       manager.Loading(),
		"state":         manager.State().String(),
	}
	if u := manager.User(); u != nil {
		resp["user"] = u
	}
	if exp, ok := manager.TokenExpiry(r.Context()); ok {
		resp["access_expires_at"] = exp.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Recipe listing handlers

type recipeView struct {
	ID              int64  `json:"id"`
	Slug            string `json:"slug,omitempty"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	CategoryDisplay string `json:"category_display"`
	PrepTime        int    `json:"prep_time"`
	Author          string `json:"author"`
	IsRedazione     bool   `json:"is_redazione"`
	Image           string `json:"image,omitempty"`
	GlutenFree      bool   `json:"gluten_free"`
	LactoseFree     bool   `json:"lactose_free"`
	IsSardinian     bool   `json:"is_sardinian"`
	CreatedAt       string `json:"created_at"`
	LikesCount      int    `json:"likes_count"`
	IsLiked         bool   `json:"is_liked"`
	Liking          bool   `json:"liking"`
}

func (s *WebServer) recipeViews(engine *browse.Engine, recipes []recipe.Recipe) []recipeView {
	views := make([]recipeView, 0, len(recipes))
	for _, r := range recipes {
		views = append(views, recipeView{
			ID:              r.ID,
			Slug:            r.Slug,
			Title:           r.Title,
			Description:     r.Description,
			Category:        string(r.Category),
			CategoryDisplay: r.Category.Display(),
			PrepTime:        r.PrepTime,
			Author:          r.Author.Label(),
			IsRedazione:     r.Author.IsRedazione,
			Image:           s.api.ResolveImageURL(r.Image),
			GlutenFree:      r.GlutenFree,
			LactoseFree:     r.LactoseFree,
			IsSardinian:     r.IsSardinian,
			CreatedAt:       r.CreatedAt.Format(time.RFC3339),
			LikesCount:      r.LikesCount,
			IsLiked:         r.IsLiked,
			Liking:          engine.IsLiking(r.ID),
		})
	}
	return views
}

func (s *WebServer) writeSnapshot(w http.ResponseWriter, engine *browse.Engine) {
	snap := engine.Snapshot()

	counts := make(map[string]int, len(snap.Counts))
	for c, n := range snap.Counts {
		counts[c.Display()] = n
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recipes":      s.recipeViews(engine, snap.Recipes),
		"counts":       counts,
		"loading":      snap.Loading,
		"searching":    snap.Searching,
		"placeholders": snap.Placeholders,
		"error":        snap.ErrorMessage,
		"filter": map[string]interface{}{
			"search":         snap.Filter.SearchText,
			"category":       snap.Filter.SelectedCategory,
			"gluten_free":    snap.Filter.GlutenFree,
			"lactose_free":   snap.Filter.LactoseFree,
			"is_sardinian":   snap.Filter.Sardinian,
			"redazione_only": snap.Filter.RedazioneOnly,
			"order_by":       string(snap.Filter.OrderBy),
		},
	})
}

// filterRequest carries a partial filter update; absent fields are left
// unchanged.
type filterRequest struct {
	Search        *string `json:"search"`
	Category      *string `json:"category"`
	GlutenFree    *bool   `json:"gluten_free"`
	LactoseFree   *bool   `json:"lactose_free"`
	IsSardinian   *bool   `json:"is_sardinian"`
	RedazioneOnly *bool   `json:"redazione_only"`
	OrderBy       *string `json:"order_by"`
}

func (f filterRequest) patch() browse.Patch {
	p := browse.Patch{
		SearchText:       f.Search,
		SelectedCategory: f.Category,
		GlutenFree:       f.GlutenFree,
		LactoseFree:      f.LactoseFree,
		Sardinian:        f.IsSardinian,
		RedazioneOnly:    f.RedazioneOnly,
	}
	if f.OrderBy != nil {
		order := browse.OrderNone
		if *f.OrderBy == string(browse.OrderMostLiked) || *f.OrderBy == "likes" {
			order = browse.OrderMostLiked
		}
		p.OrderBy = &order
	}
	return p
}

func (s *WebServer) handleRecipeList(w http.ResponseWriter, r *http.Request) {
	engine := s.engineFor(r)

	// Query parameters present on the URL apply as a filter patch, so a
	// shared or bookmarked URL lands on the right view.
	q := r.URL.Query()
	var req filterRequest
	if v, ok := queryString(q, "search"); ok {
		req.Search = &v
	}
	if v, ok := queryString(q, "category"); ok {
		req.Category = &v
	}
	if v, ok := queryBool(q, "gluten_free"); ok {
		req.GlutenFree = &v
	}
	if v, ok := queryBool(q, "lactose_free"); ok {
		req.LactoseFree = &v
	}
	if v, ok := queryBool(q, "is_sardinian"); ok {
		req.IsSardinian = &v
	}
	if v, ok := queryBool(q, "redazione_only"); ok {
		req.RedazioneOnly = &v
	}
	if v, ok := queryString(q, "order_by"); ok {
		req.OrderBy = &v
	}
	engine.SetFilter(req.patch())

	s.writeSnapshot(w, engine)
}

func (s *WebServer) handleSetFilters(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, backend.MsgGenericError)
		return
	}

	engine := s.engineFor(r)
	engine.SetFilter(req.patch())
	s.writeSnapshot(w, engine)
}

// handleRetry re-runs the current filter's fetch after a failed load.
func (s *WebServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	engine := s.engineFor(r)
	engine.Retry(r.Context())
	s.writeSnapshot(w, engine)
}

func (s *WebServer) handleCategories(w http.ResponseWriter, r *http.Request) {
	engine := s.engineFor(r)
	counts := engine.Counts()

	type categoryView struct {
		Value   string `json:"value"`
		Display string `json:"display"`
		Count   int    `json:"count"`
	}
	views := make([]categoryView, 0, 5)
	for _, c := range recipe.Categories() {
		views = append(views, categoryView{
			Value:   string(c),
			Display: c.Display(),
			Count:   counts[c],
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": views})
}

func (s *WebServer) handleRecipeDetail(w http.ResponseWriter, r *http.Request) {
	slugOrID := chi.URLParam(r, "slugOrID")
	rec, err := s.api.GetRecipe(r.Context(), sessionFrom(r), slugOrID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	rec.Image = s.api.ResolveImageURL(rec.Image)
	writeJSON(w, http.StatusOK, rec)
}

func (s *WebServer) handleLike(w http.ResponseWriter, r *http.Request) {
	slugOrID := chi.URLParam(r, "slugOrID")
	engine := s.engineFor(r)

	id, _ := strconv.ParseInt(slugOrID, 10, 64)
	if id == 0 {
		// Slug path: resolve the ID from the current listing so the
		// in-place patch can find the recipe.
		for _, rec := range engine.Snapshot().Recipes {
			if rec.Slug == slugOrID {
				id = rec.ID
				break
			}
		}
	}

	res, err := engine.ToggleLike(r.Context(), id, slugOrID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Publish handlers

const maxUploadSize = 10 << 20

func (s *WebServer) draftFromForm(r *http.Request) (publish.Draft, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return publish.Draft{}, apperrors.NewValidationError("modulo non valido")
	}

	prepTime, _ := strconv.Atoi(r.FormValue("prep_time"))
	draft := publish.Draft{
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		Category:     r.FormValue("category"),
		PrepTime:     prepTime,
		GlutenFree:   r.FormValue("gluten_free") == "true",
		LactoseFree:  r.FormValue("lactose_free") == "true",
		IsSardinian:  r.FormValue("is_sardinian") == "true",
		FinalComment: r.FormValue("final_comment"),
		Ingredients:  r.Form["ingredients"],
		Instructions: r.Form["instructions"],
	}
	if v := r.FormValue("is_published"); v != "" {
		published := v == "true"
		draft.IsPublished = &published
	}

	if file, header, err := r.FormFile("image"); err == nil {
		draft.Image = file
		draft.ImageName = header.Filename
	}
	return draft, nil
}

func (s *WebServer) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	draft, err := s.draftFromForm(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	created, err := s.publish.Create(r.Context(), sessionFrom(r), draft)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *WebServer) handleUpdateRecipe(w http.ResponseWriter, r *http.Request) {
	draft, err := s.draftFromForm(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	updated, err := s.publish.Update(r.Context(), sessionFrom(r), chi.URLParam(r, "slugOrID"), draft)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *WebServer) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := s.publish.Delete(r.Context(), sessionFrom(r), chi.URLParam(r, "slugOrID")); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Ricetta eliminata"})
}

func (s *WebServer) handleMyRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := s.publish.MyRecipes(r.Context(), sessionFrom(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	engine := s.engineFor(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recipes": s.recipeViews(engine, recipes),
	})
}

func (s *WebServer) handleReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason      string `json:"reason"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, backend.MsgGenericError)
		return
	}
	if err := s.publish.Report(r.Context(), sessionFrom(r), chi.URLParam(r, "slugOrID"), req.Reason, req.Description); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Segnalazione inviata"})
}

// Story and coupon handlers

func (s *WebServer) handleStories(w http.ResponseWriter, r *http.Request) {
	stories, err := s.stories.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	for i := range stories {
		stories[i].Image = s.api.ResolveImageURL(stories[i].Image)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stories": stories})
}

func (s *WebServer) handleStoryDetail(w http.ResponseWriter, r *http.Request) {
	st, err := s.stories.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	st.Image = s.api.ResolveImageURL(st.Image)
	writeJSON(w, http.StatusOK, st)
}

func (s *WebServer) handleCoupons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]story.Coupon{
		"coupons": s.stories.Coupons(),
	})
}

// Query helpers

func queryString(q map[string][]string, key string) (string, bool) {
	vs, ok := q[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func queryBool(q map[string][]string, key string) (bool, bool) {
	v, ok := queryString(q, key)
	if !ok {
		return false, false
	}
	return v == "true" || v == "1" || v == "yes", true
}
