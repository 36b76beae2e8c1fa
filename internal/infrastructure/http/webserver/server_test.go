package webserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sardegnaricette/v2/internal/application/publish"
	"github.com/sardegnaricette/v2/internal/application/session"
	"github.com/sardegnaricette/v2/internal/application/story"
	"github.com/sardegnaricette/v2/internal/infrastructure/config"
	"github.com/sardegnaricette/v2/internal/infrastructure/http/backend"
	"github.com/sardegnaricette/v2/internal/infrastructure/monitoring"
	"github.com/sardegnaricette/v2/internal/infrastructure/storage"
	"github.com/sardegnaricette/v2/pkg/healthcheck"
)

// fakeBackend is an httptest server speaking the recipe API's dialect.
type fakeBackend struct {
	*httptest.Server
	likeHits int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "segreta" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Credenziali non valide"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"user": map[string]interface{}{"id": 7, "email": body["email"], "name": "Maria"},
			"tokens": map[string]string{
				"access":  "access-1",
				"refresh": "refresh-1",
			},
		})
	})
	mux.HandleFunc("/recipes/category_counts/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"Fish": 2, "Desserts": 1})
	})
	mux.HandleFunc("/recipes/1/like/", func(w http.ResponseWriter, r *http.Request) {
		fb.likeHits++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"liked": true, "likes_count": 5})
	})
	mux.HandleFunc("/recipes/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": 1, "title": "Fregola con Arselle", "category": "Fish", "author": map[string]interface{}{"id": 1, "name": "lucia"}},
			{"id": 2, "title": "Seadas", "category": "Desserts", "author": map[string]interface{}{"id": 2, "name": "staff", "is_redazione": true}},
		})
	})
	mux.HandleFunc("/stories/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{})
	})

	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)
	return fb
}

func newTestServer(t *testing.T, backendURL string) *WebServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Version = "test"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Backend.BaseURL = backendURL
	cfg.Backend.MediaBaseURL = backendURL
	cfg.Backend.Timeout = 5 * time.Second
	cfg.Session.CookieName = "saricette-session"
	cfg.Session.MaxAge = time.Hour
	cfg.Browse.SearchDebounce = 10 * time.Millisecond
	cfg.Browse.EditorialPinned = 3

	log := zap.NewNop()
	metrics := monitoring.NewMetricsCollector(log)
	api := backend.NewClient(cfg, log, metrics)
	store := storage.NewMemoryStore()
	sessions := session.NewRegistry(api, store, cfg.Session.MaxAge, log)
	t.Cleanup(sessions.Close)

	s, err := NewWebServer(
		cfg, log, api, sessions,
		publish.NewService(api, log),
		story.NewService(api, log),
		metrics,
		healthcheck.New(cfg.App.Version, log),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func doRequest(s *WebServer, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSessionCookieIssued(t *testing.T) {
	fb := newFakeBackend(t)
	s := newTestServer(t, fb.URL)

	rec := doRequest(s, http.MethodGet, "/auth/session", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["authenticated"])

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "saricette-session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLoginFlow(t *testing.T) {
	fb := newFakeBackend(t)
	s := newTestServer(t, fb.URL)

	rec := doRequest(s, http.MethodPost, "/auth/login", `{"email": "maria@example.it", "password": "segreta"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	body := decodeBody(t, rec)
	u := body["user"].(map[string]interface{})
	assert.Equal(t, "Maria", u["name"])

	rec = doRequest(s, http.MethodGet, "/auth/session", "", cookies)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "authenticated", body["state"])
}

func TestLoginFailureSurfacesServerMessage(t *testing.T) {
	fb := newFakeBackend(t)
	s := newTestServer(t, fb.URL)

	rec := doRequest(s, http.MethodPost, "/auth/login", `{"email": "maria@example.it", "password": "sbagliata"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Credenziali non valide", body["error"])
}

func TestRecipeListSnapshot(t *testing.T) {
	fb := newFakeBackend(t)
	s := newTestServer(t, fb.URL)

	rec := doRequest(s, http.MethodGet, "/recipes/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	recipes := body["recipes"].([]interface{})
	require.Len(t, recipes, 2)

	// Editorial recipe is pinned first and categories carry display names.
	first := recipes[0].(map[string]interface{})
	assert.Equal(t, "Seadas", first["title"])
	assert.Equal(t, "Dolci", first["category_display"])

	counts := body["counts"].(map[string]interface{})
	assert.Equal(t, float64(2), counts["Pesce"])
}

func TestUnauthenticatedLikeIsRefusedLocally(t *testing.T) {
	fb := newFakeBackend(t)
	s := newTestServer(t, fb.URL)

	rec := doRequest(s, http.MethodPost, "/recipes/1/like", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "/login", body["redirect"])
	assert.Zero(t, fb.likeHits, "no request reaches the backend")
}

func TestAuthenticatedLike(t *testing.T) {
	fb := newFakeBackend(t)
	s := newTestServer(t, fb.URL)

	login := doRequest(s, http.MethodPost, "/auth/login", `{"email": "maria@example.it", "password": "segreta"}`, nil)
	require.Equal(t, http.StatusOK, login.Code)
	cookies := login.Result().Cookies()

	rec := doRequest(s, http.MethodPost, "/recipes/1/like", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["liked"])
	assert.Equal(t, float64(5), body["likes_count"])
	assert.Equal(t, 1, fb.likeHits)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	fb := newFakeBackend(t)
	s := newTestServer(t, fb.URL)

	rec := doRequest(s, http.MethodDelete, "/recipes/porceddu", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(s, http.MethodPost, "/recipes/porceddu/report", `{"reason": "spam"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCoupons(t *testing.T) {
	fb := newFakeBackend(t)
	s := newTestServer(t, fb.URL)

	rec := doRequest(s, http.MethodGet, "/coupons", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	coupons := body["coupons"].([]interface{})
	assert.Len(t, coupons, 3)
}

func TestHealthEndpoints(t *testing.T) {
	fb := newFakeBackend(t)
	s := newTestServer(t, fb.URL)

	rec := doRequest(s, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
