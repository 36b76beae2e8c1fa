package webserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sardegnaricette/v2/internal/application/browse"
	"github.com/sardegnaricette/v2/internal/application/publish"
	"github.com/sardegnaricette/v2/internal/application/session"
	"github.com/sardegnaricette/v2/internal/application/story"
	"github.com/sardegnaricette/v2/internal/infrastructure/config"
	"github.com/sardegnaricette/v2/internal/infrastructure/http/backend"
	"github.com/sardegnaricette/v2/internal/infrastructure/monitoring"
	"github.com/sardegnaricette/v2/pkg/healthcheck"
)

// WebServer is the web frontend HTTP server.
type WebServer struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	router   *chi.Mux
	api      *backend.Client
	sessions *session.Registry
	publish  *publish.Service
	stories  *story.Service
	metrics  *monitoring.MetricsCollector
	health   *healthcheck.HealthCheck
	promReg  *prometheus.Registry

	mu      sync.Mutex
	engines map[string]*engineEntry

	limiters sync.Map // client IP -> *rate.Limiter
	done     chan struct{}
}

type engineEntry struct {
	engine   *browse.Engine
	lastSeen time.Time
}

// NewWebServer wires the frontend server.
func NewWebServer(
	cfg *config.Config,
	log *zap.Logger,
	api *backend.Client,
	sessions *session.Registry,
	publishSvc *publish.Service,
	storySvc *story.Service,
	metrics *monitoring.MetricsCollector,
	health *healthcheck.HealthCheck,
) (*WebServer, error) {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	if err := metrics.Register(promReg); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	s := &WebServer{
		config:   cfg,
		logger:   log,
		api:      api,
		sessions: sessions,
		publish:  publishSvc,
		stories:  storySvc,
		metrics:  metrics,
		health:   health,
		promReg:  promReg,
		engines:  make(map[string]*engineEntry),
		done:     make(chan struct{}),
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

func (s *WebServer) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.metricsMiddleware)
	if s.config.RateLimit.Enabled {
		r.Use(s.rateLimitMiddleware)
	}
	r.Use(s.sessionMiddleware)

	r.Get("/health", s.health.Handler())
	r.Get("/health/live", s.health.LivenessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.Post("/logout", s.handleLogout)
		r.Get("/session", s.handleSession)
	})

	r.Route("/recipes", func(r chi.Router) {
		r.Get("/", s.handleRecipeList)
		r.Post("/filters", s.handleSetFilters)
		r.Post("/retry", s.handleRetry)
		r.Get("/categories", s.handleCategories)
		r.Get("/{slugOrID}", s.handleRecipeDetail)

		// The like toggle is not behind requireAuth: the browse engine
		// refuses unauthenticated toggles itself, before any request
		// leaves the process.
		r.Post("/{slugOrID}/like", s.handleLike)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.handleCreateRecipe)
			r.Get("/mine/list", s.handleMyRecipes)
			r.Patch("/{slugOrID}", s.handleUpdateRecipe)
			r.Delete("/{slugOrID}", s.handleDeleteRecipe)
			r.Post("/{slugOrID}/report", s.handleReport)
		})
	})

	r.Get("/stories", s.handleStories)
	r.Get("/stories/{id}", s.handleStoryDetail)
	r.Get("/coupons", s.handleCoupons)

	return r
}

// engineFor returns the browse engine for the request's session, creating
// and starting it on first use. The initial fetch is synchronous so the
// first listing request never renders an unfetched page.
func (s *WebServer) engineFor(r *http.Request) *browse.Engine {
	sessionID := sessionIDFrom(r)
	manager := sessionFrom(r)

	s.mu.Lock()
	entry, ok := s.engines[sessionID]
	if ok {
		entry.lastSeen = time.Now()
		s.mu.Unlock()
		return entry.engine
	}
	engine := browse.NewEngine(s.api, manager, browse.Options{
		SearchDebounce:  s.config.Browse.SearchDebounce,
		EditorialPinned: s.config.Browse.EditorialPinned,
	}, s.logger, s.metrics)
	s.engines[sessionID] = &engineEntry{engine: engine, lastSeen: time.Now()}
	s.mu.Unlock()

	engine.Start(context.WithoutCancel(r.Context()))
	return engine
}

// dropEngine closes and removes a session's engine, canceling any pending
// debounce timer.
func (s *WebServer) dropEngine(sessionID string) {
	s.mu.Lock()
	entry, ok := s.engines[sessionID]
	if ok {
		delete(s.engines, sessionID)
	}
	s.mu.Unlock()
	if ok {
		entry.engine.Close()
	}
}

// evictEngines closes engines idle for longer than the session lifetime.
func (s *WebServer) evictEngines() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.config.Session.MaxAge)
			var stale []*engineEntry
			s.mu.Lock()
			for id, entry := range s.engines {
				if entry.lastSeen.Before(cutoff) {
					stale = append(stale, entry)
					delete(s.engines, id)
				}
			}
			s.mu.Unlock()
			for _, entry := range stale {
				entry.engine.Close()
			}
		}
	}
}

// Start begins serving. Blocks until the listener fails or is shut down.
func (s *WebServer) Start() error {
	go s.evictEngines()
	s.logger.Info("Web frontend listening",
		zap.String("addr", s.server.Addr),
		zap.String("backend", s.config.Backend.BaseURL),
	)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully and closes every engine.
func (s *WebServer) Shutdown(ctx context.Context) error {
	close(s.done)

	s.mu.Lock()
	entries := make([]*engineEntry, 0, len(s.engines))
	for _, entry := range s.engines {
		entries = append(entries, entry)
	}
	s.engines = make(map[string]*engineEntry)
	s.mu.Unlock()
	for _, entry := range entries {
		entry.engine.Close()
	}

	s.logger.Info("Shutting down web frontend")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *WebServer) Router() http.Handler {
	return s.router
}

func (s *WebServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.metrics.RecordHTTPRequest(r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

// rateLimitMiddleware applies a per-client token bucket.
func (s *WebServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := s.limiterFor(r.RemoteAddr)
		if !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "Troppe richieste. Riprova tra poco.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *WebServer) limiterFor(ip string) *rate.Limiter {
	if v, ok := s.limiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(s.config.RateLimit.RPS), s.config.RateLimit.Burst)
	actual, _ := s.limiters.LoadOrStore(ip, limiter)
	return actual.(*rate.Limiter)
}
