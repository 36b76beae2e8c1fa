// Package webserver provides the web frontend HTTP server: cookie-bound
// browser sessions, the listing endpoints that drive the browse engine,
// and the auth/publish/story routes.
package webserver

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sardegnaricette/v2/internal/application/session"
)

type contextKey string

const (
	sessionIDKey contextKey = "session-id"
	managerKey   contextKey = "session-manager"
)

// sessionMiddleware binds a browser to its session manager. A missing or
// unknown cookie gets a fresh session ID; the manager restores persisted
// tokens the first time the session is seen.
func (s *WebServer) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := s.sessionIDFromCookie(r)
		if sessionID == "" {
			sessionID = uuid.NewString()
			s.setSessionCookie(w, sessionID)
		}

		manager := s.sessions.Get(r.Context(), sessionID)

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		ctx = context.WithValue(ctx, managerKey, manager)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *WebServer) sessionIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(s.config.Session.CookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}

func (s *WebServer) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Session.CookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.Session.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.config.Session.MaxAge),
		MaxAge:   int(s.config.Session.MaxAge.Seconds()),
	})
}

// sessionFrom returns the request's session manager. The session
// middleware guarantees it is set on every route.
func sessionFrom(r *http.Request) *session.Manager {
	m, _ := r.Context().Value(managerKey).(*session.Manager)
	return m
}

// sessionIDFrom returns the request's session ID.
func sessionIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(sessionIDKey).(string)
	return id
}
