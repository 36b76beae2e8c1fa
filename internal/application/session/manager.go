// Package session owns the authentication session lifecycle: login,
// registration, logout, restore-and-validate, and the token persistence
// that the HTTP client's refresh path writes through. One Manager exists
// per browser session; it is the single writer of session storage.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/sardegnaricette/v2/internal/domain/user"
	"github.com/sardegnaricette/v2/internal/infrastructure/http/backend"
	"github.com/sardegnaricette/v2/internal/infrastructure/storage"
)

// State is the session lifecycle state.
type State int

const (
	// StateUnauthenticated means no valid session exists.
	StateUnauthenticated State = iota
	// StateAuthenticating means a login or register call is in flight.
	StateAuthenticating
	// StateAuthenticated means the session holds a validated user.
	StateAuthenticated
	// StateRefreshing means the HTTP layer is exchanging the refresh
	// token after a 401.
	StateRefreshing
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// AuthAPI is the slice of the backend client the manager needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*backend.Credentials, error)
	Register(ctx context.Context, email, name, password, confirm string) (*backend.Credentials, error)
	Me(ctx context.Context, tokens backend.TokenSource) (*user.User, error)
}

// Manager holds the authentication state for one browser session. The
// in-memory user is a cache of the persisted record; storage is the
// source of truth.
type Manager struct {
	api    AuthAPI
	store  storage.Store
	logger *zap.Logger

	mu      sync.RWMutex
	user    *user.User
	state   State
	loading bool
}

// NewManager creates a manager over the given three-key storage
// namespace. Loading stays true until Restore settles.
func NewManager(api AuthAPI, store storage.Store, logger *zap.Logger) *Manager {
	return &Manager{
		api:     api,
		store:   store,
		logger:  logger,
		state:   StateUnauthenticated,
		loading: true,
	}
}

// Login authenticates and persists the session. The returned error's
// user-facing message comes from the server payload when present.
func (m *Manager) Login(ctx context.Context, email, password string) (*user.User, error) {
	m.setState(StateAuthenticating)

	creds, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.setState(StateUnauthenticated)
		return nil, err
	}

	if err := m.persist(ctx, creds); err != nil {
		m.setState(StateUnauthenticated)
		return nil, err
	}
	return &creds.User, nil
}

// Register creates an account and persists the session with the same
// contract as Login. Server field errors arrive joined into one message.
func (m *Manager) Register(ctx context.Context, email, name, password, confirm string) (*user.User, error) {
	m.setState(StateAuthenticating)

	creds, err := m.api.Register(ctx, email, name, password, confirm)
	if err != nil {
		m.setState(StateUnauthenticated)
		return nil, err
	}

	if err := m.persist(ctx, creds); err != nil {
		m.setState(StateUnauthenticated)
		return nil, err
	}
	return &creds.User, nil
}

// persist writes the three session keys and sets the in-memory user.
func (m *Manager) persist(ctx context.Context, creds *backend.Credentials) error {
	userJSON, err := json.Marshal(creds.User)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, storage.KeyAccessToken, creds.AccessToken); err != nil {
		return err
	}
	if err := m.store.Set(ctx, storage.KeyRefreshToken, creds.RefreshToken); err != nil {
		return err
	}
	if err := m.store.Set(ctx, storage.KeyUser, string(userJSON)); err != nil {
		return err
	}

	u := creds.User
	m.mu.Lock()
	m.user = &u
	m.state = StateAuthenticated
	m.mu.Unlock()
	return nil
}

// Logout clears the persisted keys and in-memory user unconditionally.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.store.Delete(ctx, storage.KeyAccessToken, storage.KeyRefreshToken, storage.KeyUser); err != nil {
		m.logger.Warn("Failed to clear session storage", zap.Error(err))
	}
	m.mu.Lock()
	m.user = nil
	m.state = StateUnauthenticated
	m.mu.Unlock()
}

// Restore rebuilds the session from storage. When tokens and a user
// record exist, the in-memory user is set optimistically first, then
// validated against the backend; validation failure logs the session out.
// Loading settles exactly once, whatever the outcome.
func (m *Manager) Restore(ctx context.Context) {
	defer m.settle()

	access, errA := m.store.Get(ctx, storage.KeyAccessToken)
	userJSON, errU := m.store.Get(ctx, storage.KeyUser)
	if errA != nil || errU != nil || access == "" {
		return
	}

	var stored user.User
	if err := json.Unmarshal([]byte(userJSON), &stored); err != nil {
		m.logger.Warn("Corrupt persisted user record, clearing session", zap.Error(err))
		m.Logout(ctx)
		return
	}

	// Optimistic: show the stored user before validation so the UI never
	// flashes unauthenticated first.
	m.mu.Lock()
	m.user = &stored
	m.state = StateAuthenticated
	m.mu.Unlock()

	if exp, ok := tokenExpiry(access); ok {
		m.logger.Debug("Restoring session",
			zap.Int64("user_id", stored.ID),
			zap.Time("access_expires", exp),
		)
	}

	fresh, err := m.api.Me(ctx, m)
	if err != nil {
		m.logger.Info("Session validation failed, logging out", zap.Error(err))
		m.Logout(ctx)
		return
	}

	freshJSON, err := json.Marshal(fresh)
	if err == nil {
		if err := m.store.Set(ctx, storage.KeyUser, string(freshJSON)); err != nil {
			m.logger.Warn("Failed to persist refreshed user record", zap.Error(err))
		}
	}
	m.mu.Lock()
	m.user = fresh
	m.mu.Unlock()
}

func (m *Manager) settle() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
}

// Loading reports whether the restore validation has settled yet.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// User returns the current user, or nil when unauthenticated.
func (m *Manager) User() *user.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// IsAuthenticated reports whether a user is set.
func (m *Manager) IsAuthenticated() bool {
	return m.User() != nil
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// TokenExpiry returns the access token's expiry claim, when present.
func (m *Manager) TokenExpiry(ctx context.Context) (time.Time, bool) {
	access, err := m.store.Get(ctx, storage.KeyAccessToken)
	if err != nil || access == "" {
		return time.Time{}, false
	}
	return tokenExpiry(access)
}

// tokenExpiry decodes the exp claim without verifying the signature; the
// backend is the verifier, this is only for logs and diagnostics.
func tokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// backend.TokenSource implementation. The HTTP client calls these during
// its one-shot refresh; routing the writes through the manager keeps
// session storage single-writer.

// AccessToken returns the persisted access token, or "".
func (m *Manager) AccessToken(ctx context.Context) string {
	v, err := m.store.Get(ctx, storage.KeyAccessToken)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("Failed to read access token", zap.Error(err))
		}
		return ""
	}
	return v
}

// RefreshToken returns the persisted refresh token, or "". Its call marks
// the start of a refresh attempt.
func (m *Manager) RefreshToken(ctx context.Context) string {
	m.setState(StateRefreshing)
	v, err := m.store.Get(ctx, storage.KeyRefreshToken)
	if err != nil {
		return ""
	}
	return v
}

// StoreAccessToken persists the replacement access token after a
// successful refresh.
func (m *Manager) StoreAccessToken(ctx context.Context, access string) error {
	if err := m.store.Set(ctx, storage.KeyAccessToken, access); err != nil {
		return err
	}
	m.setState(StateAuthenticated)
	return nil
}

// ClearSession wipes the session after an irrecoverable refresh failure.
func (m *Manager) ClearSession(ctx context.Context) {
	m.Logout(ctx)
}

var _ backend.TokenSource = (*Manager)(nil)
