package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sardegnaricette/v2/internal/infrastructure/storage"
)

// Registry hands out one Manager per browser session ID. Each manager gets
// its own namespaced three-key view over the shared store; Restore runs
// once, when the manager is first created for a session.
type Registry struct {
	api    AuthAPI
	store  storage.Store
	logger *zap.Logger

	mu       sync.Mutex
	managers map[string]*managerEntry
	maxIdle  time.Duration
	done     chan struct{}
}

type managerEntry struct {
	manager  *Manager
	lastSeen time.Time
}

// NewRegistry creates a registry over the shared session store.
func NewRegistry(api AuthAPI, store storage.Store, maxIdle time.Duration, logger *zap.Logger) *Registry {
	r := &Registry{
		api:      api,
		store:    store,
		logger:   logger,
		managers: make(map[string]*managerEntry),
		maxIdle:  maxIdle,
		done:     make(chan struct{}),
	}
	go r.evictIdle()
	return r
}

// Get returns the manager for a session ID, creating and restoring it on
// first sight.
func (r *Registry) Get(ctx context.Context, sessionID string) *Manager {
	r.mu.Lock()
	entry, ok := r.managers[sessionID]
	if ok {
		entry.lastSeen = time.Now()
		r.mu.Unlock()
		return entry.manager
	}

	m := NewManager(r.api, storage.Namespaced(r.store, "session:"+sessionID), r.logger)
	r.managers[sessionID] = &managerEntry{manager: m, lastSeen: time.Now()}
	r.mu.Unlock()

	m.Restore(ctx)
	return m
}

// Drop removes a session's manager, e.g. after logout.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.managers, sessionID)
	r.mu.Unlock()
}

// Close stops the eviction loop.
func (r *Registry) Close() {
	close(r.done)
}

// evictIdle drops managers that have not been touched within maxIdle. The
// persisted keys stay in the store; a returning browser gets a fresh
// manager that restores from them.
func (r *Registry) evictIdle() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-r.maxIdle)
			r.mu.Lock()
			for id, entry := range r.managers {
				if entry.lastSeen.Before(cutoff) {
					delete(r.managers, id)
					r.logger.Debug("Evicted idle session manager", zap.String("session_id", id))
				}
			}
			r.mu.Unlock()
		}
	}
}
