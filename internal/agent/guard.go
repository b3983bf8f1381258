package agent

import (
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/agentbridge/internal/render"
)

// userSession tracks per-user turn state. A user may have at most one
// turn in flight; further requests are rejected until it finishes.
type userSession struct {
	running    bool
	lastActive time.Time
	renderer   *render.Throttle
}

// SessionRegistry enforces single-flight message handling per user and
// owns the per-session throttled renderer so that consecutive turns of
// the same user share one pacing window.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*userSession
	factory  func(userID string) *render.Throttle
	logger   *slog.Logger
}

// NewSessionRegistry creates a registry. The factory builds the throttled
// renderer for a session the first time the session is seen; it may be nil
// when callers never use Renderer.
func NewSessionRegistry(factory func(userID string) *render.Throttle, logger *slog.Logger) *SessionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRegistry{
		sessions: make(map[string]*userSession),
		factory:  factory,
		logger:   logger,
	}
}

// TryAcquire attempts to mark the user's session as running. It returns
// false when a turn is already in flight for this user. On success the
// caller must eventually call Release.
func (r *SessionRegistry) TryAcquire(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[userID]
	if s == nil {
		s = &userSession{}
		r.sessions[userID] = s
	}
	if s.running {
		return false
	}
	s.running = true
	s.lastActive = time.Now()
	return true
}

// Release marks the user's session as idle. Releasing a session that is
// not running is a no-op.
func (r *SessionRegistry) Release(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[userID]
	if s == nil {
		return
	}
	s.running = false
	s.lastActive = time.Now()
}

// Running reports whether the user currently has a turn in flight.
func (r *SessionRegistry) Running(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[userID]
	return s != nil && s.running
}

// Renderer returns the user's throttled renderer, creating it on first use.
func (r *SessionRegistry) Renderer(userID string) *render.Throttle {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[userID]
	if s == nil {
		s = &userSession{}
		r.sessions[userID] = s
	}
	if s.renderer == nil && r.factory != nil {
		s.renderer = r.factory(userID)
	}
	return s.renderer
}

// EvictIdle removes sessions that have been idle longer than olderThan.
// Running sessions are never evicted. It returns the number evicted.
func (r *SessionRegistry) EvictIdle(olderThan time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	evicted := 0
	for id, s := range r.sessions {
		if s.running || s.lastActive.After(cutoff) {
			continue
		}
		if s.renderer != nil {
			s.renderer.Cancel()
		}
		delete(r.sessions, id)
		evicted++
	}
	if evicted > 0 {
		r.logger.Debug("evicted idle sessions", "count", evicted)
	}
	return evicted
}
