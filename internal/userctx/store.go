// Package userctx maintains per-user conversation state: message history,
// auth tokens, login waiting, and the user's external tool providers.
package userctx

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/agentbridge/internal/agent"
	"github.com/haasonsaas/agentbridge/pkg/models"
)

// ErrNotLoggedIn is returned when an operation needs an auth token the
// user does not hold.
var ErrNotLoggedIn = errors.New("user is not logged in")

// TokenStore persists auth tokens keyed by user ID. Get returns
// (nil, nil) when no valid token exists.
type TokenStore interface {
	Get(ctx context.Context, userID string) (*models.AuthToken, error)
	Set(ctx context.Context, token *models.AuthToken) error
	Delete(ctx context.Context, userID string) error
}

// Store hands out per-user contexts, creating them lazily, and routes
// login completions to the waiting context.
type Store struct {
	mu       sync.Mutex
	contexts map[string]*Context
	tokens   TokenStore
	logger   *slog.Logger
}

// NewStore creates a context store backed by the given token store.
func NewStore(tokens TokenStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		contexts: make(map[string]*Context),
		tokens:   tokens,
		logger:   logger,
	}
}

// Get returns the user's context, creating it on first use.
func (s *Store) Get(userID string) agent.Context {
	return s.get(userID)
}

func (s *Store) get(userID string) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.contexts[userID]
	if c == nil {
		c = &Context{
			userID: userID,
			tokens: s.tokens,
			logger: s.logger,
		}
		s.contexts[userID] = c
	}
	return c
}

// CompleteLogin stores the token delivered by the auth callback and wakes
// any turn blocked on the login gate for that user.
func (s *Store) CompleteLogin(ctx context.Context, token *models.AuthToken) error {
	if err := s.tokens.Set(ctx, token); err != nil {
		return err
	}
	s.logger.Info("login completed", "user", token.UserID)
	s.get(token.UserID).notifyLogin()
	return nil
}

// Context is one user's conversation state. All methods are safe for
// concurrent use.
type Context struct {
	userID string
	tokens TokenStore
	logger *slog.Logger

	mu        sync.Mutex
	history   []*models.Message
	providers []agent.ToolProvider
	waiters   []chan struct{}
}

// History returns a snapshot of the conversation messages in order.
func (c *Context) History() []*models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*models.Message, len(c.history))
	copy(out, c.history)
	return out
}

// AddMessages appends messages to the conversation history.
func (c *Context) AddMessages(msgs ...*models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, msgs...)
}

// Clear discards the conversation history. Auth state is unaffected.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = nil
}

// IsLogin reports whether the user currently holds a valid token.
func (c *Context) IsLogin(ctx context.Context) bool {
	token, err := c.tokens.Get(ctx, c.userID)
	if err != nil {
		c.logger.Warn("token lookup failed", "user", c.userID, "error", err)
		return false
	}
	return token != nil && !token.Expired(time.Now())
}

// WaitLogin blocks until the user completes authorization, the timeout
// elapses, or ctx is cancelled. Timeout is reported as ErrLoginTimeout.
func (c *Context) WaitLogin(ctx context.Context, timeout time.Duration) error {
	if c.IsLogin(ctx) {
		return nil
	}

	c.mu.Lock()
	waiter := make(chan struct{})
	c.waiters = append(c.waiters, waiter)
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-waiter:
		return nil
	case <-timer.C:
		c.removeWaiter(waiter)
		return agent.ErrLoginTimeout
	case <-ctx.Done():
		c.removeWaiter(waiter)
		return ctx.Err()
	}
}

// UserInfo returns the profile embedded in the user's auth token.
func (c *Context) UserInfo(ctx context.Context) (*models.UserProfile, error) {
	token, err := c.tokens.Get(ctx, c.userID)
	if err != nil {
		return nil, err
	}
	if token == nil || token.Expired(time.Now()) {
		return nil, ErrNotLoggedIn
	}
	return &models.UserProfile{
		UserID: token.UserID,
		Name:   token.Name,
		EnName: token.EnName,
	}, nil
}

// RegisterToolProvider attaches an external tool source to this user.
func (c *Context) RegisterToolProvider(p agent.ToolProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.providers = append(c.providers, p)
}

// ToolProviders lists the user's tool sources.
func (c *Context) ToolProviders() []agent.ToolProvider {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]agent.ToolProvider, len(c.providers))
	copy(out, c.providers)
	return out
}

func (c *Context) notifyLogin() {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

func (c *Context) removeWaiter(waiter chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, w := range c.waiters {
		if w == waiter {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// MemoryTokenStore is an in-process TokenStore used in tests and when no
// Redis endpoint is configured.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.AuthToken
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]*models.AuthToken)}
}

func (m *MemoryTokenStore) Get(_ context.Context, userID string) (*models.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := m.tokens[userID]
	if token == nil {
		return nil, nil
	}
	if token.Expired(time.Now()) {
		delete(m.tokens, userID)
		return nil, nil
	}
	cp := *token
	return &cp, nil
}

func (m *MemoryTokenStore) Set(_ context.Context, token *models.AuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *token
	m.tokens[token.UserID] = &cp
	return nil
}

func (m *MemoryTokenStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tokens, userID)
	return nil
}
