// Package auth exposes the login-completion callback endpoint. The external
// OAuth flow redirects here after the user authorizes; the handler stores
// the token and wakes any turn blocked on the login gate.
package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/haasonsaas/agentbridge/pkg/models"
)

// LoginCompleter receives finished logins. Implemented by userctx.Store.
type LoginCompleter interface {
	CompleteLogin(ctx context.Context, token *models.AuthToken) error
}

// callbackPayload is the body posted by the OAuth bridge once it has
// exchanged the authorization code.
type callbackPayload struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Name         string `json:"name"`
	EnName       string `json:"en_name"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Server serves the login callback endpoint.
type Server struct {
	store  LoginCompleter
	logger *slog.Logger
}

// NewServer creates the callback server.
func NewServer(store LoginCompleter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, logger: logger}
}

// Handler returns the HTTP handler, mounted at /auth/callback.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/callback", s.handleCallback)
	return mux
}

// Run serves the callback endpoint until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("auth callback listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload callbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if payload.UserID == "" || payload.AccessToken == "" || payload.ExpiresIn <= 0 {
		http.Error(w, "user_id, access_token, and expires_in are required", http.StatusBadRequest)
		return
	}

	token := &models.AuthToken{
		UserID:       payload.UserID,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		Name:         payload.Name,
		EnName:       payload.EnName,
		ExpiresAt:    time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}
	if err := s.store.CompleteLogin(r.Context(), token); err != nil {
		s.logger.Error("storing login failed", "user", payload.UserID, "error", err)
		http.Error(w, "storing login failed", http.StatusInternalServerError)
		return
	}

	s.logger.Info("login callback accepted", "user", payload.UserID)
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ok":true}`))
}
