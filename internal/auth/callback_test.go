package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/agentbridge/pkg/models"
)

type fakeCompleter struct {
	tokens []*models.AuthToken
	err    error
}

func (f *fakeCompleter) CompleteLogin(_ context.Context, token *models.AuthToken) error {
	if f.err != nil {
		return f.err
	}
	f.tokens = append(f.tokens, token)
	return nil
}

func TestCallbackStoresToken(t *testing.T) {
	store := &fakeCompleter{}
	srv := httptest.NewServer(NewServer(store, nil).Handler())
	defer srv.Close()

	body := `{"user_id":"u1","access_token":"tok","refresh_token":"ref","name":"Ada","expires_in":3600}`
	resp, err := http.Post(srv.URL+"/auth/callback", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if len(store.tokens) != 1 {
		t.Fatalf("stored %d tokens, want 1", len(store.tokens))
	}
	tok := store.tokens[0]
	if tok.UserID != "u1" || tok.AccessToken != "tok" || tok.Name != "Ada" {
		t.Errorf("unexpected token: %+v", tok)
	}
	if until := time.Until(tok.ExpiresAt); until < 59*time.Minute || until > 61*time.Minute {
		t.Errorf("expiry %v away, want about an hour", until)
	}
}

func TestCallbackRejectsIncompletePayload(t *testing.T) {
	store := &fakeCompleter{}
	srv := httptest.NewServer(NewServer(store, nil).Handler())
	defer srv.Close()

	for _, body := range []string{
		`{"access_token":"tok","expires_in":3600}`,
		`{"user_id":"u1","expires_in":3600}`,
		`{"user_id":"u1","access_token":"tok"}`,
		`not json`,
	} {
		resp, err := http.Post(srv.URL+"/auth/callback", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
	if len(store.tokens) != 0 {
		t.Errorf("stored %d tokens, want 0", len(store.tokens))
	}
}

func TestCallbackMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(NewServer(&fakeCompleter{}, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/auth/callback")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestCallbackStoreFailure(t *testing.T) {
	store := &fakeCompleter{err: errors.New("redis down")}
	srv := httptest.NewServer(NewServer(store, nil).Handler())
	defer srv.Close()

	body := `{"user_id":"u1","access_token":"tok","expires_in":60}`
	resp, err := http.Post(srv.URL+"/auth/callback", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}
