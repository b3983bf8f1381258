package providers

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/haasonsaas/agentbridge/internal/agent"
	"github.com/haasonsaas/agentbridge/pkg/models"
)

func TestNewAnthropicProviderRequiresKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Error("empty API key should be rejected")
	}
}

func TestNewAnthropicProviderDefaults(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}
	if p.maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", p.maxRetries)
	}
	if p.defaultModel == "" {
		t.Error("default model should be set")
	}
	if p.Name() != "anthropic" {
		t.Errorf("Name = %q", p.Name())
	}
	if !p.SupportsTools() {
		t.Error("SupportsTools should be true")
	}
}

func TestConvertMessages(t *testing.T) {
	p, _ := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-test"})

	msgs, err := p.convertMessages([]agent.CompletionMessage{
		{Role: "system", Content: "ignored here"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
		{Role: "tool", Content: ""}, // empty tool message is dropped
	})
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (system skipped, empty dropped)", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("roles = %v, %v", msgs[0].Role, msgs[1].Role)
	}
}

func TestConvertMessagesInvalidToolInput(t *testing.T) {
	p, _ := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-test"})

	_, err := p.convertMessages([]agent.CompletionMessage{
		{
			Role: "assistant",
			ToolCalls: []models.ToolCall{
				{ID: "c1", Name: "t", Input: json.RawMessage(`{not json`)},
			},
		},
	})
	if err == nil {
		t.Error("invalid tool call input should fail conversion")
	}
}

func TestIsRetryableError(t *testing.T) {
	p, _ := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-test"})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit text", errors.New("429 too many requests"), true},
		{"server error", errors.New("503 service unavailable"), true},
		{"timeout", errors.New("context deadline exceeded"), true},
		{"connection", errors.New("connection refused"), true},
		{"auth", errors.New("401 invalid api key"), false},
		{"provider error retryable", &ProviderError{Provider: "anthropic", Status: 529}, true},
		{"provider error permanent", &ProviderError{Provider: "anthropic", Status: 400}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{
		Provider:  "anthropic",
		Model:     "claude-sonnet-4-20250514",
		Status:    429,
		Code:      "rate_limit_error",
		Message:   "rate limited",
		RequestID: "req-1",
	}
	got := err.Error()
	for _, part := range []string{"anthropic", "rate limited", "429", "req-1"} {
		if !strings.Contains(got, part) {
			t.Errorf("Error() = %q, missing %q", got, part)
		}
	}
	if !err.Retryable() {
		t.Error("429 should be retryable")
	}
}
