package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in a user's conversation history.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ToolCall represents an LLM's request to execute a tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the output of a tool execution. Failures are
// reported through IsError so the model can see and react to them.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// AuthToken is a user's platform OAuth token with identity fields.
type AuthToken struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Name         string    `json:"name,omitempty"`
	EnName       string    `json:"en_name,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the token's expiry has passed at the given instant.
func (t *AuthToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// UserProfile is the identity surface shown by the status command.
type UserProfile struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	EnName string `json:"en_name,omitempty"`
}
