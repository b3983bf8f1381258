package agent

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/agentbridge/pkg/models"
)

// LLMProvider defines the interface for streaming LLM backends.
//
// Implementations handle the specifics of a vendor API while presenting a
// unified streaming interface to the generation driver. Implementations must
// be safe for concurrent use; each Complete call owns an independent stream.
type LLMProvider interface {
	// Complete sends a prompt and returns a streaming response.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name.
	Name() string

	// SupportsTools returns whether the provider supports tool use.
	SupportsTools() bool
}

// CompletionRequest contains all parameters for one LLM completion call.
type CompletionRequest struct {
	// Model specifies which model to use. If empty, the provider's
	// default model is used.
	Model string `json:"model"`

	// System is the system prompt, handled separately from messages.
	System string `json:"system,omitempty"`

	// Messages contains the conversation history in chronological order.
	Messages []CompletionMessage `json:"messages"`

	// Tools defines the tools the model may request to execute.
	Tools []Tool `json:"-"`

	// MaxTokens limits the length of the generated response.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature, when set, is passed through to the backend verbatim.
	Temperature *float64 `json:"temperature,omitempty"`
}

// CompletionMessage represents a single message in a conversation.
// Role values: "user", "assistant", "tool".
type CompletionMessage struct {
	Role        string              `json:"role"`
	Content     string              `json:"content,omitempty"`
	ToolCalls   []models.ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
}

// CompletionChunk represents a single chunk in a streaming LLM response.
// Exactly one of Text, ToolCall, Done, or Error is meaningful per chunk.
type CompletionChunk struct {
	// Text contains partial response text, streamed incrementally.
	Text string `json:"text,omitempty"`

	// ToolCall contains a complete tool execution request.
	ToolCall *models.ToolCall `json:"tool_call,omitempty"`

	// Done is true when the stream has completed successfully.
	Done bool `json:"done,omitempty"`

	// Error contains any error that occurred; the stream terminates.
	Error error `json:"-"`
}

// Tool defines the interface for executable agent tools.
//
// Execute receives arguments matching Schema and returns the tool output.
// Tools handed to the driver are wrapped by Contain, so a misbehaving
// implementation cannot abort the generation stream.
type Tool interface {
	// Name returns the tool name for LLM function calling.
	Name() string

	// Description returns a natural language description of the tool.
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with the given JSON parameters.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult contains the output from a tool execution. Errors are
// communicated with IsError=true so the model can handle failures itself.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// ToolProvider is a dynamically discovered external source of tools,
// such as an MCP server bound to the user's credentials.
type ToolProvider interface {
	// Name identifies the provider for logging.
	Name() string

	// Tools lists the provider's currently available tools.
	Tools(ctx context.Context) ([]Tool, error)
}
