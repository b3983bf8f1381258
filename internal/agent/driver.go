package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentbridge/pkg/models"
)

// Event is one tagged item in the generation stream consumed by the
// orchestrator. Exactly one of the fields is meaningful:
// Chunk carries incremental response text, Step marks a completed
// generation step with its durable messages, Err terminates the stream
// with a failure, and Done terminates it successfully.
type Event struct {
	Chunk string
	Step  *StepResult
	Err   error
	Done  bool
}

// StepResult carries the messages produced by one completed step, in the
// order they must be appended to the conversation history.
type StepResult struct {
	Messages []*models.Message
}

// DriverConfig controls the generation loop.
type DriverConfig struct {
	// Model is the model identifier sent to the provider.
	Model string

	// ReasoningModels lists models that reject low temperatures; requests
	// for them are sent with temperature 1 instead of 0.
	ReasoningModels []string

	// MaxSteps caps the number of generate/execute rounds per turn.
	MaxSteps int

	// MaxTokens limits each individual completion.
	MaxTokens int
}

// Driver runs the multi-step generation loop: stream a completion, execute
// any requested tools, feed the results back, and repeat until the model
// answers without tool calls or the step cap is reached.
type Driver struct {
	provider LLMProvider
	config   DriverConfig
	logger   *slog.Logger
}

// NewDriver creates a generation driver backed by the given provider.
func NewDriver(provider LLMProvider, config DriverConfig, logger *slog.Logger) *Driver {
	if config.MaxSteps <= 0 {
		config.MaxSteps = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{provider: provider, config: config, logger: logger}
}

// Run starts a generation turn over the given history and tools. It
// returns immediately; events are delivered on the returned channel, which
// is closed after a terminal Err or Done event. The history slice is not
// mutated; completed steps are reported through StepResult so the caller
// owns persistence.
func (d *Driver) Run(ctx context.Context, system string, history []*models.Message, tools []Tool) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		d.run(ctx, system, history, tools, events)
	}()
	return events
}

func (d *Driver) run(ctx context.Context, system string, history []*models.Message, tools []Tool, events chan<- Event) {
	messages := toCompletionMessages(history)

	for step := 0; step < d.config.MaxSteps; step++ {
		text, toolCalls, err := d.streamStep(ctx, system, messages, tools, events)
		if err != nil {
			events <- Event{Err: err}
			return
		}

		assistant := &models.Message{
			ID:        uuid.NewString(),
			Role:      models.RoleAssistant,
			Content:   text,
			ToolCalls: toolCalls,
			CreatedAt: time.Now(),
		}

		if len(toolCalls) == 0 {
			events <- Event{Step: &StepResult{Messages: []*models.Message{assistant}}}
			events <- Event{Done: true}
			return
		}

		results := d.executeTools(ctx, toolCalls, tools)
		toolMsg := &models.Message{
			ID:          uuid.NewString(),
			Role:        models.RoleTool,
			ToolResults: results,
			CreatedAt:   time.Now(),
		}
		events <- Event{Step: &StepResult{Messages: []*models.Message{assistant, toolMsg}}}

		messages = append(messages, completionMessage(assistant), completionMessage(toolMsg))
	}

	events <- Event{Err: ErrMaxSteps}
}

// streamStep performs one streaming completion, forwarding text as Chunk
// events and collecting tool calls until the provider stream ends.
func (d *Driver) streamStep(ctx context.Context, system string, messages []CompletionMessage, tools []Tool, events chan<- Event) (string, []models.ToolCall, error) {
	req := &CompletionRequest{
		Model:       d.config.Model,
		System:      system,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   d.config.MaxTokens,
		Temperature: d.temperature(),
	}

	chunks, err := d.provider.Complete(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("starting completion: %w", err)
	}

	var text string
	var toolCalls []models.ToolCall
	for chunk := range chunks {
		switch {
		case chunk.Error != nil:
			return "", nil, chunk.Error
		case chunk.ToolCall != nil:
			toolCalls = append(toolCalls, *chunk.ToolCall)
		case chunk.Text != "":
			text += chunk.Text
			events <- Event{Chunk: chunk.Text}
		case chunk.Done:
			return text, toolCalls, nil
		}
	}
	if ctx.Err() != nil {
		return "", nil, ctx.Err()
	}
	return text, toolCalls, nil
}

// executeTools runs the requested tools sequentially. Tools are expected
// to be contained already, but a stray error is still folded into an
// error result rather than aborting the turn.
func (d *Driver) executeTools(ctx context.Context, calls []models.ToolCall, tools []Tool) []models.ToolResult {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}

	results := make([]models.ToolResult, 0, len(calls))
	for _, call := range calls {
		tool, ok := byName[call.Name]
		if !ok {
			results = append(results, models.ToolResult{
				ToolCallID: call.ID,
				Content:    fmt.Sprintf("unknown tool: %s", call.Name),
				IsError:    true,
			})
			continue
		}

		d.logger.Debug("executing tool", "tool", call.Name, "call_id", call.ID)
		res, err := tool.Execute(ctx, call.Input)
		if err != nil {
			results = append(results, models.ToolResult{
				ToolCallID: call.ID,
				Content:    fmt.Sprintf("tool %s failed: %s", call.Name, err.Error()),
				IsError:    true,
			})
			continue
		}
		results = append(results, models.ToolResult{
			ToolCallID: call.ID,
			Content:    res.Content,
			IsError:    res.IsError,
		})
	}
	return results
}

// temperature returns 0 for regular models and 1 for reasoning models,
// which reject deterministic sampling.
func (d *Driver) temperature() *float64 {
	t := 0.0
	for _, m := range d.config.ReasoningModels {
		if m == d.config.Model {
			t = 1.0
			break
		}
	}
	return &t
}

func toCompletionMessages(history []*models.Message) []CompletionMessage {
	out := make([]CompletionMessage, 0, len(history))
	for _, m := range history {
		out = append(out, completionMessage(m))
	}
	return out
}

func completionMessage(m *models.Message) CompletionMessage {
	return CompletionMessage{
		Role:        string(m.Role),
		Content:     m.Content,
		ToolCalls:   m.ToolCalls,
		ToolResults: m.ToolResults,
	}
}
