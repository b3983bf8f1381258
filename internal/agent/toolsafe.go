package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// containedTool wraps a Tool so that failures stay inside the tool result.
// A returned error or a panic becomes a ToolResult with IsError set, which
// the model sees and can react to; the generation stream never aborts
// because one tool misbehaved.
type containedTool struct {
	inner  Tool
	logger *slog.Logger
}

// Contain wraps tool with fault containment. The returned tool never
// returns a non-nil error from Execute.
func Contain(tool Tool, logger *slog.Logger) Tool {
	if logger == nil {
		logger = slog.Default()
	}
	return &containedTool{inner: tool, logger: logger}
}

func (c *containedTool) Name() string            { return c.inner.Name() }
func (c *containedTool) Description() string     { return c.inner.Description() }
func (c *containedTool) Schema() json.RawMessage { return c.inner.Schema() }

func (c *containedTool) Execute(ctx context.Context, params json.RawMessage) (result *ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("tool panicked", "tool", c.inner.Name(), "panic", r)
			result = &ToolResult{
				Content: fmt.Sprintf("tool %s failed: %v", c.inner.Name(), r),
				IsError: true,
			}
			err = nil
		}
	}()

	result, execErr := c.inner.Execute(ctx, params)
	if execErr != nil {
		c.logger.Warn("tool execution failed", "tool", c.inner.Name(), "error", execErr)
		return &ToolResult{
			Content: fmt.Sprintf("tool %s failed: %s", c.inner.Name(), execErr.Error()),
			IsError: true,
		}, nil
	}
	if result == nil {
		result = &ToolResult{Content: ""}
	}
	return result, nil
}
