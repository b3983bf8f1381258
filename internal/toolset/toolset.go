// Package toolset assembles the per-turn tool set handed to the
// generation driver.
package toolset

import (
	"context"
	"log/slog"

	"github.com/haasonsaas/agentbridge/internal/agent"
	"github.com/haasonsaas/agentbridge/internal/tools/groupinfo"
	"github.com/haasonsaas/agentbridge/internal/tools/imagegen"
)

// Builder assembles tools for one turn. The set depends on the chat kind:
// user-scoped provider tools are offered only in direct chats, and the
// group metadata tool only in group chats. Every tool is wrapped with
// fault containment before it reaches the driver.
type Builder struct {
	image    *imagegen.Client
	uploader imagegen.Uploader
	editor   groupinfo.ChatEditor
	logger   *slog.Logger
}

// NewBuilder creates a tool set builder. image may be nil to disable the
// image tool; editor may be nil to disable the group tool.
func NewBuilder(image *imagegen.Client, uploader imagegen.Uploader, editor groupinfo.ChatEditor, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{image: image, uploader: uploader, editor: editor, logger: logger}
}

// BuildTools returns the tool set for a turn in chatID. A provider that
// fails to enumerate its tools is logged and skipped rather than failing
// the turn.
func (b *Builder) BuildTools(ctx context.Context, chatID string, isGroup bool, providers []agent.ToolProvider) []agent.Tool {
	var tools []agent.Tool

	// Provider tools carry user credentials, so they stay out of group
	// chats where other members could drive them.
	if !isGroup {
		for _, p := range providers {
			provided, err := p.Tools(ctx)
			if err != nil {
				b.logger.Warn("tool provider unavailable", "provider", p.Name(), "error", err)
				continue
			}
			tools = append(tools, provided...)
		}
	}

	if b.image != nil {
		tools = append(tools, imagegen.NewTool(b.image, b.uploader, b.logger))
	}

	if isGroup && b.editor != nil {
		tools = append(tools, groupinfo.NewTool(chatID, b.editor, b.uploader, b.logger))
	}

	contained := make([]agent.Tool, len(tools))
	for i, t := range tools {
		contained[i] = agent.Contain(t, b.logger)
	}
	return contained
}
