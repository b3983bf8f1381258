// Package groupinfo provides the group metadata tool, which lets the model
// update a group chat's name, description, and avatar.
package groupinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/agentbridge/internal/agent"
)

// ChatInfoUpdate carries the fields to change; empty fields are left
// untouched. Avatar is a platform media key, already uploaded.
type ChatInfoUpdate struct {
	Name        string
	Description string
	Avatar      string
}

// ChatEditor applies metadata changes to a group chat.
type ChatEditor interface {
	UpdateChatInfo(ctx context.Context, chatID string, update ChatInfoUpdate) error
}

// AvatarUploader re-hosts an image URL as a platform media key suitable
// for use as a chat avatar.
type AvatarUploader interface {
	UploadImageFromURL(ctx context.Context, url string) (string, error)
}

// Tool updates group chat metadata. It is bound to the chat the triggering
// message came from; the model cannot target other chats.
type Tool struct {
	chatID   string
	editor   ChatEditor
	uploader AvatarUploader
	logger   *slog.Logger
}

// NewTool creates a group metadata tool bound to chatID.
func NewTool(chatID string, editor ChatEditor, uploader AvatarUploader, logger *slog.Logger) *Tool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tool{chatID: chatID, editor: editor, uploader: uploader, logger: logger}
}

func (t *Tool) Name() string {
	return "update_group_info"
}

func (t *Tool) Description() string {
	return "Update the current group chat's name, description, or avatar. At least one field must be provided. The avatar is given as an image URL."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {
				"type": "string",
				"description": "New group name"
			},
			"description": {
				"type": "string",
				"description": "New group description"
			},
			"avatar_url": {
				"type": "string",
				"description": "URL of an image to use as the group avatar"
			}
		}
	}`)
}

type toolParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p toolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %s", err.Error())), nil
	}
	if p.Name == "" && p.Description == "" && p.AvatarURL == "" {
		return errorResult("at least one of name, description, or avatar_url is required"), nil
	}

	update := ChatInfoUpdate{
		Name:        p.Name,
		Description: p.Description,
	}

	// The avatar is uploaded before anything is changed so a bad URL
	// leaves the group untouched.
	if p.AvatarURL != "" {
		if t.uploader == nil {
			return errorResult("avatar updates are not supported"), nil
		}
		key, err := t.uploader.UploadImageFromURL(ctx, p.AvatarURL)
		if err != nil {
			t.logger.Warn("avatar upload failed", "chat", t.chatID, "error", err)
			return errorResult(fmt.Sprintf("avatar upload failed: %s", err.Error())), nil
		}
		update.Avatar = key
	}

	if err := t.editor.UpdateChatInfo(ctx, t.chatID, update); err != nil {
		t.logger.Warn("group update failed", "chat", t.chatID, "error", err)
		return errorResult(fmt.Sprintf("group update failed: %s", err.Error())), nil
	}

	changed := []string{}
	if update.Name != "" {
		changed = append(changed, "name")
	}
	if update.Description != "" {
		changed = append(changed, "description")
	}
	if update.Avatar != "" {
		changed = append(changed, "avatar")
	}
	content, _ := json.Marshal(map[string]any{"success": true, "updated": changed})
	return &agent.ToolResult{Content: string(content)}, nil
}

func errorResult(msg string) *agent.ToolResult {
	content, _ := json.Marshal(map[string]string{"error": msg})
	return &agent.ToolResult{Content: string(content), IsError: true}
}
