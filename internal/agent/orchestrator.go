package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentbridge/pkg/models"
)

// ChatProvider abstracts the chat surface the orchestrator renders into.
// Message IDs are provider-scoped opaque strings.
type ChatProvider interface {
	// SendMessage posts a new message and returns its ID.
	SendMessage(ctx context.Context, chatID, text string) (string, error)

	// UpdateMessage overwrites an existing message's content.
	UpdateMessage(ctx context.Context, messageID, text string) error
}

// Context is the per-user conversation state the orchestrator operates on.
type Context interface {
	// History returns the conversation messages in order.
	History() []*models.Message

	// AddMessages appends messages to the history.
	AddMessages(msgs ...*models.Message)

	// Clear discards the conversation history.
	Clear()

	// IsLogin reports whether the user holds a valid auth token.
	IsLogin(ctx context.Context) bool

	// WaitLogin blocks until the user completes authorization or the
	// timeout elapses, in which case ErrLoginTimeout is returned.
	WaitLogin(ctx context.Context, timeout time.Duration) error

	// UserInfo returns the user's profile from the auth token.
	UserInfo(ctx context.Context) (*models.UserProfile, error)

	// ToolProviders lists external tool sources bound to this user.
	ToolProviders() []ToolProvider
}

// ContextStore hands out per-user contexts, creating them on first use.
type ContextStore interface {
	Get(userID string) Context
}

// ToolBuilder assembles the tool set for one turn. Providers that fail to
// enumerate are skipped; the returned tools are already fault-contained.
type ToolBuilder interface {
	BuildTools(ctx context.Context, chatID string, isGroup bool, providers []ToolProvider) []Tool
}

// Inbound is one user message delivered by a chat provider.
type Inbound struct {
	UserID  string
	ChatID  string
	Text    string
	IsGroup bool
}

// User-facing notices. Kept as constants so tests can assert on them.
const (
	noticeBusy         = "Your previous request is still being processed, please wait for it to finish."
	noticeThinking     = "Thinking..."
	noticeLoginTimeout = "Authorization was not completed in time. Please send your message again after logging in."
	noticeCleared      = "Conversation context cleared."
)

// OrchestratorConfig carries the orchestrator's tunables.
type OrchestratorConfig struct {
	// SystemPrompt is the base system prompt; the user's profile is
	// appended when available.
	SystemPrompt string

	// LoginTimeout bounds how long an unauthenticated turn waits for the
	// user to complete authorization.
	LoginTimeout time.Duration

	// AuthorizeURL builds the login link sent to an unauthenticated user.
	AuthorizeURL func(userID string) string
}

// Orchestrator drives the lifecycle of one inbound message: admission
// through the session registry, the login gate, streaming generation with
// throttled rendering, and terminal rendering of the outcome.
type Orchestrator struct {
	sessions *SessionRegistry
	contexts ContextStore
	driver   *Driver
	tools    ToolBuilder
	chat     ChatProvider
	config   OrchestratorConfig
	logger   *slog.Logger
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(sessions *SessionRegistry, contexts ContextStore, driver *Driver, tools ToolBuilder, chat ChatProvider, config OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if config.LoginTimeout <= 0 {
		config.LoginTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions: sessions,
		contexts: contexts,
		driver:   driver,
		tools:    tools,
		chat:     chat,
		config:   config,
		logger:   logger,
	}
}

// HandleMessage processes one inbound message to completion. It is safe to
// call concurrently; overlapping turns for the same user are rejected with
// a busy notice and leave the conversation history untouched.
func (o *Orchestrator) HandleMessage(ctx context.Context, in *Inbound) error {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil
	}

	// Special commands bypass the session guard and the login gate.
	switch text {
	case "/clear":
		return o.handleClear(ctx, in)
	case "/whoami":
		return o.handleWhoami(ctx, in)
	}

	if !o.sessions.TryAcquire(in.UserID) {
		o.logger.Info("rejecting concurrent turn", "user", in.UserID)
		_, err := o.chat.SendMessage(ctx, in.ChatID, noticeBusy)
		return err
	}
	defer o.sessions.Release(in.UserID)

	cctx := o.contexts.Get(in.UserID)

	placeholder, err := o.admit(ctx, in, cctx)
	if err != nil || placeholder == "" {
		return err
	}

	cctx.AddMessages(&models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	})

	return o.runTurn(ctx, in, cctx, placeholder)
}

// admit passes the login gate and returns the message ID to stream the
// answer into. An empty ID with nil error means the turn was abandoned
// (login timed out).
func (o *Orchestrator) admit(ctx context.Context, in *Inbound, cctx Context) (string, error) {
	if cctx.IsLogin(ctx) {
		return o.chat.SendMessage(ctx, in.ChatID, noticeThinking)
	}

	prompt := fmt.Sprintf("Please authorize first: %s", o.config.AuthorizeURL(in.UserID))
	messageID, err := o.chat.SendMessage(ctx, in.ChatID, prompt)
	if err != nil {
		return "", err
	}

	o.logger.Info("waiting for login", "user", in.UserID)
	if err := cctx.WaitLogin(ctx, o.config.LoginTimeout); err != nil {
		o.logger.Warn("login gate closed", "user", in.UserID, "error", err)
		return "", o.chat.UpdateMessage(ctx, messageID, noticeLoginTimeout)
	}

	// Reuse the login prompt message as the streaming placeholder.
	if err := o.chat.UpdateMessage(ctx, messageID, noticeThinking); err != nil {
		return "", err
	}
	return messageID, nil
}

// runTurn drives the generation event stream into the chat surface.
func (o *Orchestrator) runTurn(ctx context.Context, in *Inbound, cctx Context, placeholder string) error {
	renderer := o.sessions.Renderer(in.UserID)
	tools := o.tools.BuildTools(ctx, in.ChatID, in.IsGroup, cctx.ToolProviders())
	system := o.systemPrompt(ctx, cctx)

	var acc strings.Builder
	events := o.driver.Run(ctx, system, cctx.History(), tools)

	for ev := range events {
		switch {
		case ev.Chunk != "":
			acc.WriteString(ev.Chunk)
			if err := renderer.Render(placeholder, acc.String()); err != nil {
				o.logger.Warn("throttled render failed", "user", in.UserID, "error", err)
			}

		case ev.Step != nil:
			cctx.AddMessages(ev.Step.Messages...)
			o.renderFinal(ctx, in, placeholder, acc.String())

		case ev.Err != nil:
			renderer.Cancel()
			o.logger.Error("generation failed", "user", in.UserID, "error", ev.Err)
			o.renderFinal(ctx, in, placeholder, fmt.Sprintf("Request failed: %s", ErrorMessage(ev.Err)))
			return nil

		case ev.Done:
			renderer.Cancel()
			if acc.Len() > 0 {
				o.renderFinal(ctx, in, placeholder, acc.String())
			}
			return nil
		}
	}
	renderer.Cancel()
	return ctx.Err()
}

// renderFinal bypasses the throttle for step boundaries and terminal
// frames. An edit failure falls back to posting a fresh message so the
// user still sees the content.
func (o *Orchestrator) renderFinal(ctx context.Context, in *Inbound, messageID, content string) {
	if content == "" {
		return
	}
	if err := o.chat.UpdateMessage(ctx, messageID, content); err != nil {
		o.logger.Warn("final render failed, sending fallback", "user", in.UserID, "error", err)
		if _, sendErr := o.chat.SendMessage(ctx, in.ChatID, content); sendErr != nil {
			o.logger.Error("fallback send failed", "user", in.UserID, "error", sendErr)
		}
	}
}

func (o *Orchestrator) handleClear(ctx context.Context, in *Inbound) error {
	o.contexts.Get(in.UserID).Clear()
	_, err := o.chat.SendMessage(ctx, in.ChatID, noticeCleared)
	return err
}

func (o *Orchestrator) handleWhoami(ctx context.Context, in *Inbound) error {
	cctx := o.contexts.Get(in.UserID)
	profile, err := cctx.UserInfo(ctx)
	if err != nil {
		_, sendErr := o.chat.SendMessage(ctx, in.ChatID, "You are not logged in.")
		return sendErr
	}
	_, err = o.chat.SendMessage(ctx, in.ChatID, fmt.Sprintf("You are %s (%s), user ID %s.", profile.Name, profile.EnName, profile.UserID))
	return err
}

// systemPrompt appends the user's identity to the base prompt when the
// profile is available.
func (o *Orchestrator) systemPrompt(ctx context.Context, cctx Context) string {
	prompt := o.config.SystemPrompt
	if profile, err := cctx.UserInfo(ctx); err == nil && profile != nil {
		prompt += fmt.Sprintf("\n\nYou are talking to %s (user ID %s).", profile.Name, profile.UserID)
	}
	return prompt
}
