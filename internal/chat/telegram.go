// Package chat binds the orchestrator to a chat platform. The Telegram
// provider receives inbound messages over long polling and implements the
// message, media, and group-metadata operations the agent needs.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/haasonsaas/agentbridge/internal/agent"
	"github.com/haasonsaas/agentbridge/internal/tools/groupinfo"
)

// Handler consumes inbound messages. Implemented by the orchestrator.
type Handler interface {
	HandleMessage(ctx context.Context, in *agent.Inbound) error
}

// TelegramConfig holds the Telegram provider settings.
type TelegramConfig struct {
	// Token is the bot token from @BotFather.
	Token string

	// StorageChatID is a chat the bot can post to for parking media.
	// Uploading an image there yields a reusable file ID.
	StorageChatID int64

	// Logger is optional.
	Logger *slog.Logger
}

// Telegram is the Telegram chat provider. Message IDs handed to the
// orchestrator are encoded as "<chatID>/<messageID>" so an edit does not
// need the chat ID passed separately.
type Telegram struct {
	bot     *bot.Bot
	config  TelegramConfig
	handler Handler
	logger  *slog.Logger
}

// NewTelegram creates the provider. The handler receives each inbound
// text message on its own goroutine; turns for different users can
// overlap while the session registry rejects overlap within one user.
func NewTelegram(config TelegramConfig, handler Handler) (*Telegram, error) {
	if config.Token == "" {
		return nil, errors.New("telegram: token is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &Telegram{config: config, handler: handler, logger: logger.With("chat", "telegram")}

	b, err := bot.New(config.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: creating bot: %w", err)
	}
	t.bot = b
	b.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, t.handleUpdate)
	return t, nil
}

// Start runs the long polling loop. It blocks until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context) {
	t.logger.Info("starting telegram long polling")
	t.bot.Start(ctx)
}

func (t *Telegram) handleUpdate(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message

	in := &agent.Inbound{
		UserID:  strconv.FormatInt(msg.From.ID, 10),
		ChatID:  strconv.FormatInt(msg.Chat.ID, 10),
		Text:    msg.Text,
		IsGroup: msg.Chat.Type == "group" || msg.Chat.Type == "supergroup",
	}

	t.logger.Debug("received message", "chat", in.ChatID, "user", in.UserID)

	go func() {
		if err := t.handler.HandleMessage(ctx, in); err != nil {
			t.logger.Error("message handling failed", "user", in.UserID, "error", err)
		}
	}()
}

// SendMessage posts a new message and returns its encoded ID.
func (t *Telegram) SendMessage(ctx context.Context, chatID, text string) (string, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return "", err
	}
	sent, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: id,
		Text:   text,
	})
	if err != nil {
		return "", fmt.Errorf("telegram: sending message: %w", err)
	}
	return encodeMessageID(id, sent.ID), nil
}

// UpdateMessage overwrites an existing message's content.
func (t *Telegram) UpdateMessage(ctx context.Context, messageID, text string) error {
	chatID, msgID, err := decodeMessageID(messageID)
	if err != nil {
		return err
	}
	_, err = t.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: msgID,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("telegram: editing message: %w", err)
	}
	return nil
}

// UploadImageFromURL re-hosts an image by posting it to the storage chat
// and returning the resulting file ID, which later sends can reference.
func (t *Telegram) UploadImageFromURL(ctx context.Context, url string) (string, error) {
	if t.config.StorageChatID == 0 {
		return "", errors.New("telegram: storage chat is not configured")
	}
	sent, err := t.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: t.config.StorageChatID,
		Photo:  &tgmodels.InputFileString{Data: url},
	})
	if err != nil {
		return "", fmt.Errorf("telegram: uploading image: %w", err)
	}
	if len(sent.Photo) == 0 {
		return "", errors.New("telegram: upload returned no photo sizes")
	}
	// The last size is the largest.
	return sent.Photo[len(sent.Photo)-1].FileID, nil
}

// UpdateChatInfo applies group metadata changes field by field.
func (t *Telegram) UpdateChatInfo(ctx context.Context, chatID string, update groupinfo.ChatInfoUpdate) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	if update.Name != "" {
		if _, err := t.bot.SetChatTitle(ctx, &bot.SetChatTitleParams{
			ChatID: id,
			Title:  update.Name,
		}); err != nil {
			return fmt.Errorf("telegram: setting chat title: %w", err)
		}
	}
	if update.Description != "" {
		if _, err := t.bot.SetChatDescription(ctx, &bot.SetChatDescriptionParams{
			ChatID:      id,
			Description: update.Description,
		}); err != nil {
			return fmt.Errorf("telegram: setting chat description: %w", err)
		}
	}
	if update.Avatar != "" {
		if _, err := t.bot.SetChatPhoto(ctx, &bot.SetChatPhotoParams{
			ChatID: id,
			Photo:  &tgmodels.InputFileString{Data: update.Avatar},
		}); err != nil {
			return fmt.Errorf("telegram: setting chat photo: %w", err)
		}
	}
	return nil
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chat ID %q: %w", chatID, err)
	}
	return id, nil
}

func encodeMessageID(chatID int64, messageID int) string {
	return fmt.Sprintf("%d/%d", chatID, messageID)
}

func decodeMessageID(encoded string) (int64, int, error) {
	parts := strings.SplitN(encoded, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("telegram: invalid message ID %q", encoded)
	}
	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram: invalid message ID %q: %w", encoded, err)
	}
	msgID, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("telegram: invalid message ID %q: %w", encoded, err)
	}
	return chatID, msgID, nil
}
