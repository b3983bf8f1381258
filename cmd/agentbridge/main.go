// Command agentbridge runs the chat agent gateway: a Telegram front end
// over a streaming Anthropic generation loop with per-user sessions,
// Redis-backed auth tokens, and image and group-metadata tools.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentbridge/internal/agent"
	"github.com/haasonsaas/agentbridge/internal/agent/providers"
	"github.com/haasonsaas/agentbridge/internal/auth"
	"github.com/haasonsaas/agentbridge/internal/chat"
	"github.com/haasonsaas/agentbridge/internal/config"
	"github.com/haasonsaas/agentbridge/internal/render"
	"github.com/haasonsaas/agentbridge/internal/tools/imagegen"
	"github.com/haasonsaas/agentbridge/internal/toolset"
	"github.com/haasonsaas/agentbridge/internal/userctx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "agentbridge",
		Short: "Chat agent gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	tokens, err := newTokenStore(cfg, logger)
	if err != nil {
		return err
	}
	contexts := userctx.NewStore(tokens, logger)

	provider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
		APIKey:       cfg.Anthropic.APIKey,
		BaseURL:      cfg.Anthropic.BaseURL,
		MaxRetries:   cfg.Anthropic.MaxRetries,
		RetryDelay:   cfg.Anthropic.RetryDelay,
		DefaultModel: cfg.Agent.Model,
	})
	if err != nil {
		return err
	}

	driver := agent.NewDriver(provider, agent.DriverConfig{
		Model:           cfg.Agent.Model,
		ReasoningModels: cfg.Agent.ReasoningModels,
		MaxSteps:        cfg.Agent.MaxSteps,
		MaxTokens:       cfg.Agent.MaxTokens,
	}, logger)

	if !cfg.Telegram.Enabled {
		return fmt.Errorf("no chat provider enabled")
	}

	// The chat provider needs a handler at construction while the
	// orchestrator needs the provider, so a late-bound dispatcher sits
	// between them.
	dispatch := &dispatcher{}
	tg, err := chat.NewTelegram(chat.TelegramConfig{
		Token:         cfg.Telegram.Token,
		StorageChatID: cfg.Telegram.StorageChatID,
		Logger:        logger,
	}, dispatch)
	if err != nil {
		return err
	}

	sessions := agent.NewSessionRegistry(func(string) *render.Throttle {
		return render.NewThrottle(cfg.Agent.ThrottleInterval, func(messageID, content string) error {
			return tg.UpdateMessage(context.Background(), messageID, content)
		}, func(err error) {
			logger.Warn("throttled update failed", "error", err)
		})
	}, logger)

	var imageClient *imagegen.Client
	if cfg.ImageGen.APIURL != "" {
		imageClient = imagegen.NewClient(cfg.ImageGen.APIURL, cfg.ImageGen.AuthToken, 0, logger)
	}
	tools := toolset.NewBuilder(imageClient, tg, tg, logger)

	orch := agent.NewOrchestrator(sessions, contexts, driver, tools, tg, agent.OrchestratorConfig{
		SystemPrompt: "You are a helpful assistant embedded in a chat platform. Answer concisely.",
		LoginTimeout: cfg.Agent.LoginTimeout,
		AuthorizeURL: func(userID string) string {
			return strings.ReplaceAll(cfg.Auth.AuthorizeURL, "{user_id}", userID)
		},
	}, logger)
	dispatch.handler = orch

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go evictLoop(ctx, sessions, cfg.Agent.SessionIdleTimeout)

	if cfg.Auth.CallbackAddr != "" {
		callback := auth.NewServer(contexts, logger)
		go func() {
			if err := callback.Run(ctx, cfg.Auth.CallbackAddr); err != nil {
				logger.Error("auth callback server stopped", "error", err)
			}
		}()
	}

	logger.Info("agentbridge starting", "model", cfg.Agent.Model)
	tg.Start(ctx)
	logger.Info("agentbridge stopped")
	return nil
}

type dispatcher struct {
	handler chat.Handler
}

func (d *dispatcher) HandleMessage(ctx context.Context, in *agent.Inbound) error {
	if d.handler == nil {
		return nil
	}
	return d.handler.HandleMessage(ctx, in)
}

func evictLoop(ctx context.Context, sessions *agent.SessionRegistry, idleTimeout time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.EvictIdle(idleTimeout)
		}
	}
}

func newTokenStore(cfg *config.Config, logger *slog.Logger) (userctx.TokenStore, error) {
	if cfg.Redis.URL == "" {
		logger.Warn("redis not configured, auth tokens will not survive restarts")
		return userctx.NewMemoryTokenStore(), nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return userctx.NewRedisTokenStore(redis.NewClient(opts)), nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
