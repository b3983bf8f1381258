package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for agentbridge.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Redis     RedisConfig     `yaml:"redis"`
	ImageGen  ImageGenConfig  `yaml:"image_generation"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AgentConfig controls the generation loop.
type AgentConfig struct {
	// Model is the generation backend model identifier.
	Model string `yaml:"model"`

	// ReasoningModels lists model ids that require temperature 1 instead
	// of the usual 0. This is a per-model quirk, not a policy knob.
	ReasoningModels []string `yaml:"reasoning_models"`

	// MaxSteps caps the number of tool-call rounds per turn.
	MaxSteps int `yaml:"max_steps"`

	// MaxTokens limits the response length per model round.
	MaxTokens int `yaml:"max_tokens"`

	// ThrottleInterval is the minimum spacing between message edits
	// while streaming.
	ThrottleInterval time.Duration `yaml:"throttle_interval"`

	// LoginTimeout bounds how long a turn waits for the user to finish
	// the authorization flow.
	LoginTimeout time.Duration `yaml:"login_timeout"`

	// SessionIdleTimeout controls eviction of idle user sessions.
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

type AnthropicConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type ImageGenConfig struct {
	APIURL    string `yaml:"api_url"`
	AuthToken string `yaml:"auth_token"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`

	// StorageChatID is the chat used to park uploaded media so a
	// platform file id can be derived for later reuse.
	StorageChatID int64 `yaml:"storage_chat_id"`
}

type AuthConfig struct {
	// AuthorizeURL is the static authorization link sent to users who
	// have not completed the login handshake.
	AuthorizeURL string `yaml:"authorize_url"`

	// CallbackAddr is the listen address for the login callback endpoint.
	// Empty disables the endpoint.
	CallbackAddr string `yaml:"callback_addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file, expanding ${ENV} references before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Agent.Model == "" {
		c.Agent.Model = "claude-sonnet-4-20250514"
	}
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 10
	}
	if c.Agent.MaxTokens <= 0 {
		c.Agent.MaxTokens = 4096
	}
	if c.Agent.ThrottleInterval <= 0 {
		c.Agent.ThrottleInterval = 200 * time.Millisecond
	}
	if c.Agent.LoginTimeout <= 0 {
		c.Agent.LoginTimeout = 5 * time.Minute
	}
	if c.Agent.SessionIdleTimeout <= 0 {
		c.Agent.SessionIdleTimeout = 24 * time.Hour
	}
	if c.Anthropic.MaxRetries <= 0 {
		c.Anthropic.MaxRetries = 3
	}
	if c.Anthropic.RetryDelay <= 0 {
		c.Anthropic.RetryDelay = time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks cross-field constraints that defaults cannot fix.
func (c *Config) Validate() error {
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required when telegram is enabled")
	}
	return nil
}
