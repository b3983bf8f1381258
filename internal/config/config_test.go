package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
agent:
  model: claude-sonnet-4-20250514
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Agent.MaxSteps != 10 {
		t.Errorf("MaxSteps = %d, want default 10", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.ThrottleInterval != 200*time.Millisecond {
		t.Errorf("ThrottleInterval = %v, want 200ms", cfg.Agent.ThrottleInterval)
	}
	if cfg.Agent.LoginTimeout != 5*time.Minute {
		t.Errorf("LoginTimeout = %v, want 5m", cfg.Agent.LoginTimeout)
	}
	if cfg.Anthropic.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Anthropic.MaxRetries)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "tok-123")
	path := writeConfig(t, `
telegram:
  enabled: true
  token: ${TEST_BOT_TOKEN}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "tok-123" {
		t.Errorf("token = %q, want env expansion", cfg.Telegram.Token)
	}
}

func TestLoadValidatesTelegramToken(t *testing.T) {
	path := writeConfig(t, `
telegram:
  enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Error("enabled telegram without token should fail validation")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
agent:
  model: custom-model
  reasoning_models: [gpt-5]
  max_steps: 4
  throttle_interval: 500ms
  login_timeout: 1m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.Model != "custom-model" || cfg.Agent.MaxSteps != 4 {
		t.Errorf("agent config = %+v", cfg.Agent)
	}
	if len(cfg.Agent.ReasoningModels) != 1 || cfg.Agent.ReasoningModels[0] != "gpt-5" {
		t.Errorf("reasoning models = %v", cfg.Agent.ReasoningModels)
	}
	if cfg.Agent.ThrottleInterval != 500*time.Millisecond {
		t.Errorf("throttle = %v", cfg.Agent.ThrottleInterval)
	}
	if cfg.Agent.LoginTimeout != time.Minute {
		t.Errorf("login timeout = %v", cfg.Agent.LoginTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should return an error")
	}
}
