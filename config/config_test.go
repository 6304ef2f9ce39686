package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLMProvider != "anthropic" {
		t.Errorf("expected provider anthropic, got %q", cfg.LLMProvider)
	}
	if cfg.MaxToolRounds != 5 {
		t.Errorf("expected 5 tool rounds, got %d", cfg.MaxToolRounds)
	}
	if cfg.TurnTimeout != 90*time.Second {
		t.Errorf("expected 90s timeout, got %s", cfg.TurnTimeout)
	}
	if cfg.DefaultLocale != "es" || cfg.DefaultTimezone != "UTC" {
		t.Errorf("unexpected locale defaults %q %q", cfg.DefaultLocale, cfg.DefaultTimezone)
	}
	if cfg.DBLoggingEnabled || cfg.VerboseLogging {
		t.Error("db and verbose logging should be off by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DAYPLAN_LLM_PROVIDER", "openai")
	t.Setenv("DAYPLAN_OPENAI_API_KEY", "sk-test")
	t.Setenv("DAYPLAN_TURN_TIMEOUT", "15s")
	t.Setenv("DAYPLAN_VERBOSE_LOGGING", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey() != "sk-test" {
		t.Errorf("expected openai key, got %q", cfg.APIKey())
	}
	if cfg.TurnTimeout != 15*time.Second {
		t.Errorf("expected 15s, got %s", cfg.TurnTimeout)
	}
	if !cfg.VerboseLogging {
		t.Error("expected verbose logging on")
	}
}

func TestLoad_UnknownProvider(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DAYPLAN_LLM_PROVIDER", "mystery")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLoad_RejectsZeroToolRounds(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DAYPLAN_MAX_TOOL_ROUNDS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero tool rounds")
	}
}
