package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", "k1 k2 k3")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.GeminiAPIKeys) != 3 || cfg.GeminiAPIKeys[1] != "k2" {
		t.Fatalf("unexpected gemini keys: %v", cfg.GeminiAPIKeys)
	}
	if cfg.Port != 8000 {
		t.Fatalf("want default port 8000, got %d", cfg.Port)
	}
	if cfg.StoreBackend != StoreAuto {
		t.Fatalf("want auto store backend, got %q", cfg.StoreBackend)
	}
	if cfg.MaxOutputTokens != 150 || cfg.Temperature != 0.7 {
		t.Fatalf("unexpected generation params: %d %v", cfg.MaxOutputTokens, cfg.Temperature)
	}
	if cfg.SessionIdleTTL != time.Hour {
		t.Fatalf("unexpected idle ttl: %v", cfg.SessionIdleTTL)
	}
	if !strings.HasPrefix(cfg.BaseSystemPrompt, "You are a helpful AI assistant") {
		t.Fatalf("unexpected base prompt: %q", cfg.BaseSystemPrompt)
	}
	if cfg.Attribution != "Sanchit" {
		t.Fatalf("unexpected attribution: %q", cfg.Attribution)
	}
}

func TestParseRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	if _, err := Parse(); err == nil {
		t.Fatalf("expected error for invalid PORT")
	}
}

func TestParseBasePromptOverride(t *testing.T) {
	t.Setenv("BASE_SYSTEM_PROMPT", "Be brief.")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.BaseSystemPrompt != "Be brief." {
		t.Fatalf("override ignored: %q", cfg.BaseSystemPrompt)
	}
}
