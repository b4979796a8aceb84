package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Model != "gpt-4o-mini" || c.MaxTokens != 2000 || c.Locale != "nl" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.RetryMaxAttempts != 1 || c.TimeoutSec != 180 || c.MinMessagesSent == nil || *c.MinMessagesSent != 10 {
		t.Fatalf("unexpected request defaults: %+v", c)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	five := 5.0
	in := &Global{Model: "gpt-4o", MaxTokens: 500, Locale: "en", MinMessagesSent: &five, LogFormat: "json"}
	if err := Save(in, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 config file, got %v %v", fi, err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Model != "gpt-4o" || out.MaxTokens != 500 || out.Locale != "en" || out.MinMessagesSent == nil || *out.MinMessagesSent != 5 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestZeroThresholdSurvivesLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("min_messages_sent: 0\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.MinMessagesSent == nil || *c.MinMessagesSent != 0 {
		t.Fatalf("explicit 0 should disable the threshold, got %v", c.MinMessagesSent)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(&Global{Model: "gpt-4o"}, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Setenv("AGENTCOMPARE_MODEL", "gpt-4.1-mini")
	t.Setenv("LOG_LEVEL", "debug")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Model != "gpt-4.1-mini" {
		t.Fatalf("expected env model, got %q", c.Model)
	}
	if c.LogLevel != "debug" {
		t.Fatalf("expected LOG_LEVEL to apply, got %q", c.LogLevel)
	}
}

func TestResolveAPIKeyOrder(t *testing.T) {
	c := &Global{APIKey: "from-config"}
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("REACT_APP_OPENAI_API_TOKEN", "")
	if got := c.ResolveAPIKey(); got != "from-config" {
		t.Fatalf("expected config key, got %q", got)
	}
	t.Setenv("REACT_APP_OPENAI_API_TOKEN", "Bearer legacy")
	if got := c.ResolveAPIKey(); got != "Bearer legacy" {
		t.Fatalf("expected legacy env key, got %q", got)
	}
	t.Setenv("OPENAI_API_KEY", "sk-env")
	if got := c.ResolveAPIKey(); got != "sk-env" {
		t.Fatalf("expected OPENAI_API_KEY first, got %q", got)
	}
}
