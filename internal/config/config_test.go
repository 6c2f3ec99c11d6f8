package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Events.BufferSize != 256 {
		t.Errorf("expected default buffer size 256, got %d", cfg.Events.BufferSize)
	}
	if cfg.Retry.Enabled {
		t.Error("expected retry disabled by default")
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Matcher.EmptyRequiredScore != 1.0 {
		t.Errorf("expected default empty required score 1.0, got %v", cfg.Matcher.EmptyRequiredScore)
	}
	if cfg.State.Path == "" {
		t.Error("expected a default state path")
	}
	if cfg.Spool.Dir == "" {
		t.Error("expected a default spool dir")
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dispatch.yaml")
	content := `
events:
  buffer_size: 32
retry:
  enabled: true
  max_attempts: 5
matcher:
  empty_required_score: 0.5
workers:
  - id: worker-1
    capabilities: [go, sql]
  - id: worker-2
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Events.BufferSize != 32 {
		t.Errorf("expected buffer size 32, got %d", cfg.Events.BufferSize)
	}
	if !cfg.Retry.Enabled || cfg.Retry.MaxAttempts != 5 {
		t.Errorf("unexpected retry config: %+v", cfg.Retry)
	}
	if cfg.Matcher.EmptyRequiredScore != 0.5 {
		t.Errorf("expected empty required score 0.5, got %v", cfg.Matcher.EmptyRequiredScore)
	}
	if len(cfg.Workers) != 2 || cfg.Workers[0].ID != "worker-1" {
		t.Errorf("unexpected workers: %+v", cfg.Workers)
	}
	if len(cfg.Workers[0].Capabilities) != 2 {
		t.Errorf("expected 2 capabilities, got %v", cfg.Workers[0].Capabilities)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath("/nonexistent/dispatch.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
