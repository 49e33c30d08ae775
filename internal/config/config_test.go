package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pablasso/liftoff/internal/executor"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "liftoff.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Options != executor.DefaultOptions() {
		t.Errorf("default options mismatch: %+v", cfg.Options)
	}
	if cfg.JournalPath != "" {
		t.Errorf("journal path should be empty, got %q", cfg.JournalPath)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
min_splash_duration: 250ms
global_timeout: 10s
stop_on_critical_error: false
max_concurrent_tasks: 8
enable_debug_logs: true
journal_path: /tmp/liftoff.jsonl
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Options.MinSplashDuration != 250*time.Millisecond {
		t.Errorf("min splash = %s", cfg.Options.MinSplashDuration)
	}
	if cfg.Options.GlobalTimeout != 10*time.Second {
		t.Errorf("global timeout = %s", cfg.Options.GlobalTimeout)
	}
	if cfg.Options.StopOnCriticalError {
		t.Error("stop_on_critical_error: false was not applied")
	}
	if cfg.Options.MaxConcurrentTasks != 8 {
		t.Errorf("concurrency = %d", cfg.Options.MaxConcurrentTasks)
	}
	if !cfg.Options.EnableDebugLogs {
		t.Error("enable_debug_logs: true was not applied")
	}
	if cfg.JournalPath != "/tmp/liftoff.jsonl" {
		t.Errorf("journal path = %q", cfg.JournalPath)
	}
}

func TestLoad_AbsentFieldsKeepDefaults(t *testing.T) {
	path := writeConfig(t, "max_concurrent_tasks: 5\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := executor.DefaultOptions()
	if cfg.Options.MinSplashDuration != want.MinSplashDuration {
		t.Errorf("min splash = %s, want default %s", cfg.Options.MinSplashDuration, want.MinSplashDuration)
	}
	// Absent booleans with true defaults stay true.
	if !cfg.Options.StopOnCriticalError || !cfg.Options.UseStore {
		t.Error("true-default booleans flipped by an absent field")
	}
	if cfg.Options.MaxConcurrentTasks != 5 {
		t.Errorf("concurrency = %d, want 5", cfg.Options.MaxConcurrentTasks)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("empty config should load defaults: %v", err)
	}
	if cfg.Options != executor.DefaultOptions() {
		t.Errorf("options = %+v, want defaults", cfg.Options)
	}
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "splash_duration: 1s\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unknown field should be rejected")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "global_timeout: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unparseable duration should be rejected")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file should be an error")
	}
}
