// Package config loads liftoff.yaml into executor options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pablasso/liftoff/internal/executor"
)

// Config is the loaded configuration.
type Config struct {
	Options executor.Options
	// JournalPath enables the JSONL progress journal when non-empty.
	JournalPath string
}

// file mirrors the YAML document. Durations are Go duration strings and
// booleans with true defaults use pointers so absence is distinguishable.
type file struct {
	MinSplashDuration   string `yaml:"min_splash_duration"`
	GlobalTimeout       string `yaml:"global_timeout"`
	StopOnCriticalError *bool  `yaml:"stop_on_critical_error"`
	MaxConcurrentTasks  int    `yaml:"max_concurrent_tasks"`
	UseStore            *bool  `yaml:"use_store"`
	EnableDebugLogs     bool   `yaml:"enable_debug_logs"`
	SlowTaskReportSize  int    `yaml:"slow_task_report_size"`
	JournalPath         string `yaml:"journal_path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{Options: executor.DefaultOptions()}
}

// Load reads and parses a YAML config file. Unknown fields are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

func parse(data []byte) (Config, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}

	cfg := Default()

	if f.MinSplashDuration != "" {
		d, err := time.ParseDuration(f.MinSplashDuration)
		if err != nil {
			return Config{}, fmt.Errorf("min_splash_duration: %w", err)
		}
		cfg.Options.MinSplashDuration = d
	}
	if f.GlobalTimeout != "" {
		d, err := time.ParseDuration(f.GlobalTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("global_timeout: %w", err)
		}
		cfg.Options.GlobalTimeout = d
	}
	if f.StopOnCriticalError != nil {
		cfg.Options.StopOnCriticalError = *f.StopOnCriticalError
	}
	if f.MaxConcurrentTasks > 0 {
		cfg.Options.MaxConcurrentTasks = f.MaxConcurrentTasks
	}
	if f.UseStore != nil {
		cfg.Options.UseStore = *f.UseStore
	}
	cfg.Options.EnableDebugLogs = f.EnableDebugLogs
	if f.SlowTaskReportSize > 0 {
		cfg.Options.SlowTaskReportSize = f.SlowTaskReportSize
	}
	cfg.JournalPath = f.JournalPath

	return cfg, nil
}
