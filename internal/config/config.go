// Package config holds the continuity tool settings: defaults, an optional
// YAML file, CONTINUITY_* environment overrides and validation.
package config

import (
	"os"
	"path/filepath"

	"github.com/rcliao/story-continuity/internal/bounded"
	"github.com/rcliao/story-continuity/internal/persist"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogText LogFormat = "text"
	LogJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogText || f == LogJSON
}

// Config is the full tool configuration.
type Config struct {
	// Dir holds one <work>.json record per work plus its backups.
	Dir string `yaml:"dir" env:"CONTINUITY_DIR"`

	// Work names the record operated on.
	Work string `yaml:"work" env:"CONTINUITY_WORK"`

	// Capacity bounds every keyed section and the timeline.
	Capacity int `yaml:"capacity" env:"CONTINUITY_CAPACITY"`

	// MaxBackups is how many backups are kept per record.
	MaxBackups int `yaml:"max_backups" env:"CONTINUITY_MAX_BACKUPS"`

	// JournalDB is the facts journal path. Empty means <Dir>/journal.db.
	JournalDB string `yaml:"journal_db" env:"CONTINUITY_JOURNAL_DB"`

	LogLevel  LogLevel  `yaml:"log_level" env:"CONTINUITY_LOG_LEVEL"`
	LogFormat LogFormat `yaml:"log_format" env:"CONTINUITY_LOG_FORMAT"`

	// ContextItems caps characters and timeline events in a chapter context.
	ContextItems int `yaml:"context_items" env:"CONTINUITY_CONTEXT_ITEMS"`

	// ContextBudget caps rendered context in bytes; 0 renders everything.
	ContextBudget int `yaml:"context_budget" env:"CONTINUITY_CONTEXT_BUDGET"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Dir:           filepath.Join(home, ".continuity"),
		Work:          "default",
		Capacity:      bounded.DefaultCapacity,
		MaxBackups:    persist.DefaultMaxBackups,
		LogLevel:      LogWarn,
		LogFormat:     LogText,
		ContextItems:  8,
		ContextBudget: 6000,
	}
}

// RecordPath is the JSON file of the configured work.
func (c *Config) RecordPath() string {
	return filepath.Join(c.Dir, c.Work+".json")
}

// JournalPath is the facts journal database path.
func (c *Config) JournalPath() string {
	if c.JournalDB != "" {
		return c.JournalDB
	}
	return filepath.Join(c.Dir, "journal.db")
}
