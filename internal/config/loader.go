package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the process environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decodeYAML(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg, nil); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with CONTINUITY_* variables. A nil environ reads
// the process environment. Unset variables leave fields untouched.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Dir == "" {
		errs = append(errs, errors.New("dir is required"))
	}
	if cfg.Work == "" {
		errs = append(errs, errors.New("work is required"))
	} else if strings.ContainsAny(cfg.Work, `/\`) || cfg.Work == "." || cfg.Work == ".." {
		errs = append(errs, fmt.Errorf("work %q must be a plain file name", cfg.Work))
	}
	if cfg.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("capacity %d must be positive", cfg.Capacity))
	}
	if cfg.MaxBackups <= 0 {
		errs = append(errs, fmt.Errorf("max_backups %d must be positive", cfg.MaxBackups))
	}
	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if !cfg.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("log_format %q is invalid; valid values: text, json", cfg.LogFormat))
	}
	if cfg.ContextItems <= 0 {
		errs = append(errs, fmt.Errorf("context_items %d must be positive", cfg.ContextItems))
	}
	if cfg.ContextBudget < 0 {
		errs = append(errs, fmt.Errorf("context_budget %d must not be negative", cfg.ContextBudget))
	}

	return errors.Join(errs...)
}
