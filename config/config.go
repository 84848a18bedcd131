// Package config loads the project configuration of a schemaforge project.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "schemaforge.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SCHEMAFORGE_"

// AppliedLogConfig points at the execution log of the migration runner.
type AppliedLogConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Table  string `json:"table,omitempty" yaml:"table,omitempty"`
	Column string `json:"column,omitempty" yaml:"column,omitempty"`
}

// ArtifactConfig selects where plan documents are written.
type ArtifactConfig struct {
	Backend  string `json:"backend" yaml:"backend"`
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// Config is the project configuration.
type Config struct {
	History    string           `json:"history" yaml:"history"`
	Specs      string           `json:"specs" yaml:"specs"`
	Output     string           `json:"output" yaml:"output"`
	Smart      bool             `json:"smart" yaml:"smart"`
	LogLevel   string           `json:"log_level" yaml:"log_level"`
	AppliedLog AppliedLogConfig `json:"applied_log" yaml:"applied_log"`
	Artifacts  ArtifactConfig   `json:"artifacts" yaml:"artifacts"`

	dir string
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		History:  ".schemaforge/history.json",
		Specs:    "database/specs",
		Output:   "database/migrations",
		Smart:    true,
		LogLevel: "info",
		AppliedLog: AppliedLogConfig{
			Driver: "none",
			Table:  "migrations",
			Column: "migration",
		},
		Artifacts: ArtifactConfig{Backend: "local"},
		dir:       ".",
	}
}

// Load reads the YAML file at path over the defaults, then applies a .env
// file next to it and SCHEMAFORGE_* environment overrides. A missing file
// yields an error wrapping os.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	cfg.dir = filepath.Dir(path)
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults
// (still subject to .env and environment overrides).
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg = Default()
	cfg.dir = filepath.Dir(path)
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	// A missing .env is fine.
	_ = godotenv.Load(filepath.Join(c.dir, ".env"))
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return err
	}
	return c.Validate()
}

// applyEnv overrides fields from SCHEMAFORGE_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"HISTORY":            &c.History,
		"SPECS":              &c.Specs,
		"OUTPUT":             &c.Output,
		"LOG_LEVEL":          &c.LogLevel,
		"APPLIED_DRIVER":     &c.AppliedLog.Driver,
		"APPLIED_DSN":        &c.AppliedLog.DSN,
		"APPLIED_TABLE":      &c.AppliedLog.Table,
		"APPLIED_COLUMN":     &c.AppliedLog.Column,
		"ARTIFACTS_BACKEND":  &c.Artifacts.Backend,
		"ARTIFACTS_BUCKET":   &c.Artifacts.Bucket,
		"ARTIFACTS_PREFIX":   &c.Artifacts.Prefix,
		"ARTIFACTS_REGION":   &c.Artifacts.Region,
		"ARTIFACTS_ENDPOINT": &c.Artifacts.Endpoint,
	}
	for key, dst := range str {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	if v, ok := lookup(EnvPrefix + "SMART"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sSMART value %q: %w", EnvPrefix, v, err)
		}
		c.Smart = b
	}
	return nil
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	var errs []error
	if c.History == "" {
		errs = append(errs, errors.New("history path is required"))
	}
	if c.Specs == "" {
		errs = append(errs, errors.New("specs directory is required"))
	}
	if filepath.IsAbs(c.Output) {
		errs = append(errs, fmt.Errorf("output %q must be relative to the project", c.Output))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.AppliedLog.Driver {
	case "", "none":
	case "sqlite", "postgres", "mysql":
		if c.AppliedLog.DSN == "" {
			errs = append(errs, fmt.Errorf("applied_log.dsn is required for driver %q", c.AppliedLog.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown applied_log.driver %q", c.AppliedLog.Driver))
	}
	switch c.Artifacts.Backend {
	case "", "local":
	case "s3":
		if c.Artifacts.Bucket == "" {
			errs = append(errs, errors.New("artifacts.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown artifacts.backend %q", c.Artifacts.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Dir is the directory relative paths are resolved against.
func (c *Config) Dir() string { return c.dir }

// Resolve makes p absolute relative to the config directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

// HistoryPath is the resolved history file path.
func (c *Config) HistoryPath() string { return c.Resolve(c.History) }

// SpecsDir is the resolved spec directory.
func (c *Config) SpecsDir() string { return c.Resolve(c.Specs) }

// UsesAppliedLog reports whether an execution log is configured.
func (c *Config) UsesAppliedLog() bool {
	return c.AppliedLog.Driver != "" && c.AppliedLog.Driver != "none"
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}

// Write saves c as YAML. The DSN is left out; it belongs in the
// environment.
func (c *Config) Write(path string) error {
	out := *c
	out.AppliedLog.DSN = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
