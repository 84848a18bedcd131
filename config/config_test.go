package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
history: state/history.json
specs: specs
output: plans
smart: false
log_level: debug
applied_log:
  driver: sqlite
  dsn: app.db
  table: schema_migrations
artifacts:
  backend: s3
  bucket: plans-bucket
  prefix: project
  endpoint: http://localhost:9000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Smart {
		t.Error("smart: false not applied")
	}
	if cfg.AppliedLog.Driver != "sqlite" || cfg.AppliedLog.Table != "schema_migrations" {
		t.Errorf("applied log = %+v", cfg.AppliedLog)
	}
	if cfg.AppliedLog.Column != "migration" {
		t.Errorf("unset column should keep its default, got %q", cfg.AppliedLog.Column)
	}
	if cfg.Artifacts.Bucket != "plans-bucket" || cfg.Artifacts.Endpoint != "http://localhost:9000" {
		t.Errorf("artifacts = %+v", cfg.Artifacts)
	}
	if got := cfg.HistoryPath(); got != filepath.Join(dir, "state", "history.json") {
		t.Errorf("HistoryPath = %q", got)
	}
	if got := cfg.SpecsDir(); got != filepath.Join(dir, "specs") {
		t.Errorf("SpecsDir = %q", got)
	}
	if lvl, _ := cfg.SlogLevel(); lvl != slog.LevelDebug {
		t.Errorf("SlogLevel = %v", lvl)
	}
	if !cfg.UsesAppliedLog() {
		t.Error("UsesAppliedLog should be true for sqlite")
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, t.TempDir(), ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.History != def.History || cfg.Specs != def.Specs || !cfg.Smart || cfg.UsesAppliedLog() {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	if _, err := Load(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
	cfg, err := LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Dir() != filepath.Dir(path) {
		t.Errorf("Dir = %q", cfg.Dir())
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	if _, err := Load(writeConfig(t, t.TempDir(), "histroy: x\n")); err == nil {
		t.Error("expected unknown key to be rejected")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SCHEMAFORGE_SMART", "false")
	t.Setenv("SCHEMAFORGE_APPLIED_DRIVER", "postgres")
	t.Setenv("SCHEMAFORGE_APPLIED_DSN", "postgres://localhost/app")
	t.Setenv("SCHEMAFORGE_OUTPUT", "generated")

	cfg, err := Load(writeConfig(t, t.TempDir(), "smart: true\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Smart || cfg.AppliedLog.Driver != "postgres" || cfg.AppliedLog.DSN != "postgres://localhost/app" || cfg.Output != "generated" {
		t.Errorf("environment not applied: %+v", cfg)
	}
}

func TestLoad_InvalidSmartEnv(t *testing.T) {
	t.Setenv("SCHEMAFORGE_SMART", "maybe")
	if _, err := Load(writeConfig(t, t.TempDir(), "")); err == nil || !strings.Contains(err.Error(), "SMART") {
		t.Errorf("expected invalid SMART error, got %v", err)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	const key = "SCHEMAFORGE_ARTIFACTS_PREFIX"
	if _, set := os.LookupEnv(key); set {
		t.Skipf("%s already set in the environment", key)
	}
	t.Cleanup(func() { os.Unsetenv(key) })

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(writeConfig(t, dir, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Artifacts.Prefix != "from-dotenv" {
		t.Errorf("prefix = %q, want from-dotenv", cfg.Artifacts.Prefix)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.AppliedLog.Driver = "oracle" }, "applied_log.driver"},
		{"driver without dsn", func(c *Config) { c.AppliedLog.Driver = "mysql" }, "applied_log.dsn"},
		{"unknown backend", func(c *Config) { c.Artifacts.Backend = "ftp" }, "artifacts.backend"},
		{"s3 without bucket", func(c *Config) { c.Artifacts.Backend = "s3" }, "artifacts.bucket"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"absolute output", func(c *Config) { c.Output = "/tmp/out" }, "relative"},
		{"empty history", func(c *Config) { c.History = "" }, "history"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestWrite_OmitsDSN(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.AppliedLog.Driver = "sqlite"
	cfg.AppliedLog.DSN = "secret.db"
	path := filepath.Join(dir, DefaultFile)
	if err := cfg.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "secret.db") {
		t.Error("DSN written to config file")
	}
	if !strings.Contains(string(data), "driver: sqlite") {
		t.Errorf("driver missing from written config:\n%s", data)
	}
}
