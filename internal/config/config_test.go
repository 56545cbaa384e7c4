package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"isle/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "isle.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"
format = "json"

[codec]
compression = "xz"

[run]
timeout = "2s"

[islands.s3]
region = "eu-west-1"
endpoint = "http://localhost:9000"
force_path_style = true

[islands.sql]
driver = "sqlite"
dsn = "file:test.db"
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log section %+v", cfg.Log)
	}
	if cfg.Codec.Compression != "xz" {
		t.Fatalf("expected xz, got %q", cfg.Codec.Compression)
	}
	if d, _ := cfg.Run.Duration(); d != 2*time.Second {
		t.Fatalf("expected 2s, got %v", d)
	}
	if cfg.Islands.S3 == nil || cfg.Islands.S3.Region != "eu-west-1" || !cfg.Islands.S3.ForcePathStyle {
		t.Fatalf("unexpected s3 section %+v", cfg.Islands.S3)
	}
	if cfg.Islands.SQL == nil || cfg.Islands.SQL.Driver != "sqlite" {
		t.Fatalf("unexpected sql section %+v", cfg.Islands.SQL)
	}
}

func TestLoad_KeepsDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "[codec]\ncompression = \"lz4\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "warn" || cfg.Log.Format != "text" {
		t.Fatalf("expected default log section, got %+v", cfg.Log)
	}
	if cfg.Islands.S3 != nil || cfg.Islands.SQL != nil {
		t.Fatalf("expected no islands configured")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		body     string
		expected string
	}{
		{"[log]\nlevel = \"loud\"\n", "unknown level"},
		{"[log]\nformat = \"xml\"\n", "unknown format"},
		{"[codec]\ncompression = \"zip\"\n", "unknown codec"},
		{"[run]\ntimeout = \"soon\"\n", "run.timeout"},
		{"[islands.sql]\ndriver = \"oracle\"\ndsn = \"x\"\n", "unknown driver"},
		{"[islands.sql]\ndriver = \"sqlite\"\n", "dsn: missing"},
		{"[log]\ncolour = true\n", "unknown keys log.colour"},
		{"[log\n", "config"},
	}
	for _, tt := range tests {
		_, err := config.Load(writeConfig(t, tt.body))
		if err == nil || !strings.Contains(err.Error(), tt.expected) {
			t.Errorf("%q: expected error containing %q, got %v", tt.body, tt.expected, err)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	cfg, err := config.Resolve("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg != config.Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}

	t.Setenv(config.EnvVar, writeConfig(t, "[log]\nlevel = \"info\"\n"))
	cfg, err = config.Resolve("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected level from %s, got %q", config.EnvVar, cfg.Log.Level)
	}

	if _, err := config.Resolve(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog, err := config.Log{Level: "info", Format: "json"}.Logger(&buf)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	defer closeLog()
	logger.Debug("hidden")
	logger.Info("shown", "k", 1)
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected log output %q", out)
	}

	file := filepath.Join(t.TempDir(), "isle.log")
	logger, closeLog, err = config.Log{Level: "debug", Format: "text", File: file}.Logger(&buf)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	logger.Debug("to file")
	if err := closeLog(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, _ := os.ReadFile(file)
	if !strings.Contains(string(b), "to file") {
		t.Fatalf("expected file output, got %q", b)
	}
}
