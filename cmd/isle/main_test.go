package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"isle/internal/config"
	"isle/internal/runtime"
)

func TestIncomplete(t *testing.T) {
	tests := []struct {
		src      string
		expected bool
	}{
		{"1 + 2", false},
		{"1 +", true},
		{"let x = 1 in", true},
		{"{ a = 1;", true},
		{`"open`, true},
		{":dis 1 +", true},
		{"1 2 )", false},
	}
	for _, tt := range tests {
		if got := incomplete(tt.src); got != tt.expected {
			t.Errorf("%q: expected %v, got %v", tt.src, tt.expected, got)
		}
	}
}

func TestRegistry_SQL(t *testing.T) {
	cfg := config.Default()
	cfg.Islands.SQL = &config.SQL{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "islands.db")}
	reg, err := registry(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	defer cleanup()

	a := &app{cfg: cfg, logger: slog.Default(), rt: runtime.New(reg, nil)}
	compiled, err := a.compile("<test>", `bytesToString (read (write <sql:docs>/a/b "stored"))`, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var out bytes.Buffer
	if err := a.evaluate(&out, compiled.Code); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != `"stored"` {
		t.Fatalf("expected stored, got %s", got)
	}
}

func TestLoadCode_BuildAndRun(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.isle")
	if err := os.WriteFile(src, []byte("let double = x => x * 2 in double 21"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "isle.toml"), []byte("[codec]\ncompression = \"xz\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := filepath.Join(dir, "main.isc")
	if err := cmdBuild([]string{"-config", filepath.Join(dir, "isle.toml"), "-o", out, src}); err != nil {
		t.Fatalf("build: %v", err)
	}

	a, err := setup(filepath.Join(dir, "isle.toml"))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	for _, file := range []string{src, out} {
		code, err := a.loadCode(file)
		if err != nil {
			t.Fatalf("%s: %v", file, err)
		}
		var buf bytes.Buffer
		if err := a.evaluate(&buf, code); err != nil {
			t.Fatalf("%s: %v", file, err)
		}
		if got := strings.TrimSpace(buf.String()); got != "42" {
			t.Fatalf("%s: expected 42, got %s", file, got)
		}
	}

	if _, err := a.loadCode(filepath.Join(dir, "main.txt")); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}
