package paths_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"isle/internal/island"
	"isle/internal/runtime/builtins"
	_ "isle/internal/runtime/builtins/paths"
	"isle/internal/value"
	"isle/internal/vm"
)

func fsRoot(t *testing.T) (value.Root, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := island.NewFs(value.Nope, value.ParseRootless(dir))
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	return fs, dir
}

func call(t *testing.T, name string, args ...value.Value) value.Value {
	t.Helper()
	b := builtins.LookupByName(name)
	if b == nil {
		t.Fatalf("expected %s to be registered", name)
	}
	v, err := b.Call(context.Background(), vm.New().Host(value.Location{}), args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func TestWrite(t *testing.T) {
	root, dir := fsRoot(t)
	tests := []struct {
		subpath  []string
		content  value.Value
		expected string
	}{
		{[]string{"a.txt"}, value.Str("text"), "text"},
		{[]string{"nested", "b.bin"}, value.BytesOf([]byte{0, 1}), "\x00\x01"},
	}
	for _, tt := range tests {
		p := value.PathOf(value.NewPath(root, tt.subpath...))
		v := call(t, "write", p, tt.content)
		if v.IsError() {
			t.Fatalf("%v: unexpected error %v", tt.subpath, v.Err)
		}
		if !v.Path.Equal(p.Path) {
			t.Fatalf("%v: expected write to return its path, got %s", tt.subpath, v)
		}
		b, err := os.ReadFile(filepath.Join(append([]string{dir}, tt.subpath...)...))
		if err != nil || string(b) != tt.expected {
			t.Fatalf("%v: expected %q on disk, got %q (%v)", tt.subpath, tt.expected, b, err)
		}
	}
}

func TestWrite_Errors(t *testing.T) {
	root, _ := fsRoot(t)
	tests := []struct {
		path, content value.Value
		message       string
	}{
		{value.Int(1), value.Str("x"), "write: expected path, got integer"},
		{value.PathOf(value.NewPath(root, "a")), value.Int(1), "write: expected bytes or string, got integer"},
		{value.PathOf(value.NewPath(island.NewBlob("b"))), value.Str("x"), "write: <blob:b> is not writeable"},
	}
	for _, tt := range tests {
		v := call(t, "write", tt.path, tt.content)
		if !v.IsError() || v.Err.Message() != tt.message {
			t.Errorf("write %s %s: expected error %q, got %s", tt.path, tt.content, tt.message, v)
		}
	}
}

func TestExists(t *testing.T) {
	root, dir := fsRoot(t)
	if err := os.MkdirAll(filepath.Join(dir, "d"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "d", "f.txt"), []byte("f"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tests := []struct {
		subpath  []string
		expected string
	}{
		{[]string{"d", "f.txt"}, "true"},
		{[]string{"d"}, "true"},
		{[]string{"missing"}, "false"},
		{[]string{"d", "f.txt", "below"}, "false"},
	}
	for _, tt := range tests {
		v := call(t, "exists", value.PathOf(value.NewPath(root, tt.subpath...)))
		if got := v.String(); got != tt.expected {
			t.Errorf("%v: expected %s, got %s", tt.subpath, tt.expected, got)
		}
	}

	fresh := value.PathOf(value.NewPath(root, "later.txt"))
	if v := call(t, "write", fresh, value.Str("now")); v.IsError() {
		t.Fatalf("write: %v", v.Err)
	}
	if v := call(t, "exists", value.PathOf(value.NewPath(root, "later.txt"))); v.String() != "true" {
		t.Fatalf("expected a written path to exist, got %s", v)
	}
	if v := call(t, "exists", value.Str("x")); !v.IsError() {
		t.Fatalf("expected an error for a string, got %s", v)
	}
}
