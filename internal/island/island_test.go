package island_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"isle/internal/island"
	"isle/internal/value"
)

func names(subs []value.Subpath) string {
	var out []string
	for _, s := range subs {
		out = append(out, strings.Join(s, "/"))
	}
	return strings.Join(out, ",")
}

func TestFs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bee"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "a"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	fs, err := island.NewFs(value.Nope, value.ParseRootless(dir))
	if err != nil {
		t.Fatalf("NewFs: %v", err)
	}
	ctx := context.Background()

	b, err := fs.Read(ctx, value.Subpath{"b.txt"})
	if err != nil || string(b) != "bee" {
		t.Fatalf("expected bee, got %q (%v)", b, err)
	}
	if err := fs.Write(ctx, value.Subpath{"c", "d.txt"}, []byte("dee")); err != nil {
		t.Fatalf("write: %v", err)
	}
	on, err := os.ReadFile(filepath.Join(dir, "c", "d.txt"))
	if err != nil || string(on) != "dee" {
		t.Fatalf("expected dee on disk, got %q (%v)", on, err)
	}
	subs, err := fs.List(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := names(subs); got != "a,b.txt,c" {
		t.Fatalf("expected a,b.txt,c, got %s", got)
	}
	if !fs.IsWriteable(ctx) {
		t.Fatalf("expected fs to be writeable")
	}
	if _, err := fs.Read(ctx, value.Subpath{"missing"}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}

	if _, err := island.NewFs(value.Nope, value.NewPath(island.NewBlob("x"))); err == nil {
		t.Fatalf("expected a rooted path to be rejected")
	}
}

func TestBlob(t *testing.T) {
	b := island.NewBlob("hello world")
	got, err := b.Read(context.Background(), nil)
	if err != nil || string(got) != "hello world" {
		t.Fatalf("expected hello world, got %q (%v)", got, err)
	}
	if _, err := b.Read(context.Background(), value.Subpath{"x"}); !errors.Is(err, island.ErrBlobLeaf) {
		t.Fatalf("expected ErrBlobLeaf, got %v", err)
	}
	if err := b.Write(context.Background(), nil, []byte("x")); !errors.Is(err, value.ErrNotWritable) {
		t.Fatalf("expected ErrNotWritable, got %v", err)
	}
	if _, err := b.List(context.Background(), nil); !errors.Is(err, value.ErrNotListable) {
		t.Fatalf("expected ErrNotListable, got %v", err)
	}
}

func TestStandard(t *testing.T) {
	var out bytes.Buffer
	s := island.NewStandardWith(strings.NewReader("input"), &out)
	for i := 0; i < 2; i++ {
		got, err := s.Read(context.Background(), nil)
		if err != nil || string(got) != "input" {
			t.Fatalf("read %d: expected input, got %q (%v)", i, got, err)
		}
	}
	if err := s.Write(context.Background(), nil, []byte("out")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if out.String() != "out" {
		t.Fatalf("expected out, got %q", out.String())
	}
	if _, err := s.Read(context.Background(), value.Subpath{"x"}); !errors.Is(err, island.ErrStandardLeaf) {
		t.Fatalf("expected ErrStandardLeaf, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := island.DefaultRegistry()
	if got := strings.Join(reg.Types(), ","); got != "blob,fs,standard" {
		t.Fatalf("expected blob,fs,standard, got %s", got)
	}

	a, err := reg.Path("blob", "x")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	b, _ := reg.Path("blob", "x")
	if a != b {
		t.Fatalf("expected the same handle for the same island")
	}
	if typ, arg := reg.Key(a.Root()); typ != "blob" || arg != "x" {
		t.Fatalf("expected blob:x, got %s:%s", typ, arg)
	}

	if _, err := reg.Path("nowhere", ""); err == nil || !strings.Contains(err.Error(), `unknown island type "nowhere"`) {
		t.Fatalf("expected unknown island error, got %v", err)
	}
	if _, err := reg.Path("standard", "x"); err == nil {
		t.Fatalf("expected the standard island to reject an argument")
	}

	bound := reg.Bind("blob", "x", island.NewBlob("other"))
	c, _ := reg.Path("blob", "x")
	if c != bound {
		t.Fatalf("expected Bind to replace the cached handle")
	}

	if typ, arg := reg.Key(island.NewBlob("loose")); typ != "blob" || arg != "loose" {
		t.Fatalf("expected fallback to the root argument, got %s:%s", typ, arg)
	}
}
