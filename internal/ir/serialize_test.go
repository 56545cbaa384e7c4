package ir_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"isle/internal/ir"
	"isle/internal/island"
	"isle/internal/value"
	"isle/internal/vm"
)

const roundTripSource = `let f = x => x + 1; p = <blob:hi> in [f 2, 'c', 1.5, "s", p, { a = -3; }]`

func evaluate(t *testing.T, code *value.Code) value.Value {
	t.Helper()
	m := vm.New()
	v, err := m.Evaluate(context.Background(), code, value.Scopes{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	v, err = m.ForceDeep(context.Background(), v)
	if err != nil {
		t.Fatalf("force: %v", err)
	}
	return v
}

func TestSerialize_RoundTrip(t *testing.T) {
	for _, codec := range []ir.Codec{ir.CodecNone, ir.CodecLZ4, ir.CodecXZ} {
		t.Run(codec.String(), func(t *testing.T) {
			reg := island.DefaultRegistry()
			c := compileSource(t, roundTripSource, ir.Options{Registry: reg})
			if c.Failed() {
				t.Fatalf("compile: %v", c.Err())
			}

			var buf bytes.Buffer
			if err := ir.WriteCode(&buf, c.Code, codec, reg); err != nil {
				t.Fatalf("write: %v", err)
			}
			if !bytes.HasPrefix(buf.Bytes(), []byte("ISC1")) {
				t.Fatalf("expected magic header, got %q", buf.Bytes()[:4])
			}
			got, err := ir.ReadCode(&buf, reg)
			if err != nil {
				t.Fatalf("read: %v", err)
			}

			if !bytes.Equal(got.Bytes(), c.Code.Bytes()) {
				t.Fatalf("instruction bytes differ")
			}
			if len(got.Locations()) != len(c.Code.Locations()) {
				t.Fatalf("expected %d locations, got %d", len(c.Code.Locations()), len(got.Locations()))
			}

			want := evaluate(t, c.Code)
			have := evaluate(t, got)
			if want.String() != have.String() {
				t.Fatalf("expected %s, got %s", want, have)
			}
			expected := `[3, 'c', 1.5, "s", <blob:hi>, { a = -3; }]`
			if have.String() != expected {
				t.Fatalf("expected %s, got %s", expected, have)
			}

			items := have.List.Slice()
			if !items[4].Path.Equal(want.List.Slice()[4].Path) {
				t.Fatalf("expected the path to resolve to the same island")
			}
		})
	}
}

func TestSerialize_File(t *testing.T) {
	reg := island.DefaultRegistry()
	c := compileSource(t, `"hello" ++ " world"`, ir.Options{Registry: reg})
	file := filepath.Join(t.TempDir(), "out.isc")
	if err := ir.WriteCodeToFile(file, c.Code, ir.CodecLZ4, reg); err != nil {
		t.Fatalf("write: %v", err)
	}
	code, err := ir.ReadCodeFromFile(file, reg)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := evaluate(t, code).String(); got != `"hello world"` {
		t.Fatalf("expected %q, got %s", "hello world", got)
	}
}

func TestSerialize_Errors(t *testing.T) {
	if _, err := ir.ReadCode(strings.NewReader("NOPE\x00"), nil); err == nil || !strings.Contains(err.Error(), "bad magic") {
		t.Fatalf("expected bad magic error, got %v", err)
	}
	if _, err := ir.ReadCode(strings.NewReader("ISC1\x09"), nil); err == nil || !strings.Contains(err.Error(), "unknown codec") {
		t.Fatalf("expected unknown codec error, got %v", err)
	}
	if _, err := ir.ReadCode(strings.NewReader("ISC1\x00\x01"), nil); err == nil {
		t.Fatalf("expected truncated body error")
	}

	reg := island.DefaultRegistry()
	c := compileSource(t, "<blob:x>", ir.Options{Registry: reg})
	var buf bytes.Buffer
	if err := ir.WriteCode(&buf, c.Code, ir.CodecNone, reg); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ir.ReadCode(&buf, island.NewRegistry())
	if err == nil || !strings.Contains(err.Error(), "unknown island type") {
		t.Fatalf("expected unknown island error, got %v", err)
	}
}

func TestParseCodec(t *testing.T) {
	tests := []struct {
		name     string
		expected ir.Codec
		fails    bool
	}{
		{"", ir.CodecNone, false},
		{"none", ir.CodecNone, false},
		{"lz4", ir.CodecLZ4, false},
		{"xz", ir.CodecXZ, false},
		{"zip", 0, true},
	}
	for _, tt := range tests {
		got, err := ir.ParseCodec(tt.name)
		if (err != nil) != tt.fails {
			t.Fatalf("%q: unexpected error %v", tt.name, err)
		}
		if got != tt.expected {
			t.Errorf("%q: expected %s, got %s", tt.name, tt.expected, got)
		}
	}
}

func TestDisassemble(t *testing.T) {
	c := compileSource(t, "let f = x => x * 2 in { a = f 1; }", ir.Options{})
	var buf bytes.Buffer
	if err := ir.Disassemble(&buf, c.Code); err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"code:", "ScopeStart", "ScopeSwap", "Return", "(x =>)", "Multiplication", "#0"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected listing to contain %q:\n%s", want, out)
		}
	}
}
