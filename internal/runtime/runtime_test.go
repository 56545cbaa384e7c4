package runtime_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"isle/internal/runtime"
	"isle/internal/runtime/builtins"
)

func run(t *testing.T, rt *runtime.Runtime, src string) string {
	t.Helper()
	v, compiled, err := rt.EvalString(context.Background(), "test", src)
	if err != nil {
		t.Fatalf("%q: %v", src, err)
	}
	if len(compiled.Reports) != 0 {
		t.Fatalf("%q: unexpected reports %v", src, compiled.Reports)
	}
	if v.IsError() {
		return "error: " + v.Err.Message()
	}
	return v.String()
}

func TestBuiltins(t *testing.T) {
	rt := runtime.New(nil, nil)
	tests := []struct {
		src      string
		expected string
	}{
		{"read <blob:hello>", `bytes("hello")`},
		{"bytesToString (read <blob:hi>)", `"hi"`},
		{`stringToBytes "ab"`, `bytes("ab")`},
		{"typeOf 1", `"integer"`},
		{"typeOf (x => x)", `"lambda"`},
		{`typeOf "s"`, `"string"`},
		{"typeOf read", `"native"`},
		{"toString [1, 2]", `"[1, 2]"`},
		{`toString "x"`, `"x"`},
		{`length "héllo"`, "5"},
		{"length [1, 2, 3]", "3"},
		{"length { a = 1; }", "1"},
		{"length (stringToBytes \"héllo\")", "6"},
		{"head [1, 2]", "1"},
		{"tail [1, 2]", "[2]"},
		{"head (1 : 2)", "1"},
		{"head []", "error: head: empty list"},
		{"map (x => x * 2) [1, 2, 3]", "[2, 4, 6]"},
		{"filter (x => x > 1) [1, 2, 3]", "[2, 3]"},
		{"filter (x => x) [1]", "error: filter: predicate returned integer for item 0, expected a boolean"},
		{`toUpper "abc"`, `"ABC"`},
		{`toLower "ABC"`, `"abc"`},
		{`split "," "a,b"`, `["a", "b"]`},
		{`let splitComma = split "," in splitComma "x,y,z"`, `["x", "y", "z"]`},
		{"read 1", "error: read: expected path, got integer"},
		{"head (map (x => 1 / x) [1, 0])", "1"},
		{"read <blob:x>/nested", "error: read <blob:x>/nested: blob only contains a single leaf"},
		{"exists <blob:x>", "true"},
		{"exists <blob:x>/no", "false"},
		{"write <blob:x> \"y\"", "error: write: <blob:x> is not writeable"},
	}
	for _, tt := range tests {
		if got := run(t, rt, tt.src); got != tt.expected {
			t.Errorf("%q: expected %s, got %s", tt.src, tt.expected, got)
		}
	}
}

func TestBuiltins_Fs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("A"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rt := runtime.New(nil, nil)
	island := "<fs:" + dir + ">"

	tests := []struct {
		src      string
		expected string
	}{
		{"bytesToString (read " + island + "/a.txt)", `"A"`},
		{"bytesToString (read (write " + island + "/b/c.txt \"data\"))", `"data"`},
		{"length (list " + island + ")", "2"},
		{"exists " + island + "/a.txt", "true"},
		{"exists " + island + "/b", "true"},
		{"exists " + island + "/missing", "false"},
	}
	for _, tt := range tests {
		if got := run(t, rt, tt.src); got != tt.expected {
			t.Errorf("%q: expected %s, got %s", tt.src, tt.expected, got)
		}
	}
	b, err := os.ReadFile(filepath.Join(dir, "b", "c.txt"))
	if err != nil || string(b) != "data" {
		t.Fatalf("expected data on disk, got %q (%v)", b, err)
	}
}

func TestRuntime_RelativeToSource(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.isle")
	if err := os.WriteFile(filepath.Join(dir, "data.txt"), []byte("payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rt := runtime.New(nil, nil)
	src, err := rt.SourcePath(main)
	if err != nil {
		t.Fatalf("source path: %v", err)
	}
	compiled, err := rt.Compile(main, "bytesToString (read ./data.txt)", src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	v, err := rt.Evaluate(context.Background(), compiled.Code)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v.String() != `"payload"` {
		t.Fatalf("expected payload, got %s", v)
	}
}

func TestRuntime_SourceErrors(t *testing.T) {
	rt := runtime.New(nil, nil)
	_, _, err := rt.EvalString(context.Background(), "bad", "1 +")
	var srcErr *runtime.SourceError
	if !errors.As(err, &srcErr) || srcErr.Name != "bad" {
		t.Fatalf("expected a SourceError, got %v", err)
	}

	_, compiled, err := rt.EvalString(context.Background(), "dup", "{ a = 1; a = 2; }")
	if !errors.As(err, &srcErr) || len(srcErr.Reports) == 0 || compiled == nil {
		t.Fatalf("expected compile reports, got %v", err)
	}
	if !strings.Contains(err.Error(), "duplicate binding 'a'") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRegistry_All(t *testing.T) {
	var names []string
	for _, m := range builtins.All() {
		names = append(names, m.Name)
		if len(m.ParamNames) != m.Arity {
			t.Errorf("%s: %d param names for arity %d", m.Name, len(m.ParamNames), m.Arity)
		}
	}
	expected := "bytesToString,exists,filter,head,length,list,map,read,split,stringToBytes,tail,toLower,toString,toUpper,typeOf,write"
	if got := strings.Join(names, ","); got != expected {
		t.Fatalf("expected %s, got %s", expected, got)
	}
	if builtins.LookupByName("read") == nil || builtins.LookupByID(builtins.Split) == nil {
		t.Fatalf("expected lookups to find registered builtins")
	}
	if builtins.LookupByName("nothing") != nil {
		t.Fatalf("expected no builtin named nothing")
	}
}

func TestRegister_PanicsOnDuplicates(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic")
		}
	}()
	builtins.Register(*builtins.LookupByName("read"))
}
