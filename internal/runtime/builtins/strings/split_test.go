package strings_test

import (
	"context"
	"testing"

	"isle/internal/runtime/builtins"
	_ "isle/internal/runtime/builtins/strings"
	"isle/internal/value"
	"isle/internal/vm"
)

func TestSplit(t *testing.T) {
	split := builtins.LookupByName("split")
	if split == nil {
		t.Fatalf("expected split to be registered")
	}
	host := vm.New().Host(value.Location{})
	tests := []struct {
		sep, s   value.Value
		expected string
	}{
		{value.Str(","), value.Str("a,b"), `["a", "b"]`},
		{value.Str(","), value.Str("a"), `["a"]`},
		{value.Str(","), value.Str(",a,"), `["", "a", ""]`},
		{value.Str(""), value.Str("héh"), `["h", "é", "h"]`},
		{value.Str(", "), value.Str("x, y, z"), `["x", "y", "z"]`},
		{value.Int(1), value.Str("a"), "split: expected string, got integer"},
		{value.Str(","), value.Int(1), "split: expected string, got integer"},
	}
	for _, tt := range tests {
		v, err := split.Call(context.Background(), host, []value.Value{tt.sep, tt.s})
		if err != nil {
			t.Fatalf("split %s %s: %v", tt.sep, tt.s, err)
		}
		got := v.String()
		if v.IsError() {
			got = v.Err.Message()
		}
		if got != tt.expected {
			t.Errorf("split %s %s: expected %s, got %s", tt.sep, tt.s, tt.expected, got)
		}
	}
}

func TestSplit_ForcesLazyArguments(t *testing.T) {
	split := builtins.LookupByName("split")
	host := vm.New().Host(value.Location{})
	lazy := value.ThunkOf(value.NewNativeThunk(value.Location{}, func(context.Context) (value.Value, error) {
		return value.Str("1;2"), nil
	}))
	v, err := split.Call(context.Background(), host, []value.Value{value.Str(";"), lazy})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if got := v.String(); got != `["1", "2"]` {
		t.Fatalf(`expected ["1", "2"], got %s`, got)
	}
}
