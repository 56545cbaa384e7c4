package collections_test

import (
	"context"
	"sync/atomic"
	"testing"

	"isle/internal/runtime/builtins"
	_ "isle/internal/runtime/builtins/collections"
	"isle/internal/value"
	"isle/internal/vm"
)

func ints(ns ...int64) value.Value {
	items := make([]value.Value, len(ns))
	for i, n := range ns {
		items[i] = value.Int(n)
	}
	return value.ListOf(items...)
}

func native(name string, fn func(value.Value) value.Value) value.Value {
	return value.NativeOf(name, 1, func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
		v, err := host.Force(ctx, args[0])
		if err != nil || v.IsError() {
			return v, err
		}
		return fn(v), nil
	})
}

func call(t *testing.T, name string, args ...value.Value) string {
	t.Helper()
	b := builtins.LookupByName(name)
	if b == nil {
		t.Fatalf("expected %s to be registered", name)
	}
	host := vm.New().Host(value.Location{})
	v, err := b.Call(context.Background(), host, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	v, err = host.ForceDeep(context.Background(), v)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if v.IsError() {
		return "error: " + v.Err.Message()
	}
	return v.String()
}

func TestMapFilter(t *testing.T) {
	double := native("double", func(v value.Value) value.Value { return value.Int(v.Int.Int64() * 2) })
	odd := native("odd", func(v value.Value) value.Value { return value.Bool(v.Int.Bit(0) == 1) })
	self := native("self", func(v value.Value) value.Value { return v })

	tests := []struct {
		name     string
		args     []value.Value
		expected string
	}{
		{"map", []value.Value{double, ints(1, 2, 3)}, "[2, 4, 6]"},
		{"map", []value.Value{double, value.Nil}, "[]"},
		{"map", []value.Value{double, value.Int(1)}, "error: map: expected list, got integer"},
		{"filter", []value.Value{odd, ints(1, 2, 3, 4, 5)}, "[1, 3, 5]"},
		{"filter", []value.Value{odd, ints(2, 4)}, "[]"},
		{"filter", []value.Value{self, ints(1)}, "error: filter: predicate returned integer for item 0, expected a boolean"},
		{"filter", []value.Value{odd, value.Str("x")}, "error: filter: expected list, got string"},
	}
	for _, tt := range tests {
		if got := call(t, tt.name, tt.args...); got != tt.expected {
			t.Errorf("%s %v: expected %s, got %s", tt.name, tt.args[1], tt.expected, got)
		}
	}
}

func TestMap_IsLazyPerItem(t *testing.T) {
	var calls atomic.Int32
	count := native("count", func(v value.Value) value.Value {
		calls.Add(1)
		return v
	})
	m := builtins.LookupByName("map")
	host := vm.New().Host(value.Location{})
	v, err := m.Call(context.Background(), host, []value.Value{count, ints(1, 2, 3)})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("expected no application before forcing, got %d", n)
	}
	head, ok := v.List.Head()
	if !ok {
		t.Fatalf("expected a non-empty list")
	}
	if got, err := host.Force(context.Background(), head); err != nil || got.String() != "1" {
		t.Fatalf("expected 1, got %s (%v)", got, err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected one application, got %d", n)
	}
}
