package collections

import (
	"context"

	"isle/internal/runtime/builtins"
	"isle/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Filter,
			Name:       "filter",
			Arity:      2,
			ParamNames: []string{"fn", "self"},
			Doc:        "filter f l keeps the items of l for which f returns true",
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			l, err := builtins.Force(ctx, host, "filter", args[1], value.KindList)
			if err != nil || l.IsError() {
				return l, err
			}
			var kept []value.Value
			for i, item := range l.List.Slice() {
				keep, err := host.Call(ctx, args[0], item)
				if err != nil {
					return value.Value{}, err
				}
				keep, err = host.Force(ctx, keep)
				if err != nil || keep.IsError() {
					return keep, err
				}
				if keep.Kind != value.KindBoolean {
					return value.Errorf("filter: predicate returned %s for item %d, expected a boolean", keep.Kind, i), nil
				}
				if keep.Bool {
					kept = append(kept, item)
				}
			}
			return value.ListOf(kept...), nil
		},
	})
}
