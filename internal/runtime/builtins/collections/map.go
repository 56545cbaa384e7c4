package collections

import (
	"context"

	"isle/internal/runtime/builtins"
	"isle/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Map,
			Name:       "map",
			Arity:      2,
			ParamNames: []string{"fn", "self"},
			Doc:        "map f l applies f to every item of l; each application is deferred",
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			l, err := builtins.Force(ctx, host, "map", args[1], value.KindList)
			if err != nil || l.IsError() {
				return l, err
			}
			fn := args[0]
			items := l.List.Slice()
			for i, item := range items {
				item := item
				items[i] = value.ThunkOf(value.NewNativeThunk(value.Location{}, func(ctx context.Context) (value.Value, error) {
					return host.Call(ctx, fn, item)
				}))
			}
			return value.ListOf(items...), nil
		},
	})
}
