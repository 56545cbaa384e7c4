package meta

import (
	"context"

	"isle/internal/runtime/builtins"
	"isle/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.ToString,
			Name:       "toString",
			Arity:      1,
			ParamNames: []string{"value"},
			Doc:        "toString x prints x fully forced; strings are returned as is",
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			v, err := host.ForceDeep(ctx, args[0])
			if err != nil || v.IsError() {
				return v, err
			}
			if v.Kind == value.KindString {
				return v, nil
			}
			return value.Str(v.String()), nil
		},
	})
}
