package meta

import (
	"context"

	"isle/internal/runtime/builtins"
	"isle/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.TypeOf,
			Name:       "typeOf",
			Arity:      1,
			ParamNames: []string{"value"},
			Doc:        "typeOf x names the kind of x",
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			v, err := host.Force(ctx, args[0])
			if err != nil {
				return value.Value{}, err
			}
			if v.Kind == value.KindBlueprint {
				return value.Str("lambda"), nil
			}
			return value.Str(v.Kind.String()), nil
		},
	})
}
