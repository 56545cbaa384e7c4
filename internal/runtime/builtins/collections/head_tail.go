package collections

import (
	"context"

	"isle/internal/runtime/builtins"
	"isle/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Head,
			Name:       "head",
			Arity:      1,
			ParamNames: []string{"self"},
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			l, err := builtins.Force(ctx, host, "head", args[0], value.KindList, value.KindCons)
			if err != nil || l.IsError() {
				return l, err
			}
			if l.Kind == value.KindCons {
				return l.Cons.Fst, nil
			}
			v, ok := l.List.Head()
			if !ok {
				return value.ErrorOf("head: empty list"), nil
			}
			return v, nil
		},
	})

	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Tail,
			Name:       "tail",
			Arity:      1,
			ParamNames: []string{"self"},
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			l, err := builtins.Force(ctx, host, "tail", args[0], value.KindList, value.KindCons)
			if err != nil || l.IsError() {
				return l, err
			}
			if l.Kind == value.KindCons {
				return l.Cons.Snd, nil
			}
			if l.List.Len() == 0 {
				return value.ErrorOf("tail: empty list"), nil
			}
			return value.ListValue(l.List.Tail()), nil
		},
	})
}
