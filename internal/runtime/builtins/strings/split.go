package strings

import (
	"context"
	"strings"

	"isle/internal/runtime/builtins"
	"isle/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Split,
			Name:       "split",
			Arity:      2,
			ParamNames: []string{"sep", "self"},
			Doc:        "split sep s cuts s around every sep",
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			sep, err := builtins.Force(ctx, host, "split", args[0], value.KindString)
			if err != nil || sep.IsError() {
				return sep, err
			}
			s, err := builtins.Force(ctx, host, "split", args[1], value.KindString)
			if err != nil || s.IsError() {
				return s, err
			}

			parts := strings.Split(s.Str, sep.Str)
			result := make([]value.Value, len(parts))
			for i, part := range parts {
				result[i] = value.Str(part)
			}
			return value.ListOf(result...), nil
		},
	})
}
