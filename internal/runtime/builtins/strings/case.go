package strings

import (
	"context"
	"strings"

	"isle/internal/runtime/builtins"
	"isle/internal/value"
)

func init() {
	registerCase(builtins.ToUpper, "toUpper", strings.ToUpper)
	registerCase(builtins.ToLower, "toLower", strings.ToLower)
}

func registerCase(id builtins.ID, name string, fn func(string) string) {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         id,
			Name:       name,
			Arity:      1,
			ParamNames: []string{"self"},
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			s, err := builtins.Force(ctx, host, name, args[0], value.KindString)
			if err != nil || s.IsError() {
				return s, err
			}
			return value.Str(fn(s.Str)), nil
		},
	})
}
