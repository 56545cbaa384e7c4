package bytes

import (
	"context"
	"unicode/utf8"

	"isle/internal/runtime/builtins"
	"isle/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.BytesToString,
			Name:       "bytesToString",
			Arity:      1,
			ParamNames: []string{"bytes"},
			Doc:        "bytesToString b decodes UTF-8 bytes",
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			b, err := builtins.Force(ctx, host, "bytesToString", args[0], value.KindBytes)
			if err != nil || b.IsError() {
				return b, err
			}
			if !utf8.Valid(b.Bytes) {
				return value.ErrorOf("bytesToString: invalid UTF-8"), nil
			}
			return value.Str(string(b.Bytes)), nil
		},
	})

	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.StringToBytes,
			Name:       "stringToBytes",
			Arity:      1,
			ParamNames: []string{"string"},
			Doc:        "stringToBytes s encodes s as UTF-8",
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			s, err := builtins.Force(ctx, host, "stringToBytes", args[0], value.KindString)
			if err != nil || s.IsError() {
				return s, err
			}
			return value.BytesOf([]byte(s.Str)), nil
		},
	})
}
