package collections

import (
	"context"
	"unicode/utf8"

	"isle/internal/runtime/builtins"
	"isle/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Length,
			Name:       "length",
			Arity:      1,
			ParamNames: []string{"self"},
			Doc:        "length x counts list items, string runes, bytes or attributes",
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			v, err := builtins.Force(ctx, host, "length", args[0],
				value.KindList, value.KindString, value.KindBytes, value.KindAttributes)
			if err != nil || v.IsError() {
				return v, err
			}
			switch v.Kind {
			case value.KindList:
				return value.Int(int64(v.List.Len())), nil
			case value.KindString:
				return value.Int(int64(utf8.RuneCountInString(v.Str))), nil
			case value.KindBytes:
				return value.Int(int64(len(v.Bytes))), nil
			default:
				return value.Int(int64(v.Attrs.Len())), nil
			}
		},
	})
}
