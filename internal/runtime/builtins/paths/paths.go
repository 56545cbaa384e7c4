// Package paths binds the island I/O builtins: read, list, write and exists.
package paths

import (
	"context"
	"errors"

	"isle/internal/runtime/builtins"
	"isle/internal/value"
)

func init() {
	registerRead()
	registerList()
	registerWrite()
	registerExists()
}

// hostFailure keeps cancellation a Go error and turns everything else into a
// language level error.
func hostFailure(name string, err error) (value.Value, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return value.Value{}, err
	}
	return builtins.HostError(name, err), nil
}

func registerRead() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Read,
			Name:       "read",
			Arity:      1,
			ParamNames: []string{"path"},
			Doc:        "read path returns the bytes of the leaf at path",
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			p, err := builtins.Force(ctx, host, "read", args[0], value.KindPath)
			if err != nil || p.IsError() {
				return p, err
			}
			b, err := p.Path.Read(ctx)
			if err != nil {
				return hostFailure("read "+p.Path.String(), err)
			}
			return value.BytesOf(b), nil
		},
	})
}

func registerList() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.List,
			Name:       "list",
			Arity:      1,
			ParamNames: []string{"path"},
			Doc:        "list path returns the children of path as paths",
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			p, err := builtins.Force(ctx, host, "list", args[0], value.KindPath)
			if err != nil || p.IsError() {
				return p, err
			}
			subs, err := p.Path.List(ctx)
			if err != nil {
				return hostFailure("list "+p.Path.String(), err)
			}
			out := make([]value.Value, len(subs))
			for i, sub := range subs {
				out[i] = value.PathOf(p.Path.WithSubpath(p.Path.Subpath().Append(sub...)))
			}
			return value.ListOf(out...), nil
		},
	})
}

func registerWrite() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Write,
			Name:       "write",
			Arity:      2,
			ParamNames: []string{"path", "content"},
			Doc:        "write path content stores bytes or a string at path and returns path",
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			p, err := builtins.Force(ctx, host, "write", args[0], value.KindPath)
			if err != nil || p.IsError() {
				return p, err
			}
			content, err := builtins.Force(ctx, host, "write", args[1], value.KindBytes, value.KindString)
			if err != nil || content.IsError() {
				return content, err
			}
			b := content.Bytes
			if content.Kind == value.KindString {
				b = []byte(content.Str)
			}
			if !p.Path.IsRootless() && !p.Path.Root().IsWriteable(ctx) {
				return value.Errorf("write: %s is not writeable", p.Path), nil
			}
			if err := p.Path.Write(ctx, b); err != nil {
				return hostFailure("write "+p.Path.String(), err)
			}
			return p, nil
		},
	})
}

func registerExists() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Exists,
			Name:       "exists",
			Arity:      1,
			ParamNames: []string{"path"},
			Doc:        "exists path is true when path can be read or listed",
		},
		Call: func(ctx context.Context, host value.Host, args []value.Value) (value.Value, error) {
			p, err := builtins.Force(ctx, host, "exists", args[0], value.KindPath)
			if err != nil || p.IsError() {
				return p, err
			}
			if _, err := p.Path.Read(ctx); err == nil {
				return value.True, nil
			}
			if _, err := p.Path.List(ctx); err == nil {
				return value.True, nil
			}
			if err := ctx.Err(); err != nil {
				return value.Value{}, err
			}
			return value.False, nil
		},
	})
}
