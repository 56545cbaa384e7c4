package value

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	ErrNotListable = errors.New("root does not support listing")
	ErrNotWritable = errors.New("root does not support writing")
	ErrRootless    = errors.New("path has no root")
)

// Subpath is an ordered sequence of name parts. Subpaths are never mutated
// after construction.
type Subpath []string

func (s Subpath) Append(parts ...string) Subpath {
	out := make(Subpath, 0, len(s)+len(parts))
	out = append(out, s...)
	return append(out, parts...)
}

func (s Subpath) Equal(o Subpath) bool { return slices.Equal(s, o) }

// key identifies s in the path caches. Every part is terminated by a NUL so
// that parts holding "/" do not collide with split ones.
func (s Subpath) key() string {
	var b strings.Builder
	for _, part := range s {
		b.WriteString(part)
		b.WriteByte(0)
	}
	return b.String()
}

// Root is an island: a provider of leaves addressed by subpaths. Roots must
// be safe for concurrent use and comparable (usually pointers).
type Root interface {
	Type() string
	Config() (Value, bool)
	Path() (Value, bool)
	List(ctx context.Context, subpath Subpath) ([]Subpath, error)
	Read(ctx context.Context, subpath Subpath) ([]byte, error)
	IsWriteable(ctx context.Context) bool
	Write(ctx context.Context, subpath Subpath, content []byte) error
}

// BaseRoot supplies the optional parts of Root. Embed it and override.
type BaseRoot struct{}

func (BaseRoot) Config() (Value, bool) { return Value{}, false }

func (BaseRoot) Path() (Value, bool) { return Value{}, false }

func (BaseRoot) List(context.Context, Subpath) ([]Subpath, error) {
	return nil, ErrNotListable
}

func (BaseRoot) IsWriteable(context.Context) bool { return false }

func (BaseRoot) Write(context.Context, Subpath, []byte) error {
	return ErrNotWritable
}

type result[T any] struct {
	value T
	err   error
}

// onceMap computes each key at most once. Concurrent callers share the
// in-flight call and later callers get the stored result, failures included.
// The shared call does not inherit the cancellation of whoever started it;
// each caller stops waiting when its own ctx is done.
type onceMap[T any] struct {
	group singleflight.Group
	done  sync.Map
}

func (m *onceMap[T]) do(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	if r, ok := m.done.Load(key); ok {
		res := r.(result[T])
		return res.value, res.err
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		if r, ok := m.done.Load(key); ok {
			res := r.(result[T])
			return res.value, res.err
		}
		value, err := fn(shared)
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			m.done.Store(key, result[T]{value: value, err: err})
		}
		return value, err
	})
	select {
	case r := <-ch:
		out, _ := r.Val.(T)
		return out, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

type pathCache struct {
	reads onceMap[[]byte]
	lists onceMap[[]Subpath]
}

// Path is a first-class path handle: an optional root plus a subpath. All
// handles derived from one another through Get share read and list caches.
type Path struct {
	root    Root
	subpath Subpath
	cache   *pathCache
}

func NewPath(root Root, subpath ...string) *Path {
	return &Path{root: root, subpath: Subpath(subpath).Append(), cache: &pathCache{}}
}

// RootlessPath returns a path without a root. A leading "" part marks an
// absolute path.
func RootlessPath(parts ...string) *Path {
	return NewPath(nil, parts...)
}

// ParseRootless splits a slash separated host path into a rootless path.
func ParseRootless(s string) *Path {
	var parts []string
	if strings.HasPrefix(s, "/") {
		parts = append(parts, "")
	}
	for _, part := range strings.Split(s, "/") {
		if part == "" || part == "." {
			continue
		}
		parts = append(parts, part)
	}
	return RootlessPath(parts...)
}

func (p *Path) Root() Root { return p.root }

func (p *Path) Subpath() Subpath { return p.subpath }

func (p *Path) IsRootless() bool { return p.root == nil }

// Get returns a handle with part appended. It shares p's caches.
func (p *Path) Get(part string) *Path {
	return &Path{root: p.root, subpath: p.subpath.Append(part), cache: p.cache}
}

// WithSubpath returns a handle over the same root and caches at subpath.
func (p *Path) WithSubpath(subpath Subpath) *Path {
	return &Path{root: p.root, subpath: subpath, cache: p.cache}
}

func (p *Path) Read(ctx context.Context) ([]byte, error) {
	if p.root == nil {
		return nil, ErrRootless
	}
	return p.cache.reads.do(ctx, p.subpath.key(), func(ctx context.Context) ([]byte, error) {
		return p.root.Read(ctx, p.subpath)
	})
}

func (p *Path) List(ctx context.Context) ([]Subpath, error) {
	if p.root == nil {
		return nil, ErrRootless
	}
	return p.cache.lists.do(ctx, p.subpath.key(), func(ctx context.Context) ([]Subpath, error) {
		return p.root.List(ctx, p.subpath)
	})
}

func (p *Path) Write(ctx context.Context, content []byte) error {
	if p.root == nil {
		return ErrRootless
	}
	return p.root.Write(ctx, p.subpath, content)
}

// Equal reports whether both paths use the same root object (or no root)
// and equal subpaths.
func (p *Path) Equal(o *Path) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.root == o.root && p.subpath.Equal(o.subpath)
}

func (p *Path) String() string {
	if p == nil {
		return "<nil path>"
	}
	var b strings.Builder
	if p.root != nil {
		b.WriteByte('<')
		b.WriteString(p.root.Type())
		if arg, ok := RootArgument(p.root); ok {
			b.WriteByte(':')
			b.WriteString(arg)
		}
		b.WriteByte('>')
		for _, part := range p.subpath {
			b.WriteByte('/')
			b.WriteString(part)
		}
		return b.String()
	}
	switch {
	case len(p.subpath) == 0:
		return "."
	case p.subpath[0] == "":
		return "/" + strings.Join(p.subpath[1:], "/")
	case p.subpath[0] == "..":
		return strings.Join(p.subpath, "/")
	default:
		return "./" + strings.Join(p.subpath, "/")
	}
}

// RootArgument is the text between ":" and ">" in the island literal of r.
func RootArgument(r Root) (string, bool) {
	if v, ok := r.Path(); ok {
		if s, ok := v.Printable(); ok {
			return s, true
		}
	}
	if v, ok := r.Config(); ok {
		if s, ok := v.Printable(); ok {
			return s, true
		}
	}
	return "", false
}
