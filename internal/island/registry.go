package island

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"isle/internal/value"
)

// Factory builds a root from the argument of an island literal <type:arg>.
type Factory func(arg string) (value.Root, error)

// Registry maps island types to factories. Roots are built once per
// (type, arg) pair so that paths over the same island share their caches.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	roots     map[string]*value.Path
	keys      map[value.Root][2]string
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		roots:     make(map[string]*value.Path),
		keys:      make(map[value.Root][2]string),
	}
}

// DefaultRegistry knows the blob, fs and standard islands.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("blob", func(arg string) (value.Root, error) {
		return NewBlob(arg), nil
	})
	r.Register("fs", func(arg string) (value.Root, error) {
		if arg == "" {
			arg = "."
		}
		return NewFs(value.Nope, value.ParseRootless(arg))
	})
	standard := NewStandard()
	r.Register("standard", func(arg string) (value.Root, error) {
		if arg != "" {
			return nil, fmt.Errorf("standard island takes no argument, got %q", arg)
		}
		return standard, nil
	})
	return r
}

func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// Types lists the registered island types in name order.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Path returns the root path handle of the island <typ:arg>.
func (r *Registry) Path(typ, arg string) (*value.Path, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := typ + ":" + arg
	if p, ok := r.roots[key]; ok {
		return p, nil
	}
	f, ok := r.factories[typ]
	if !ok {
		return nil, fmt.Errorf("unknown island type %q", typ)
	}
	root, err := f(arg)
	if err != nil {
		return nil, fmt.Errorf("island <%s:%s>: %w", typ, arg, err)
	}
	p := value.NewPath(root)
	r.roots[key] = p
	r.keys[root] = [2]string{typ, arg}
	return p, nil
}

// Bind makes <typ:arg> resolve to root, replacing any cached handle.
func (r *Registry) Bind(typ, arg string, root value.Root) *value.Path {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := value.NewPath(root)
	r.roots[typ+":"+arg] = p
	r.keys[root] = [2]string{typ, arg}
	return p
}

// Key returns the island literal root was resolved from. Roots the registry
// never handed out fall back to their type and RootArgument.
func (r *Registry) Key(root value.Root) (typ, arg string) {
	r.mu.Lock()
	k, ok := r.keys[root]
	r.mu.Unlock()
	if ok {
		return k[0], k[1]
	}
	arg, _ = value.RootArgument(root)
	return root.Type(), arg
}

// RegisterS3 makes <s3:bucket/prefix> islands use client.
func (r *Registry) RegisterS3(client S3API) {
	r.Register("s3", func(arg string) (value.Root, error) {
		bucket, prefix, _ := strings.Cut(arg, "/")
		if bucket == "" {
			return nil, fmt.Errorf("s3 island needs a bucket")
		}
		return NewS3(client, bucket, prefix), nil
	})
}

// RegisterSQL makes <sql:table> islands store their leaves in db.
func (r *Registry) RegisterSQL(ctx context.Context, db *sql.DB, driver string) {
	r.Register("sql", func(table string) (value.Root, error) {
		return NewSQL(ctx, db, driver, table)
	})
}
