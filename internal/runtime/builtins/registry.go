package builtins

import (
	"fmt"
	"sort"
	"sync"

	"isle/internal/value"
)

// ID is a builtin function identifier.
type ID int

const (
	Read ID = iota
	List
	Write
	Exists
	TypeOf
	ToString
	BytesToString
	StringToBytes
	Length
	Head
	Tail
	Map
	Filter
	ToUpper
	ToLower
	Split
	// future builtins go here
)

// Meta describes a builtin. Natives are curried: the implementation runs
// once Arity arguments have been applied.
type Meta struct {
	ID         ID
	Name       string
	Arity      int
	ParamNames []string // Parameter names in order (must match Arity)
	Doc        string
}

// Builtin is a builtin's metadata together with its implementation. Call
// receives its arguments unforced and forces what it needs through host.
type Builtin struct {
	Meta Meta
	Call value.NativeFunc
}

// Value returns the builtin as a callable native value.
func (b *Builtin) Value() value.Value {
	return value.NativeOf(b.Meta.Name, b.Meta.Arity, b.Call)
}

// registry holds all registered builtins with fast lookup indexes.
type registry struct {
	mu sync.RWMutex

	byID   map[ID]*Builtin
	byName map[string]*Builtin
}

var globalRegistry = &registry{
	byID:   make(map[ID]*Builtin),
	byName: make(map[string]*Builtin),
}

// Register registers a builtin. This is called by the init function of
// each builtin package. Panics if the ID or name is taken or if the
// metadata is invalid.
func Register(b Builtin) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if b.Meta.Arity < 1 {
		panic(fmt.Sprintf("builtin %s (ID %d): arity must be at least 1, got %d", b.Meta.Name, b.Meta.ID, b.Meta.Arity))
	}
	if len(b.Meta.ParamNames) != b.Meta.Arity {
		panic(fmt.Sprintf("builtin %s (ID %d): ParamNames length (%d) != Arity (%d)",
			b.Meta.Name, b.Meta.ID, len(b.Meta.ParamNames), b.Meta.Arity))
	}
	if b.Call == nil {
		panic(fmt.Sprintf("builtin %s (ID %d) has no implementation", b.Meta.Name, b.Meta.ID))
	}
	if _, exists := globalRegistry.byID[b.Meta.ID]; exists {
		panic(fmt.Sprintf("builtin ID %d (%s) is already registered", b.Meta.ID, b.Meta.Name))
	}
	if _, exists := globalRegistry.byName[b.Meta.Name]; exists {
		panic(fmt.Sprintf("builtin name %q is already registered", b.Meta.Name))
	}

	globalRegistry.byID[b.Meta.ID] = &b
	globalRegistry.byName[b.Meta.Name] = &b
}

// LookupByID finds a builtin by ID. Returns nil if not found.
func LookupByID(id ID) *Builtin {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	return globalRegistry.byID[id]
}

// LookupByName finds a builtin by name. Returns nil if not found.
func LookupByName(name string) *Builtin {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	return globalRegistry.byName[name]
}

// All returns the metadata of every registered builtin, sorted by name.
func All() []Meta {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	result := make([]Meta, 0, len(globalRegistry.byID))
	for _, b := range globalRegistry.byID {
		result = append(result, b.Meta)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Attributes returns every registered builtin keyed by name, ready to be
// bound as globals.
func Attributes() value.Attributes {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	attrs := value.Attributes{}
	for name, b := range globalRegistry.byName {
		attrs = attrs.Insert(name, b.Value())
	}
	return attrs
}
