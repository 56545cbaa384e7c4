package value

import (
	"sync"

	"github.com/google/btree"
)

const attributesDegree = 8

type attribute struct {
	key   string
	value Value
}

func attributeLess(a, b attribute) bool { return a.key < b.key }

type attributeTree struct {
	// btree.Clone must not run concurrently on the same tree.
	mu   sync.Mutex
	tree *btree.BTreeG[attribute]
}

// Attributes is a persistent sorted map from names to values. The zero
// value is the empty map. Every "modification" returns a new map that shares
// structure with the old one.
type Attributes struct {
	t *attributeTree
}

func AttrsOf(pairs ...any) Value {
	a := Attributes{}
	for i := 0; i+1 < len(pairs); i += 2 {
		a = a.Insert(pairs[i].(string), pairs[i+1].(Value))
	}
	return AttributesValue(a)
}

func AttributesValue(a Attributes) Value {
	return Value{Kind: KindAttributes, Attrs: a}
}

func (a Attributes) Len() int {
	if a.t == nil {
		return 0
	}
	return a.t.tree.Len()
}

func (a Attributes) Get(key string) (Value, bool) {
	if a.t == nil {
		return Value{}, false
	}
	item, ok := a.t.tree.Get(attribute{key: Intern(key)})
	return item.value, ok
}

func (a Attributes) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

func (a Attributes) clone() *btree.BTreeG[attribute] {
	if a.t == nil {
		return btree.NewG[attribute](attributesDegree, attributeLess)
	}
	a.t.mu.Lock()
	defer a.t.mu.Unlock()
	return a.t.tree.Clone()
}

func (a Attributes) Insert(key string, v Value) Attributes {
	tree := a.clone()
	tree.ReplaceOrInsert(attribute{key: Intern(key), value: v})
	return Attributes{t: &attributeTree{tree: tree}}
}

func (a Attributes) Delete(key string) Attributes {
	if !a.Has(key) {
		return a
	}
	tree := a.clone()
	tree.Delete(attribute{key: Intern(key)})
	return Attributes{t: &attributeTree{tree: tree}}
}

// Update returns the right-biased union of a and other.
func (a Attributes) Update(other Attributes) Attributes {
	switch {
	case other.Len() == 0:
		return a
	case a.Len() == 0:
		return other
	}
	tree := a.clone()
	other.Each(func(k string, v Value) bool {
		tree.ReplaceOrInsert(attribute{key: k, value: v})
		return true
	})
	return Attributes{t: &attributeTree{tree: tree}}
}

// Each visits entries in ascending key order until fn returns false.
func (a Attributes) Each(fn func(key string, v Value) bool) {
	if a.t == nil {
		return
	}
	a.t.tree.Ascend(func(item attribute) bool {
		return fn(item.key, item.value)
	})
}

func (a Attributes) Keys() []string {
	keys := make([]string, 0, a.Len())
	a.Each(func(k string, _ Value) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Map returns a new map with fn applied to every value.
func (a Attributes) Map(fn func(key string, v Value) Value) Attributes {
	if a.Len() == 0 {
		return a
	}
	tree := btree.NewG[attribute](attributesDegree, attributeLess)
	a.Each(func(k string, v Value) bool {
		tree.ReplaceOrInsert(attribute{key: k, value: fn(k, v)})
		return true
	})
	return Attributes{t: &attributeTree{tree: tree}}
}
