package value

import "sync/atomic"

// ScopeID distinguishes scopes without comparing their contents.
type ScopeID uint64

var lastScopeID atomic.Uint64

func nextScopeID() ScopeID {
	return ScopeID(lastScopeID.Add(1))
}

// Scope is an identified persistent attribute map.
type Scope struct {
	ID    ScopeID
	Attrs Attributes
}

func NewScope() Scope {
	return Scope{ID: nextScopeID()}
}

// ScopeFrom returns a fresh scope holding attrs.
func ScopeFrom(attrs Attributes) Scope {
	return Scope{ID: nextScopeID(), Attrs: attrs}
}

func (s Scope) Insert(key string, v Value) Scope {
	return Scope{ID: s.ID, Attrs: s.Attrs.Insert(key, v)}
}

// Merge returns s with other merged over it, keeping s's identity.
func (s Scope) Merge(other Attributes) Scope {
	return Scope{ID: s.ID, Attrs: s.Attrs.Update(other)}
}

type scopeNode struct {
	scope Scope
	below *scopeNode
}

// Scopes is a persistent stack of scopes. The zero value is empty.
type Scopes struct {
	top   *scopeNode
	depth int
}

// NewScopes returns a stack holding one scope per argument, the last on top.
func NewScopes(scopes ...Scope) Scopes {
	var s Scopes
	for _, sc := range scopes {
		s = s.Push(sc)
	}
	return s
}

func (s Scopes) Len() int { return s.depth }

func (s Scopes) Push(sc Scope) Scopes {
	return Scopes{top: &scopeNode{scope: sc, below: s.top}, depth: s.depth + 1}
}

// Pop removes the tip. Popping the last scope is an implementation bug.
func (s Scopes) Pop() Scopes {
	if s.depth <= 1 {
		panic("scopes: pop would leave the scope stack empty")
	}
	return Scopes{top: s.top.below, depth: s.depth - 1}
}

func (s Scopes) Tip() Scope {
	if s.top == nil {
		panic("scopes: tip of empty scope stack")
	}
	return s.top.scope
}

// ReplaceTip swaps the tip for sc.
func (s Scopes) ReplaceTip(sc Scope) Scopes {
	if s.top == nil {
		panic("scopes: replace tip of empty scope stack")
	}
	return Scopes{top: &scopeNode{scope: sc, below: s.top.below}, depth: s.depth}
}

// Get looks key up tip first.
func (s Scopes) Get(key string) (Value, bool) {
	key = Intern(key)
	for n := s.top; n != nil; n = n.below {
		if v, ok := n.scope.Attrs.Get(key); ok {
			return v, true
		}
	}
	return Value{}, false
}

// MergeTipFrom replaces the tip with the merge of this tip and other's tip.
func (s Scopes) MergeTipFrom(other Scopes) Scopes {
	return s.ReplaceTip(s.Tip().Merge(other.Tip().Attrs))
}
