package value

import (
	"context"
	"sync"
	"sync/atomic"
)

type thunkState int

const (
	thunkSuspended thunkState = iota
	thunkSuspendedNative
	thunkBlackHole
	thunkEvaluated
)

func (s thunkState) String() string {
	switch s {
	case thunkSuspended:
		return "suspended"
	case thunkSuspendedNative:
		return "suspended native"
	case thunkBlackHole:
		return "black hole"
	case thunkEvaluated:
		return "evaluated"
	default:
		return "unknown"
	}
}

// Runner evaluates a suspended body to weak head normal form. A non-nil
// error means the evaluation did not finish (cancellation or a bug) and the
// thunk is left suspended.
type Runner func(ctx context.Context, at Location, code *Code, scopes Scopes) (Value, error)

// NativeBody is the deferred computation of a native thunk.
type NativeBody func(ctx context.Context) (Value, error)

// Thunk is a deferred computation with a memoised result. Its state only
// moves forward: suspended, black hole, evaluated. The lock is held for
// transitions only, never while the body runs.
type Thunk struct {
	mu    sync.RWMutex
	state thunkState

	location Location
	code     *Code
	scopes   Scopes
	native   NativeBody

	forcedAt Location
	owner    uint64
	done     chan struct{}

	value Value
}

// NewThunk suspends code over scopes. location is where it was created.
func NewThunk(location Location, code *Code, scopes Scopes) *Thunk {
	return &Thunk{state: thunkSuspended, location: location, code: code, scopes: scopes}
}

// NewNativeThunk defers fn until forced.
func NewNativeThunk(location Location, fn NativeBody) *Thunk {
	return &Thunk{state: thunkSuspendedNative, location: location, native: fn}
}

// EvaluatedThunk is a thunk that already holds v.
func EvaluatedThunk(v Value) *Thunk {
	return &Thunk{state: thunkEvaluated, value: v}
}

// Bind sets the captured scopes of a thunk that has not been published yet.
// It exists to tie recursive bindings and must not be used afterwards.
func (t *Thunk) Bind(scopes Scopes) {
	t.mu.Lock()
	t.scopes = scopes
	t.mu.Unlock()
}

// Evaluated returns the memoised value if there is one.
func (t *Thunk) Evaluated() (Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state != thunkEvaluated {
		return Value{}, false
	}
	return t.value, true
}

func (t *Thunk) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state == thunkEvaluated {
		return t.value.String()
	}
	return "<thunk " + t.state.String() + ">"
}

const infiniteRecursion = "infinite recursion detected"

// Force drives t to its value. at is the forcing location. run evaluates
// suspended code; native bodies run directly.
//
// Re-entering a black hole from the force chain that created it is
// infinite recursion. A forcer from another chain waits for the owner to
// finish instead, unless the owner is itself waiting, directly or through
// other chains, on the forcer: that cycle is infinite recursion too.
func (t *Thunk) Force(ctx context.Context, at Location, run Runner) (Value, error) {
	chain := ChainOf(ctx)
	for {
		t.mu.Lock()
		switch t.state {
		case thunkEvaluated:
			v := t.value
			t.mu.Unlock()
			return v, nil

		case thunkBlackHole:
			if t.owner == chain {
				suspendedAt, forcedAt := t.location, t.forcedAt
				t.mu.Unlock()
				return ErrorOf(infiniteRecursion, suspendedAt, forcedAt, at), nil
			}
			done := t.done
			suspendedAt, forcedAt := t.location, t.forcedAt
			t.mu.Unlock()
			if !await(chain, t) {
				return ErrorOf(infiniteRecursion, suspendedAt, forcedAt, at), nil
			}
			select {
			case <-done:
				release(chain)
			case <-ctx.Done():
				release(chain)
				return Value{}, ctx.Err()
			}

		default:
			prev := t.state
			t.state = thunkBlackHole
			t.forcedAt = at
			t.owner = chain
			t.done = make(chan struct{})
			code, scopes, native, location := t.code, t.scopes, t.native, t.location
			t.mu.Unlock()

			var v Value
			var err error
			if prev == thunkSuspendedNative {
				v, err = native(ctx)
			} else {
				v, err = run(ctx, location, code, scopes)
			}

			t.mu.Lock()
			if err != nil {
				t.state = prev
				t.forcedAt = Location{}
				t.owner = 0
			} else {
				t.state = thunkEvaluated
				t.value = v
				t.code, t.scopes, t.native = nil, Scopes{}, nil
			}
			close(t.done)
			t.done = nil
			t.mu.Unlock()
			return v, err
		}
	}
}

// owning returns the chain evaluating t while t is a black hole.
func (t *Thunk) owning() (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.owner, t.state == thunkBlackHole
}

var (
	waitMu sync.Mutex
	waits  = map[uint64]*Thunk{}
)

// await records that chain waits on t. It refuses when following the
// owners of awaited thunks from t leads back to chain.
func await(chain uint64, t *Thunk) bool {
	waitMu.Lock()
	defer waitMu.Unlock()
	next := t
	for steps := 0; next != nil && steps <= len(waits); steps++ {
		owner, ok := next.owning()
		if !ok {
			break
		}
		if owner == chain {
			return false
		}
		next = waits[owner]
	}
	waits[chain] = t
	return true
}

func release(chain uint64) {
	waitMu.Lock()
	delete(waits, chain)
	waitMu.Unlock()
}

type chainKey struct{}

var lastChain atomic.Uint64

// WithChain starts a new force chain. Thunks forced under different chains
// wait for each other rather than reporting recursion.
func WithChain(ctx context.Context) context.Context {
	return context.WithValue(ctx, chainKey{}, lastChain.Add(1))
}

// ChainOf returns the force chain of ctx, or 0 if none was started.
func ChainOf(ctx context.Context) uint64 {
	id, _ := ctx.Value(chainKey{}).(uint64)
	return id
}
