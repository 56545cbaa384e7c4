package vm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"isle/internal/value"
)

var (
	// ErrStackUnderflow means the code popped more than it pushed.
	ErrStackUnderflow = errors.New("stack underflow")
	// ErrBug marks malformed code or a broken evaluator invariant.
	ErrBug = errors.New("implementation bug")
)

// VM evaluates compiled code. A VM holds no per-evaluation state and may be
// shared by concurrent evaluations.
type VM struct {
	logger  *slog.Logger
	globals value.Attributes
}

type Option func(*VM)

func WithLogger(l *slog.Logger) Option {
	return func(vm *VM) { vm.logger = l }
}

// WithGlobals binds attrs in the root scope of every evaluation.
func WithGlobals(attrs value.Attributes) Option {
	return func(vm *VM) { vm.globals = vm.globals.Update(attrs) }
}

func New(opts ...Option) *VM {
	vm := &VM{logger: slog.Default()}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Globals lists the names bound in the root scope.
func (vm *VM) Globals() []string { return vm.globals.Keys() }

// RootScopes returns a scope stack holding only the globals.
func (vm *VM) RootScopes() value.Scopes {
	return value.NewScopes(value.ScopeFrom(vm.globals))
}

// Evaluate runs code to weak head normal form. Language level failures are
// returned as Error values; the Go error is reserved for cancellation and
// implementation bugs. An empty scopes starts from RootScopes.
func (vm *VM) Evaluate(ctx context.Context, code *value.Code, scopes value.Scopes) (value.Value, error) {
	if value.ChainOf(ctx) == 0 {
		ctx = value.WithChain(ctx)
	}
	if scopes.Len() == 0 {
		scopes = vm.RootScopes()
	}
	start := time.Now()
	v, err := vm.run(ctx, code, scopes)
	vm.logger.Debug("evaluation finished",
		"path", code.Path(),
		"kind", v.Kind.String(),
		"elapsed", time.Since(start),
		"err", err)
	return v, err
}

// Force drives v to weak head normal form.
func (vm *VM) Force(ctx context.Context, v value.Value) (value.Value, error) {
	if value.ChainOf(ctx) == 0 {
		ctx = value.WithChain(ctx)
	}
	return vm.whnf(ctx, v, value.Location{})
}

// Host returns the evaluator interface handed to natives. at is used as the
// forcing location.
func (vm *VM) Host(at value.Location) value.Host {
	return &host{vm: vm, at: at}
}

func (vm *VM) whnf(ctx context.Context, v value.Value, at value.Location) (value.Value, error) {
	for v.Kind == value.KindThunk {
		next, err := v.Thunk.Force(ctx, at, vm.runThunk)
		if err != nil {
			return value.Value{}, err
		}
		v = next
	}
	return v, nil
}

func (vm *VM) runThunk(ctx context.Context, _ value.Location, code *value.Code, scopes value.Scopes) (value.Value, error) {
	if err := ctx.Err(); err != nil {
		return value.Value{}, err
	}
	return vm.run(ctx, code, scopes)
}

// activation is the state of one running code: its value stack and scopes.
type activation struct {
	vm     *VM
	code   *value.Code
	scopes value.Scopes
	stack  []value.Value
	at     value.ByteIndex
}

func (a *activation) here() value.Location {
	return a.code.Location(a.at)
}

func (a *activation) push(v value.Value) {
	a.stack = append(a.stack, v)
}

func (a *activation) pop() (value.Value, error) {
	if len(a.stack) == 0 {
		return value.Value{}, a.bug(ErrStackUnderflow)
	}
	v := a.stack[len(a.stack)-1]
	a.stack = a.stack[:len(a.stack)-1]
	return v, nil
}

// pop2 pops the right operand, then the left.
func (a *activation) pop2() (l, r value.Value, err error) {
	if r, err = a.pop(); err != nil {
		return
	}
	l, err = a.pop()
	return
}

func (a *activation) bug(err error) error {
	return fmt.Errorf("%s at %s: %w", a.code.Path(), a.here(), err)
}

// force pops and forces the top of stack.
func (a *activation) force(ctx context.Context) (value.Value, error) {
	v, err := a.pop()
	if err != nil {
		return value.Value{}, err
	}
	return a.vm.whnf(ctx, v, a.here())
}

// force2 pops and forces both operands of a binary operation.
func (a *activation) force2(ctx context.Context) (l, r value.Value, err error) {
	if r, err = a.force(ctx); err != nil {
		return
	}
	l, err = a.force(ctx)
	return
}

func located(v value.Value, at value.Location) value.Value {
	v.Err = v.Err.WithLocation(at)
	return v
}

func (vm *VM) run(ctx context.Context, code *value.Code, scopes value.Scopes) (value.Value, error) {
	a := &activation{vm: vm, code: code, scopes: scopes, stack: make([]value.Value, 0, 8)}
	var ip value.ByteIndex
	for {
		in, err := code.Read(ip)
		if err != nil {
			return value.Value{}, fmt.Errorf("%w: %v", ErrBug, err)
		}
		a.at = ip
		ip = in.Next

		switch in.Op {
		case value.OpReturn:
			return a.pop()

		case value.OpJump:
			ip = in.Target
			continue

		case value.OpJumpIf:
			c, err := a.pop()
			if err != nil {
				return value.Value{}, err
			}
			if c.IsError() {
				return located(c, a.here()), nil
			}
			if c.Kind != value.KindBoolean {
				return value.ErrorOf("expected a boolean, got "+c.Kind.String(), a.here()), nil
			}
			if c.Bool {
				ip = in.Target
			}
			continue
		}

		failed, err := a.step(ctx, in)
		if err != nil {
			return value.Value{}, err
		}
		if failed.IsError() {
			return located(failed, a.here()), nil
		}
	}
}

// step executes one instruction. A returned Error value aborts the
// activation.
func (a *activation) step(ctx context.Context, in value.Instruction) (value.Value, error) {
	switch in.Op {
	case value.OpPush:
		v, err := a.code.Value(in.Value)
		if err != nil {
			return value.Value{}, a.bug(fmt.Errorf("%w: %v", ErrBug, err))
		}
		a.push(materialize(v, a.scopes))

	case value.OpPop:
		if _, err := a.pop(); err != nil {
			return value.Value{}, err
		}

	case value.OpSwap:
		l, r, err := a.pop2()
		if err != nil {
			return value.Value{}, err
		}
		a.push(r)
		a.push(l)

	case value.OpForce:
		v, err := a.force(ctx)
		if err != nil || v.IsError() {
			return v, err
		}
		a.push(v)

	case value.OpScopeStart:
		a.scopes = a.scopes.Push(value.NewScope())

	case value.OpScopeEnd:
		if a.scopes.Len() <= 1 {
			return value.Value{}, a.bug(fmt.Errorf("%w: scope end would leave no scope", ErrBug))
		}
		a.scopes = a.scopes.Pop()

	case value.OpScopePush:
		v, err := a.force(ctx)
		if err != nil || v.IsError() {
			return v, err
		}
		attrs, ok := value.AsAttributes(v)
		if !ok {
			return value.ErrorOf("cannot open a scope over "+v.Kind.String(), a.here()), nil
		}
		a.scopes = a.scopes.Push(value.ScopeFrom(attrs))

	case value.OpScopeSwap:
		return a.scopeSwap(ctx)

	case value.OpInterpolate:
		l, r, err := a.force2(ctx)
		if err != nil {
			return value.Value{}, err
		}
		v := interpolate(l, r, a.here())
		if v.IsError() {
			return v, nil
		}
		a.push(v)

	case value.OpResolve:
		ref, err := a.pop()
		if err != nil {
			return value.Value{}, err
		}
		if ref.Kind != value.KindReference {
			return value.Value{}, a.bug(fmt.Errorf("%w: resolve of %s", ErrBug, ref.Kind))
		}
		v, ok := a.scopes.Get(ref.Str)
		if !ok {
			return value.ErrorOf("unbound name '"+ref.Str+"'", a.here()), nil
		}
		a.push(v)

	case value.OpAssertBoolean:
		if len(a.stack) == 0 {
			return value.Value{}, a.bug(ErrStackUnderflow)
		}
		top := a.stack[len(a.stack)-1]
		if top.IsError() {
			return top, nil
		}
		if top.Kind != value.KindBoolean {
			return value.ErrorOf("expected a boolean, got "+top.Kind.String(), a.here()), nil
		}

	case value.OpSwwallation, value.OpNegation, value.OpNot:
		v, err := a.force(ctx)
		if err != nil || v.IsError() {
			return v, err
		}
		res := unary(in.Op, v, a.here())
		if res.IsError() {
			return res, nil
		}
		a.push(res)

	case value.OpConstruct:
		head, tail, err := a.pop2()
		if err != nil {
			return value.Value{}, err
		}
		if tail.IsError() {
			return tail, nil
		}
		if tail.Kind == value.KindList {
			a.push(value.ListValue(tail.List.Push(head)))
		} else {
			a.push(value.NewCons(head, tail))
		}

	case value.OpConcat, value.OpUpdate,
		value.OpLessOrEqual, value.OpLess, value.OpMoreOrEqual, value.OpMore,
		value.OpAddition, value.OpSubtraction, value.OpMultiplication, value.OpPower, value.OpDivision:
		l, r, err := a.force2(ctx)
		if err != nil {
			return value.Value{}, err
		}
		if l.IsError() {
			return l, nil
		}
		if r.IsError() {
			return r, nil
		}
		res := binary(in.Op, l, r, a.here())
		if res.IsError() {
			return res, nil
		}
		a.push(res)

	case value.OpEqual:
		l, r, err := a.pop2()
		if err != nil {
			return value.Value{}, err
		}
		res, err := a.vm.equal(ctx, l, r, a.here())
		if err != nil || res.IsError() {
			return res, err
		}
		a.push(res)

	case value.OpAll, value.OpAny:
		return a.logical(ctx, in.Op)

	case value.OpCall:
		if err := ctx.Err(); err != nil {
			return value.Value{}, err
		}
		arg, err := a.pop()
		if err != nil {
			return value.Value{}, err
		}
		fn, err := a.force(ctx)
		if err != nil || fn.IsError() {
			return fn, err
		}
		res, err := a.vm.call(ctx, fn, arg, a.scopes, a.here())
		if err != nil || res.IsError() {
			return res, err
		}
		a.push(res)

	default:
		return value.Value{}, a.bug(fmt.Errorf("%w: unexpected operation %s", ErrBug, in.Op))
	}
	return value.Value{}, nil
}

// materialize turns raw blueprints into values over scopes: parameterless
// ones into suspended thunks, lambdas into closures.
func materialize(v value.Value, scopes value.Scopes) value.Value {
	if v.Kind != value.KindBlueprint || v.Scopes != nil {
		return v
	}
	if _, ok := v.Code.Parameter(); ok {
		return value.ClosureOf(v.Code, scopes)
	}
	return value.ThunkOf(value.NewThunk(v.Code.Location(0), v.Code, scopes))
}

// scopeSwap pops attributes, pushes the tip's attributes and merges the
// popped ones into the tip. Raw blueprint members close over the resulting
// scopes, so members may refer to each other.
func (a *activation) scopeSwap(ctx context.Context) (value.Value, error) {
	v, err := a.force(ctx)
	if err != nil || v.IsError() {
		return v, err
	}
	attrs, failed, err := a.bindings(ctx, v)
	if err != nil || failed.IsError() {
		return failed, err
	}

	tip := a.scopes.Tip()
	a.push(value.AttributesValue(tip.Attrs))

	var thunks []*value.Thunk
	var closures []*value.Scopes
	attrs = attrs.Map(func(_ string, m value.Value) value.Value {
		if m.Kind != value.KindBlueprint || m.Scopes != nil {
			return m
		}
		if _, ok := m.Code.Parameter(); ok {
			captured := new(value.Scopes)
			closures = append(closures, captured)
			return value.Value{Kind: value.KindBlueprint, Code: m.Code, Scopes: captured}
		}
		t := value.NewThunk(m.Code.Location(0), m.Code, value.Scopes{})
		thunks = append(thunks, t)
		return value.ThunkOf(t)
	})

	a.scopes = a.scopes.ReplaceTip(tip.Merge(attrs))
	for _, t := range thunks {
		t.Bind(a.scopes)
	}
	for _, c := range closures {
		*c = a.scopes
	}
	return value.Value{}, nil
}

// bindings returns the attributes a swap merges. Besides an attribute set
// (or a value with an attribute view) it takes a list whose items are
// attribute sets and [key, member] pairs, merged in order.
func (a *activation) bindings(ctx context.Context, v value.Value) (value.Attributes, value.Value, error) {
	if v.Kind != value.KindList {
		attrs, ok := value.AsAttributes(v)
		if !ok {
			return attrs, value.ErrorOf("cannot open a scope over "+v.Kind.String(), a.here()), nil
		}
		return attrs, value.Value{}, nil
	}

	attrs := value.Attributes{}
	for _, item := range v.List.Slice() {
		item, err := a.vm.whnf(ctx, item, a.here())
		if err != nil || item.IsError() {
			return attrs, item, err
		}
		if item.Kind == value.KindAttributes {
			attrs = attrs.Update(item.Attrs)
			continue
		}
		pair := item.List.Slice()
		if item.Kind != value.KindList || len(pair) != 2 {
			return attrs, value.ErrorOf("cannot bind "+item.Kind.String(), a.here()), nil
		}
		key, err := a.vm.whnf(ctx, pair[0], a.here())
		if err != nil || key.IsError() {
			return attrs, key, err
		}
		if key.Kind != value.KindBind {
			return attrs, value.ErrorOf("expected a binding name, got "+key.Kind.String(), a.here()), nil
		}
		attrs = attrs.Insert(key.Str, pair[1])
	}
	return attrs, value.Value{}, nil
}

// logical implements All and Any: the right operand is forced only when
// the left one does not decide the result.
func (a *activation) logical(ctx context.Context, op value.Operation) (value.Value, error) {
	r, err := a.pop()
	if err != nil {
		return value.Value{}, err
	}
	l, err := a.force(ctx)
	if err != nil || l.IsError() {
		return l, err
	}
	if l.Kind != value.KindBoolean {
		return value.ErrorOf("expected a boolean, got "+l.Kind.String(), a.here()), nil
	}
	if (op == value.OpAll && !l.Bool) || (op == value.OpAny && l.Bool) {
		a.push(l)
		return value.Value{}, nil
	}
	r, err = a.vm.whnf(ctx, r, a.here())
	if err != nil || r.IsError() {
		return r, err
	}
	if r.Kind != value.KindBoolean {
		return value.ErrorOf("expected a boolean, got "+r.Kind.String(), a.here()), nil
	}
	a.push(r)
	return value.Value{}, nil
}

// call applies fn to arg. Raw blueprints run over the caller's scopes,
// closures over the scopes they captured.
func (vm *VM) call(ctx context.Context, fn, arg value.Value, caller value.Scopes, at value.Location) (value.Value, error) {
	switch fn.Kind {
	case value.KindBlueprint:
		param, ok := fn.Code.Parameter()
		if !ok {
			return value.ErrorOf("blueprint without a parameter is not callable", at), nil
		}
		scopes := caller
		if fn.Scopes != nil {
			scopes = *fn.Scopes
		}
		scopes = scopes.Push(value.ScopeFrom(value.Attributes{}.Insert(param, arg)))
		return vm.run(ctx, fn.Code, scopes)

	case value.KindNative:
		partial, args, ready := fn.Native.Apply(arg)
		if !ready {
			return partial, nil
		}
		res, err := fn.Native.Fn(ctx, &host{vm: vm, at: at}, args)
		if err != nil {
			return value.Value{}, fmt.Errorf("%s: %w", fn.Native.Name, err)
		}
		return vm.whnf(ctx, res, at)

	case value.KindError:
		return fn, nil

	default:
		return value.ErrorOf("value of kind "+fn.Kind.String()+" is not callable", at), nil
	}
}

type host struct {
	vm *VM
	at value.Location
}

func (h *host) Force(ctx context.Context, v value.Value) (value.Value, error) {
	return h.vm.whnf(ctx, v, h.at)
}

func (h *host) ForceDeep(ctx context.Context, v value.Value) (value.Value, error) {
	return h.vm.forceDeep(ctx, v)
}

func (h *host) Call(ctx context.Context, fn, arg value.Value) (value.Value, error) {
	fn, err := h.vm.whnf(ctx, fn, h.at)
	if err != nil || fn.IsError() {
		return fn, err
	}
	return h.vm.call(ctx, fn, arg, h.vm.RootScopes(), h.at)
}
