package value

import "context"

// Host gives native functions access to the evaluator.
type Host interface {
	// Force drives v to weak head normal form.
	Force(ctx context.Context, v Value) (Value, error)
	// ForceDeep forces v and everything reachable from it. The first Error
	// met replaces the result.
	ForceDeep(ctx context.Context, v Value) (Value, error)
	// Call applies fn to arg.
	Call(ctx context.Context, fn Value, arg Value) (Value, error)
}

// NativeFunc is the body of a builtin. args has exactly Arity elements and
// they are not forced. A returned Go error aborts evaluation; language level
// failures are returned as Error values.
type NativeFunc func(ctx context.Context, host Host, args []Value) (Value, error)

// Native is a curried host function.
type Native struct {
	Name  string
	Arity int
	Fn    NativeFunc
	args  []Value
}

func NativeOf(name string, arity int, fn NativeFunc) Value {
	return Value{Kind: KindNative, Native: &Native{Name: name, Arity: arity, Fn: fn}}
}

// Apply adds arg. It returns the partially applied native, or ready=true
// with the complete argument list.
func (n *Native) Apply(arg Value) (partial Value, args []Value, ready bool) {
	args = make([]Value, 0, len(n.args)+1)
	args = append(args, n.args...)
	args = append(args, arg)
	if len(args) >= n.Arity {
		return Value{}, args, true
	}
	return Value{Kind: KindNative, Native: &Native{Name: n.Name, Arity: n.Arity, Fn: n.Fn, args: args}}, nil, false
}
