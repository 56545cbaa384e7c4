package vm

import (
	"bytes"
	"cmp"
	"context"
	"math"
	"math/big"
	"strings"

	"isle/internal/value"
)

// interpolate joins r's printable form onto l. The result has l's kind; a
// path gains the '/' separated pieces of r as new parts.
func interpolate(l, r value.Value, at value.Location) value.Value {
	if l.IsError() {
		return l
	}
	if r.IsError() {
		return r
	}
	s, ok := r.Printable()
	if !ok {
		return value.ErrorOf("cannot interpolate a value of kind "+r.Kind.String(), at)
	}
	switch l.Kind {
	case value.KindString:
		return value.Str(l.Str + s)
	case value.KindBind:
		return value.BindOf(l.Str + s)
	case value.KindReference:
		return value.ReferenceOf(l.Str + s)
	case value.KindPath:
		var parts value.Subpath
		for _, part := range strings.Split(s, "/") {
			if part != "" {
				parts = append(parts, part)
			}
		}
		return value.PathOf(l.Path.WithSubpath(l.Path.Subpath().Append(parts...)))
	default:
		return value.ErrorOf("cannot interpolate into a value of kind "+l.Kind.String(), at)
	}
}

func unary(op value.Operation, v value.Value, at value.Location) value.Value {
	switch {
	case op == value.OpNot && v.Kind == value.KindBoolean:
		return value.Bool(!v.Bool)
	case op == value.OpSwwallation && isNumber(v):
		return v
	case op == value.OpNegation && v.Kind == value.KindInteger:
		return value.IntFromBig(new(big.Int).Neg(v.Int))
	case op == value.OpNegation && v.Kind == value.KindFloat:
		return value.Float(-v.Float)
	}
	return value.ErrorOf(op.String()+" is not defined for "+v.Kind.String(), at)
}

func isNumber(v value.Value) bool {
	return v.Kind == value.KindInteger || v.Kind == value.KindFloat
}

func toFloat(v value.Value) float64 {
	if v.Kind == value.KindFloat {
		return v.Float
	}
	f, _ := new(big.Float).SetInt(v.Int).Float64()
	return f
}

// maxExponentBits bounds integer exponentiation.
const maxExponentBits = 24

func binary(op value.Operation, l, r value.Value, at value.Location) value.Value {
	undefined := func() value.Value {
		return value.ErrorOf(op.String()+" is not defined for "+l.Kind.String()+" and "+r.Kind.String(), at)
	}

	switch op {
	case value.OpConcat:
		switch {
		case l.Kind == value.KindList && r.Kind == value.KindList:
			return value.ListValue(l.List.Concat(r.List))
		case l.Kind == value.KindString && r.Kind == value.KindString:
			return value.Str(l.Str + r.Str)
		case l.Kind == value.KindBytes && r.Kind == value.KindBytes:
			out := make([]byte, 0, len(l.Bytes)+len(r.Bytes))
			return value.BytesOf(append(append(out, l.Bytes...), r.Bytes...))
		}
		return undefined()

	case value.OpUpdate:
		la, lok := value.AsAttributes(l)
		ra, rok := value.AsAttributes(r)
		if !lok || !rok {
			return undefined()
		}
		return value.AttributesValue(la.Update(ra))

	case value.OpLessOrEqual, value.OpLess, value.OpMoreOrEqual, value.OpMore:
		c, ok := compare(l, r)
		if !ok {
			return undefined()
		}
		if c == unordered {
			return value.False
		}
		switch op {
		case value.OpLessOrEqual:
			return value.Bool(c <= 0)
		case value.OpLess:
			return value.Bool(c < 0)
		case value.OpMoreOrEqual:
			return value.Bool(c >= 0)
		default:
			return value.Bool(c > 0)
		}
	}

	if l.Kind == value.KindInteger && r.Kind == value.KindInteger {
		return integerArithmetic(op, l.Int, r.Int, at)
	}
	if !isNumber(l) || !isNumber(r) {
		return undefined()
	}
	a, b := toFloat(l), toFloat(r)
	switch op {
	case value.OpAddition:
		return value.Float(a + b)
	case value.OpSubtraction:
		return value.Float(a - b)
	case value.OpMultiplication:
		return value.Float(a * b)
	case value.OpDivision:
		return value.Float(a / b)
	case value.OpPower:
		return value.Float(math.Pow(a, b))
	}
	return undefined()
}

func integerArithmetic(op value.Operation, a, b *big.Int, at value.Location) value.Value {
	switch op {
	case value.OpAddition:
		return value.IntFromBig(new(big.Int).Add(a, b))
	case value.OpSubtraction:
		return value.IntFromBig(new(big.Int).Sub(a, b))
	case value.OpMultiplication:
		return value.IntFromBig(new(big.Int).Mul(a, b))
	case value.OpDivision:
		if b.Sign() == 0 {
			return value.ErrorOf("division by zero", at)
		}
		q, _ := value.EuclidDiv(a, b)
		return value.IntFromBig(q)
	case value.OpPower:
		if b.Sign() < 0 {
			return value.Float(math.Pow(toFloat(value.IntFromBig(a)), toFloat(value.IntFromBig(b))))
		}
		if b.BitLen() > maxExponentBits && a.CmpAbs(big.NewInt(1)) > 0 {
			return value.ErrorOf("exponent too large", at)
		}
		return value.IntFromBig(new(big.Int).Exp(a, b, nil))
	}
	return value.ErrorOf(op.String()+" is not defined for integers", at)
}

const unordered = 2

// compare orders numbers, strings and runes. NaN compares as unordered.
func compare(l, r value.Value) (int, bool) {
	switch {
	case l.Kind == value.KindInteger && r.Kind == value.KindInteger:
		return l.Int.Cmp(r.Int), true
	case isNumber(l) && isNumber(r):
		a, b := toFloat(l), toFloat(r)
		if math.IsNaN(a) || math.IsNaN(b) {
			return unordered, true
		}
		return cmp.Compare(a, b), true
	case l.Kind == value.KindString && r.Kind == value.KindString:
		return strings.Compare(l.Str, r.Str), true
	case l.Kind == value.KindRune && r.Kind == value.KindRune:
		return cmp.Compare(l.Rune, r.Rune), true
	}
	return 0, false
}

// equal is deep structural equality. It forces both sides as far as needed
// and returns a Boolean or the first Error met.
func (vm *VM) equal(ctx context.Context, l, r value.Value, at value.Location) (value.Value, error) {
	l, err := vm.whnf(ctx, l, at)
	if err != nil || l.IsError() {
		return l, err
	}
	r, err = vm.whnf(ctx, r, at)
	if err != nil || r.IsError() {
		return r, err
	}

	if isNumber(l) && isNumber(r) {
		if l.Kind == value.KindInteger && r.Kind == value.KindInteger {
			return value.Bool(l.Int.Cmp(r.Int) == 0), nil
		}
		return value.Bool(toFloat(l) == toFloat(r)), nil
	}
	if l.Kind != r.Kind {
		return value.False, nil
	}

	switch l.Kind {
	case value.KindNope:
		return value.True, nil
	case value.KindBoolean:
		return value.Bool(l.Bool == r.Bool), nil
	case value.KindRune:
		return value.Bool(l.Rune == r.Rune), nil
	case value.KindString, value.KindBind, value.KindReference:
		return value.Bool(l.Str == r.Str), nil
	case value.KindBytes:
		return value.Bool(bytes.Equal(l.Bytes, r.Bytes)), nil
	case value.KindPath:
		return value.Bool(l.Path.Equal(r.Path)), nil
	case value.KindNative:
		return value.Bool(l.Native == r.Native), nil
	case value.KindBlueprint:
		return value.Bool(l.Code == r.Code && l.Scopes == r.Scopes), nil

	case value.KindList:
		if l.List.Len() != r.List.Len() {
			return value.False, nil
		}
		return vm.equalAll(ctx, l.List.Slice(), r.List.Slice(), at)

	case value.KindCons:
		return vm.equalAll(ctx,
			[]value.Value{l.Cons.Fst, l.Cons.Snd},
			[]value.Value{r.Cons.Fst, r.Cons.Snd}, at)

	case value.KindAttributes:
		if l.Attrs.Len() != r.Attrs.Len() {
			return value.False, nil
		}
		keys := l.Attrs.Keys()
		ls := make([]value.Value, len(keys))
		rs := make([]value.Value, len(keys))
		for i, k := range keys {
			rv, ok := r.Attrs.Get(k)
			if !ok {
				return value.False, nil
			}
			ls[i], _ = l.Attrs.Get(k)
			rs[i] = rv
		}
		return vm.equalAll(ctx, ls, rs, at)
	}
	return value.False, nil
}

func (vm *VM) equalAll(ctx context.Context, ls, rs []value.Value, at value.Location) (value.Value, error) {
	for i := range ls {
		eq, err := vm.equal(ctx, ls[i], rs[i], at)
		if err != nil || eq.IsError() || !eq.Bool {
			return eq, err
		}
	}
	return value.True, nil
}

// ForceDeep forces v and everything reachable through lists, conses and
// attributes. The first Error met is returned in place of the value.
func (vm *VM) ForceDeep(ctx context.Context, v value.Value) (value.Value, error) {
	if value.ChainOf(ctx) == 0 {
		ctx = value.WithChain(ctx)
	}
	return vm.forceDeep(ctx, v)
}

func (vm *VM) forceDeep(ctx context.Context, v value.Value) (value.Value, error) {
	v, err := vm.whnf(ctx, v, value.Location{})
	if err != nil || v.IsError() {
		return v, err
	}
	switch v.Kind {
	case value.KindList:
		items := v.List.Slice()
		for i := range items {
			if items[i], err = vm.forceDeep(ctx, items[i]); err != nil || items[i].IsError() {
				return items[i], err
			}
		}
		return value.ListOf(items...), nil

	case value.KindCons:
		fst, err := vm.forceDeep(ctx, v.Cons.Fst)
		if err != nil || fst.IsError() {
			return fst, err
		}
		snd, err := vm.forceDeep(ctx, v.Cons.Snd)
		if err != nil || snd.IsError() {
			return snd, err
		}
		return value.NewCons(fst, snd), nil

	case value.KindAttributes:
		out := value.Attributes{}
		for _, k := range v.Attrs.Keys() {
			m, _ := v.Attrs.Get(k)
			m, err := vm.forceDeep(ctx, m)
			if err != nil || m.IsError() {
				return m, err
			}
			out = out.Insert(k, m)
		}
		return value.AttributesValue(out), nil
	}
	return v, nil
}
