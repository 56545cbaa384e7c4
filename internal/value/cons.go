package value

import "math/big"

// Cons is a shared pair.
type Cons struct {
	Fst Value
	Snd Value
}

const (
	consFst = "fst"
	consSnd = "snd"
)

func NewCons(fst, snd Value) Value {
	return Value{Kind: KindCons, Cons: &Cons{Fst: fst, Snd: snd}}
}

// Attributes returns the { fst = ...; snd = ... } view of c.
func (c *Cons) Attributes() Attributes {
	return Attributes{}.Insert(consFst, c.Fst).Insert(consSnd, c.Snd)
}

// ConsFromAttributes is the inverse of (*Cons).Attributes. It fails unless a
// holds exactly the keys fst and snd.
func ConsFromAttributes(a Attributes) (Value, bool) {
	if a.Len() != 2 {
		return Value{}, false
	}
	fst, ok := a.Get(consFst)
	if !ok {
		return Value{}, false
	}
	snd, ok := a.Get(consSnd)
	if !ok {
		return Value{}, false
	}
	return NewCons(fst, snd), true
}

const (
	integerZero = "__zero__"
	integerSucc = "__succ__"
)

// IntegerAttributes returns the Church-style attribute view of n: zero is
// { __zero__ = true } and every positive n is { __succ__ = n - 1 }.
// Negative integers have no view.
func IntegerAttributes(n *big.Int) (Attributes, bool) {
	switch n.Sign() {
	case 0:
		return Attributes{}.Insert(integerZero, True), true
	case 1:
		pred := new(big.Int).Sub(n, big.NewInt(1))
		return Attributes{}.Insert(integerSucc, IntFromBig(pred)), true
	default:
		return Attributes{}, false
	}
}

// AsAttributes returns the attribute view of v for kinds that have one.
func AsAttributes(v Value) (Attributes, bool) {
	switch v.Kind {
	case KindAttributes:
		return v.Attrs, true
	case KindCons:
		return v.Cons.Attributes(), true
	case KindInteger:
		return IntegerAttributes(v.Int)
	default:
		return Attributes{}, false
	}
}
