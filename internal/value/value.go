package value

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind is the type of a value at runtime.
type Kind int

const (
	KindNope Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindRune
	KindString
	KindBytes
	KindList
	KindCons
	KindAttributes
	KindPath
	KindBind
	KindReference
	KindThunk
	KindBlueprint
	KindNative
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindNope:
		return "nope"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindRune:
		return "rune"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindCons:
		return "cons"
	case KindAttributes:
		return "attributes"
	case KindPath:
		return "path"
	case KindBind:
		return "bind"
	case KindReference:
		return "reference"
	case KindThunk:
		return "thunk"
	case KindBlueprint:
		return "blueprint"
	case KindNative:
		return "native"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is the universal runtime value. Only the fields matching Kind are set.
type Value struct {
	Kind  Kind
	Bool  bool
	Float float64
	Rune  rune
	Str   string // String, Bind and Reference
	Int   *big.Int
	Bytes []byte
	List  List
	Cons  *Cons
	Attrs Attributes
	Path  *Path
	Thunk *Thunk
	Code  *Code
	// Scopes captured by a closure. Nil for a raw blueprint constant.
	Scopes *Scopes
	Native *Native
	Err    *Error
}

var (
	True  = Value{Kind: KindBoolean, Bool: true}
	False = Value{Kind: KindBoolean, Bool: false}
	Nope  = Value{Kind: KindNope}
)

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func Int(i int64) Value {
	return Value{Kind: KindInteger, Int: big.NewInt(i)}
}

// IntFromBig wraps n. The caller must not mutate n afterwards.
func IntFromBig(n *big.Int) Value {
	return Value{Kind: KindInteger, Int: n}
}

func Float(f float64) Value {
	return Value{Kind: KindFloat, Float: f}
}

func RuneOf(r rune) Value {
	return Value{Kind: KindRune, Rune: r}
}

func Str(s string) Value {
	return Value{Kind: KindString, Str: s}
}

func BytesOf(b []byte) Value {
	return Value{Kind: KindBytes, Bytes: b}
}

// BindOf returns a binding name value. Names are interned in NFC form.
func BindOf(name string) Value {
	return Value{Kind: KindBind, Str: Intern(name)}
}

// ReferenceOf returns an unresolved identifier value.
func ReferenceOf(name string) Value {
	return Value{Kind: KindReference, Str: Intern(name)}
}

func PathOf(p *Path) Value {
	return Value{Kind: KindPath, Path: p}
}

func ThunkOf(t *Thunk) Value {
	return Value{Kind: KindThunk, Thunk: t}
}

// BlueprintOf returns a raw blueprint over c.
func BlueprintOf(c *Code) Value {
	return Value{Kind: KindBlueprint, Code: c}
}

// ClosureOf returns a blueprint bound to the scopes it was created in.
func ClosureOf(c *Code, s Scopes) Value {
	return Value{Kind: KindBlueprint, Code: c, Scopes: &s}
}

// Intern normalises an identifier to NFC so that canonically equivalent
// spellings resolve to the same binding.
func Intern(name string) string {
	if norm.NFC.IsNormalString(name) {
		return name
	}
	return norm.NFC.String(name)
}

// IsThunk reports whether v still needs forcing.
func (v Value) IsThunk() bool { return v.Kind == KindThunk }

func (v Value) IsError() bool { return v.Kind == KindError }

// IsNil reports whether v is the empty list.
func (v Value) IsNil() bool { return v.Kind == KindList && v.List.Len() == 0 }

// Printable returns the text Interpolate splices in for v.
func (v Value) Printable() (string, bool) {
	switch v.Kind {
	case KindString, KindBind, KindReference:
		return v.Str, true
	case KindPath:
		return v.Path.String(), true
	default:
		return "", false
	}
}

func (v Value) String() string {
	var b strings.Builder
	v.write(&b)
	return b.String()
}

func (v Value) write(b *strings.Builder) {
	switch v.Kind {
	case KindNope:
		b.WriteString("nope")
	case KindBoolean:
		b.WriteString(strconv.FormatBool(v.Bool))
	case KindInteger:
		b.WriteString(v.Int.String())
	case KindFloat:
		b.WriteString(formatFloat(v.Float))
	case KindRune:
		b.WriteString(strconv.QuoteRune(v.Rune))
	case KindString:
		b.WriteString(strconv.Quote(v.Str))
	case KindBytes:
		fmt.Fprintf(b, "bytes(%q)", v.Bytes)
	case KindList:
		b.WriteByte('[')
		i := 0
		v.List.Each(func(el Value) bool {
			if i > 0 {
				b.WriteString(", ")
			}
			el.write(b)
			i++
			return true
		})
		b.WriteByte(']')
	case KindCons:
		v.Cons.Fst.write(b)
		b.WriteString(" : ")
		v.Cons.Snd.write(b)
	case KindAttributes:
		if v.Attrs.Len() == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{ ")
		v.Attrs.Each(func(k string, el Value) bool {
			b.WriteString(k)
			b.WriteString(" = ")
			el.write(b)
			b.WriteString("; ")
			return true
		})
		b.WriteByte('}')
	case KindPath:
		b.WriteString(v.Path.String())
	case KindBind:
		b.WriteByte('@')
		b.WriteString(v.Str)
	case KindReference:
		b.WriteString(v.Str)
	case KindThunk:
		b.WriteString(v.Thunk.String())
	case KindBlueprint:
		if p, ok := v.Code.Parameter(); ok {
			fmt.Fprintf(b, "<lambda %s>", p)
		} else {
			b.WriteString("<blueprint>")
		}
	case KindNative:
		fmt.Fprintf(b, "<native %s>", v.Native.Name)
	case KindError:
		b.WriteString("error(")
		v.Err.Value.write(b)
		b.WriteByte(')')
	default:
		b.WriteString("<invalid>")
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
