package ast

import (
	"strings"

	"isle/internal/token"
)

// Basic interfaces

type Node interface {
	Span() token.Span
}

type Expr interface {
	Node
	exprNode()
}

// ---------- Interpolation parts ----------

type Part interface {
	Node
	partNode()
}

type TextPart struct {
	Value    string
	PartSpan token.Span
}

func (p *TextPart) Span() token.Span { return p.PartSpan }
func (p *TextPart) partNode()        {}

type ExprPart struct {
	Expr Expr
}

func (p *ExprPart) Span() token.Span { return p.Expr.Span() }
func (p *ExprPart) partNode()        {}

// StaticText joins parts if none of them is interpolated.
func StaticText(parts []Part) (string, bool) {
	var b strings.Builder
	for _, p := range parts {
		text, ok := p.(*TextPart)
		if !ok {
			return "", false
		}
		b.WriteString(text.Value)
	}
	return b.String(), true
}

// ---------- Literals ----------

type IntLiteral struct {
	Raw     string
	LitSpan token.Span
}

func (e *IntLiteral) Span() token.Span { return e.LitSpan }
func (e *IntLiteral) exprNode()        {}

type FloatLiteral struct {
	Value   float64
	Raw     string
	LitSpan token.Span
}

func (e *FloatLiteral) Span() token.Span { return e.LitSpan }
func (e *FloatLiteral) exprNode()        {}

type RuneLiteral struct {
	Value   rune
	LitSpan token.Span
}

func (e *RuneLiteral) Span() token.Span { return e.LitSpan }
func (e *RuneLiteral) exprNode()        {}

type BoolLiteral struct {
	Value   bool
	LitSpan token.Span
}

func (e *BoolLiteral) Span() token.Span { return e.LitSpan }
func (e *BoolLiteral) exprNode()        {}

// StringLiteral is a string, possibly with ${} interpolations.
type StringLiteral struct {
	Parts   []Part
	LitSpan token.Span
}

func (e *StringLiteral) Span() token.Span { return e.LitSpan }
func (e *StringLiteral) exprNode()        {}

// IslandHeader is the <type:arg> prefix of a rooted path.
type IslandHeader struct {
	Type       string
	Arg        string
	HeaderSpan token.Span
}

func (h *IslandHeader) Span() token.Span { return h.HeaderSpan }

// PathLiteral is ./a/b, ../a or <type:arg>/a/b. Parts hold the text after
// the "./" or the island header.
type PathLiteral struct {
	Island  *IslandHeader
	Parts   []Part
	LitSpan token.Span
}

func (e *PathLiteral) Span() token.Span { return e.LitSpan }
func (e *PathLiteral) exprNode()        {}

// ---------- Names ----------

// IdentExpr is a name, written plainly or quoted with interpolations.
type IdentExpr struct {
	Parts    []Part
	NameSpan token.Span
}

func (e *IdentExpr) Span() token.Span { return e.NameSpan }
func (e *IdentExpr) exprNode()        {}

// Name returns the identifier when it is not interpolated.
func (e *IdentExpr) Name() (string, bool) { return StaticText(e.Parts) }

// Ident is a shorthand for a plain identifier node.
func Ident(name string, span token.Span) *IdentExpr {
	return &IdentExpr{Parts: []Part{&TextPart{Value: name, PartSpan: span}}, NameSpan: span}
}

// ---------- Compound expressions ----------

type ListLiteral struct {
	Items   []Expr
	LitSpan token.Span
}

func (e *ListLiteral) Span() token.Span { return e.LitSpan }
func (e *ListLiteral) exprNode()        {}

// Binding is name = value inside an attribute set or let.
type Binding struct {
	Name  *IdentExpr
	Value Expr
}

func (b *Binding) Span() token.Span { return b.Name.Span().Cover(b.Value.Span()) }

type AttrsLiteral struct {
	Bindings []*Binding
	LitSpan  token.Span
}

func (e *AttrsLiteral) Span() token.Span { return e.LitSpan }
func (e *AttrsLiteral) exprNode()        {}

type LetExpr struct {
	Bindings []*Binding
	Body     Expr
	LetSpan  token.Span
}

func (e *LetExpr) Span() token.Span { return e.LetSpan.Cover(e.Body.Span()) }
func (e *LetExpr) exprNode()        {}

type IfExpr struct {
	Cond   Expr
	Then   Expr
	Else   Expr
	IfSpan token.Span
}

func (e *IfExpr) Span() token.Span { return e.IfSpan.Cover(e.Else.Span()) }
func (e *IfExpr) exprNode()        {}

type LambdaExpr struct {
	Param     string
	ParamSpan token.Span
	Body      Expr
}

func (e *LambdaExpr) Span() token.Span { return e.ParamSpan.Cover(e.Body.Span()) }
func (e *LambdaExpr) exprNode()        {}

// CallExpr is application by juxtaposition: Fn Arg.
type CallExpr struct {
	Fn  Expr
	Arg Expr
}

func (e *CallExpr) Span() token.Span { return e.Fn.Span().Cover(e.Arg.Span()) }
func (e *CallExpr) exprNode()        {}

// SelectExpr is X.Name, evaluated with X's attributes as the innermost scope.
type SelectExpr struct {
	X    Expr
	Name *IdentExpr
}

func (e *SelectExpr) Span() token.Span { return e.X.Span().Cover(e.Name.Span()) }
func (e *SelectExpr) exprNode()        {}

type ParenExpr struct {
	X         Expr
	ParenSpan token.Span
}

func (e *ParenExpr) Span() token.Span { return e.ParenSpan }
func (e *ParenExpr) exprNode()        {}

type BinaryExpr struct {
	OpSpan token.Span
	Op     token.Kind
	Left   Expr
	Right  Expr
}

func (e *BinaryExpr) Span() token.Span { return e.Left.Span().Cover(e.Right.Span()) }
func (e *BinaryExpr) exprNode()        {}

type UnaryExpr struct {
	OpSpan token.Span
	Op     token.Kind
	X      Expr
}

func (e *UnaryExpr) Span() token.Span { return e.OpSpan.Cover(e.X.Span()) }
func (e *UnaryExpr) exprNode()        {}
