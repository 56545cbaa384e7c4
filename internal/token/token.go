package token

import "fmt"

type Kind int

const (
	Illegal Kind = iota
	EOF

	Ident       // Identifier
	QuotedIdent // `identifier ${with} interpolation`
	Int         // Integer, radix prefixes allowed
	Float       // Floating-point number
	Rune        // 'c'
	String      // "string ${with} interpolation"
	Path        // ./a/b or ../a/${x}
	Island      // <type:arg>/a/b

	// Keywords
	Let
	In
	If
	Then
	Else
	True
	False

	// Operators
	Assign // =
	Arrow  // =>
	Plus   // +
	Minus  // -
	Star   // *
	Power  // **
	Slash  // /
	Update // //
	Concat // ++
	Colon  // :
	Bang   // !

	Eq    // ==
	NotEq // !=
	Lt    // <
	LtEq  // <=
	Gt    // >
	GtEq  // >=

	AndAnd  // &&
	OrOr    // ||
	Amp     // &
	Pipe    // |
	Implies // ->

	// Delimiters
	Comma     // ,
	Semicolon // ;
	Dot       // .
	LParen    // (
	RParen    // )
	LBrace    // {
	RBrace    // }
	LBracket  // [
	RBracket  // ]
)

// Span is a half-open byte range into the source text.
type Span struct {
	Start int
	End   int
}

// Cover returns the smallest span containing both s and o.
func (s Span) Cover(o Span) Span {
	out := s
	if o.Start < out.Start {
		out.Start = o.Start
	}
	if o.End > out.End {
		out.End = o.End
	}
	return out
}

func (s Span) Len() int { return s.End - s.Start }

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

type Token struct {
	Kind   Kind
	Lexeme string
	Span   Span
}

func (k Kind) String() string {
	switch k {
	case Illegal:
		return "Illegal"
	case EOF:
		return "EOF"
	case Ident:
		return "Ident"
	case QuotedIdent:
		return "QuotedIdent"
	case Int:
		return "Int"
	case Float:
		return "Float"
	case Rune:
		return "Rune"
	case String:
		return "String"
	case Path:
		return "Path"
	case Island:
		return "Island"
	case Let:
		return "let"
	case In:
		return "in"
	case If:
		return "if"
	case Then:
		return "then"
	case Else:
		return "else"
	case True:
		return "true"
	case False:
		return "false"
	case Assign:
		return "="
	case Arrow:
		return "=>"
	case Plus:
		return "+"
	case Minus:
		return "-"
	case Star:
		return "*"
	case Power:
		return "**"
	case Slash:
		return "/"
	case Update:
		return "//"
	case Concat:
		return "++"
	case Colon:
		return ":"
	case Bang:
		return "!"
	case Eq:
		return "=="
	case NotEq:
		return "!="
	case Lt:
		return "<"
	case LtEq:
		return "<="
	case Gt:
		return ">"
	case GtEq:
		return ">="
	case AndAnd:
		return "&&"
	case OrOr:
		return "||"
	case Amp:
		return "&"
	case Pipe:
		return "|"
	case Implies:
		return "->"
	case Comma:
		return ","
	case Semicolon:
		return ";"
	case Dot:
		return "."
	case LParen:
		return "("
	case RParen:
		return ")"
	case LBrace:
		return "{"
	case RBrace:
		return "}"
	case LBracket:
		return "["
	case RBracket:
		return "]"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var keywords = map[string]Kind{
	"let":   Let,
	"in":    In,
	"if":    If,
	"then":  Then,
	"else":  Else,
	"true":  True,
	"false": False,
}

// LookupIdent returns keyword kind or Ident.
func LookupIdent(ident string) Kind {
	if kw, ok := keywords[ident]; ok {
		return kw
	}
	return Ident
}
