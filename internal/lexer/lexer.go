package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"isle/internal/token"
)

// Lexer turns source text into tokens. Interpolated literals (strings,
// quoted identifiers, paths) are returned raw; the parser splits them.
type Lexer struct {
	input string

	pos  int // offset of ch
	next int // offset after ch
	end  int
	ch   rune

	errors []string
}

func New(input string) *Lexer {
	return NewAt(input, 0, len(input))
}

// NewAt lexes input[start:end]. Spans stay relative to the whole input.
func NewAt(input string, start, end int) *Lexer {
	l := &Lexer{input: input, next: start, end: end}
	l.readChar()
	return l
}

func (l *Lexer) Errors() []string {
	return l.errors
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	start := l.pos
	ch := l.ch

	// EOF
	if ch == 0 {
		return l.tok(token.EOF, start, "")
	}

	// Numbers
	if isDigit(ch) {
		lit, isFloat := l.readNumber()
		if isFloat {
			return l.tok(token.Float, start, lit)
		}
		return l.tok(token.Int, start, lit)
	}

	// Identifiers / keywords
	if isLetter(ch) {
		lit := l.readIdentifier()
		return l.tok(token.LookupIdent(lit), start, lit)
	}

	switch ch {
	case '"':
		l.readChar()
		lit, ok := l.readDelimited('"')
		if !ok {
			l.errorf(start, "unterminated string literal")
			return l.tok(token.Illegal, start, lit)
		}
		return l.tok(token.String, start, lit)

	case '`':
		l.readChar()
		lit, ok := l.readDelimited('`')
		if !ok {
			l.errorf(start, "unterminated quoted identifier")
			return l.tok(token.Illegal, start, lit)
		}
		return l.tok(token.QuotedIdent, start, lit)

	case '\'':
		l.readChar()
		lit, ok := l.readDelimited('\'')
		if !ok {
			l.errorf(start, "unterminated rune literal")
			return l.tok(token.Illegal, start, lit)
		}
		return l.tok(token.Rune, start, lit)

	case '.':
		if l.peekChar() == '/' || (l.peekChar() == '.' && l.peekAt(2) == '/') {
			l.readPathText()
			return l.tok(token.Path, start, l.input[start:l.pos])
		}

	case '<':
		if isLetter(l.peekChar()) {
			if tok, ok := l.tryIsland(start); ok {
				return tok
			}
		}
	}

	// Operators and delimiters
	var kind token.Kind
	switch ch {
	case ';':
		kind = token.Semicolon
	case ',':
		kind = token.Comma
	case '.':
		kind = token.Dot
	case ':':
		kind = token.Colon
	case '(':
		kind = token.LParen
	case ')':
		kind = token.RParen
	case '{':
		kind = token.LBrace
	case '}':
		kind = token.RBrace
	case '[':
		kind = token.LBracket
	case ']':
		kind = token.RBracket
	case '=':
		kind = l.either('=', token.Eq, '>', token.Arrow, token.Assign)
	case '+':
		kind = l.either('+', token.Concat, 0, 0, token.Plus)
	case '-':
		kind = l.either('>', token.Implies, 0, 0, token.Minus)
	case '*':
		kind = l.either('*', token.Power, 0, 0, token.Star)
	case '/':
		kind = l.either('/', token.Update, 0, 0, token.Slash)
	case '!':
		kind = l.either('=', token.NotEq, 0, 0, token.Bang)
	case '<':
		kind = l.either('=', token.LtEq, 0, 0, token.Lt)
	case '>':
		kind = l.either('=', token.GtEq, 0, 0, token.Gt)
	case '&':
		kind = l.either('&', token.AndAnd, 0, 0, token.Amp)
	case '|':
		kind = l.either('|', token.OrOr, 0, 0, token.Pipe)
	default:
		l.errorf(start, "unexpected character %q", ch)
		kind = token.Illegal
	}

	l.readChar()
	return l.tok(kind, start, l.input[start:l.pos])
}

// either consumes a second character if it matches a or b.
func (l *Lexer) either(a rune, ka token.Kind, b rune, kb token.Kind, single token.Kind) token.Kind {
	switch next := l.peekChar(); {
	case a != 0 && next == a:
		l.readChar()
		return ka
	case b != 0 && next == b:
		l.readChar()
		return kb
	}
	return single
}

func (l *Lexer) tok(kind token.Kind, start int, lexeme string) token.Token {
	return token.Token{
		Kind:   kind,
		Lexeme: lexeme,
		Span:   token.Span{Start: start, End: l.pos},
	}
}

// Helpers

func (l *Lexer) readChar() {
	l.pos = l.next
	if l.next >= l.end {
		l.ch = 0
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.next:l.end])
	l.ch = r
	l.next += size
}

func (l *Lexer) peekChar() rune {
	if l.next >= l.end {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.next:l.end])
	return r
}

// peekAt returns the rune n characters after ch.
func (l *Lexer) peekAt(n int) rune {
	at := l.pos
	var r rune
	for i := 0; i <= n; i++ {
		if at >= l.end {
			return 0
		}
		var size int
		r, size = utf8.DecodeRuneInString(l.input[at:l.end])
		at += size
	}
	return r
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for unicode.IsSpace(l.ch) {
			l.readChar()
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		break
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber() (string, bool) {
	start := l.pos
	if l.ch == '0' {
		switch l.peekChar() {
		case 'x', 'X', 'b', 'B', 'o', 'O':
			l.readChar()
			l.readChar()
			for isHexDigit(l.ch) || l.ch == '_' {
				l.readChar()
			}
			return l.input[start:l.pos], false
		}
	}
	isFloat := false
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		isFloat = true
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos], isFloat
}

// readDelimited reads up to the closing delimiter, skipping escapes and
// nested ${} interpolations. ch is the first character after the opening
// delimiter. The raw content is returned and the closer consumed.
func (l *Lexer) readDelimited(delim rune) (string, bool) {
	start := l.pos
	for {
		switch {
		case l.ch == 0:
			return l.input[start:l.pos], false
		case l.ch == delim:
			lit := l.input[start:l.pos]
			l.readChar()
			return lit, true
		case l.ch == '\\':
			l.readChar()
			if l.ch != 0 {
				l.readChar()
			}
		case l.ch == '$' && l.peekChar() == '{':
			l.readChar()
			l.readChar()
			if !l.skipInterpolation() {
				return l.input[start:l.pos], false
			}
		default:
			l.readChar()
		}
	}
}

// skipInterpolation consumes an interpolated expression and its closing
// brace.
func (l *Lexer) skipInterpolation() bool {
	depth := 1
	for l.ch != 0 {
		switch l.ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				l.readChar()
				return true
			}
		case '"', '`', '\'':
			delim := l.ch
			l.readChar()
			if _, ok := l.readDelimited(delim); !ok {
				return false
			}
			continue
		}
		l.readChar()
	}
	return false
}

// readPathText consumes path characters, separators and interpolations.
func (l *Lexer) readPathText() {
	for {
		switch {
		case isPathChar(l.ch):
			l.readChar()
		case l.ch == '/' && (isPathChar(l.peekChar()) || l.peekChar() == '$'):
			l.readChar()
		case l.ch == '$' && l.peekChar() == '{':
			l.readChar()
			l.readChar()
			if !l.skipInterpolation() {
				return
			}
		default:
			return
		}
	}
}

// tryIsland lexes <type> or <type:arg> followed by an optional subpath. It
// restores the lexer and reports false if the text is not an island.
func (l *Lexer) tryIsland(start int) (token.Token, bool) {
	saved := *l
	l.readChar() // '<'
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '-' {
		l.readChar()
	}
	if l.ch == ':' {
		l.readChar()
		for l.ch != '>' {
			if l.ch == 0 || unicode.IsSpace(l.ch) || l.ch == '<' {
				*l = saved
				return token.Token{}, false
			}
			l.readChar()
		}
	}
	if l.ch != '>' {
		*l = saved
		return token.Token{}, false
	}
	l.readChar()
	if l.ch == '/' && (isPathChar(l.peekChar()) || l.peekChar() == '$') {
		l.readPathText()
	}
	return l.tok(token.Island, start, l.input[start:l.pos]), true
}

func (l *Lexer) errorf(at int, format string, args ...any) {
	l.errors = append(l.errors, fmt.Sprintf("%d: %s", at, fmt.Sprintf(format, args...)))
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

func isPathChar(ch rune) bool {
	return isLetter(ch) || isDigit(ch) || ch == '.' || ch == '-'
}
