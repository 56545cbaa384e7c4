package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"isle/internal/ast"
	"isle/internal/lexer"
	"isle/internal/report"
	"isle/internal/token"
)

type Parser struct {
	l     *lexer.Lexer
	input string

	cur  token.Token
	peek token.Token

	errors []string
}

func New(input string) *Parser {
	return newAt(input, 0, len(input))
}

// newAt parses input[start:end] while keeping spans relative to input.
func newAt(input string, start, end int) *Parser {
	p := &Parser{l: lexer.NewAt(input, start, end), input: input}
	// init cur/peek
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole expression. The returned error lists every problem.
func Parse(input string) (ast.Expr, error) {
	p := New(input)
	expr := p.ParseExpression()
	if errs := p.Errors(); len(errs) > 0 {
		return expr, fmt.Errorf("parse: %s", strings.Join(errs, "; "))
	}
	return expr, nil
}

func (p *Parser) Errors() []string {
	return append(p.l.Errors(), p.errors...)
}

func (p *Parser) nextToken() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) errorf(span token.Span, format string, args ...interface{}) {
	line, col := report.Position(p.input, span.Start)
	msg := fmt.Sprintf("%d:%d: ", line, col) + fmt.Sprintf(format, args...)
	p.errors = append(p.errors, msg)
}

func (p *Parser) expect(kind token.Kind) token.Token {
	if p.cur.Kind != kind {
		p.errorf(p.cur.Span, "expected %s, got %s (%q)", kind, p.cur.Kind, p.cur.Lexeme)
	}
	tok := p.cur
	p.nextToken()
	return tok
}

// ParseExpression parses one expression and expects the end of input.
func (p *Parser) ParseExpression() ast.Expr {
	expr := p.parseExpr()
	if p.cur.Kind != token.EOF {
		p.errorf(p.cur.Span, "unexpected %s after expression", p.cur.Kind)
	}
	return expr
}

// ---------- Expressions ----------

func (p *Parser) parseExpr() ast.Expr {
	switch {
	case p.cur.Kind == token.Let:
		return p.parseLet()
	case p.cur.Kind == token.If:
		return p.parseIf()
	case p.cur.Kind == token.Ident && p.peek.Kind == token.Arrow:
		return p.parseLambda()
	}
	return p.parseImplication()
}

func (p *Parser) parseLet() ast.Expr {
	letTok := p.expect(token.Let)
	bindings := p.parseBindings(token.In)
	p.expect(token.In)
	body := p.parseExpr()
	return &ast.LetExpr{Bindings: bindings, Body: body, LetSpan: letTok.Span}
}

func (p *Parser) parseIf() ast.Expr {
	ifTok := p.expect(token.If)
	cond := p.parseExpr()
	p.expect(token.Then)
	then := p.parseExpr()
	p.expect(token.Else)
	els := p.parseExpr()
	return &ast.IfExpr{Cond: cond, Then: then, Else: els, IfSpan: ifTok.Span}
}

func (p *Parser) parseLambda() ast.Expr {
	param := p.expect(token.Ident)
	p.expect(token.Arrow)
	body := p.parseExpr()
	return &ast.LambdaExpr{Param: param.Lexeme, ParamSpan: param.Span, Body: body}
}

// parseBindings reads `name = value` pairs separated by ';' up to end.
func (p *Parser) parseBindings(end token.Kind) []*ast.Binding {
	var out []*ast.Binding
	for p.cur.Kind != end && p.cur.Kind != token.EOF {
		name := p.parseBindingName()
		if name == nil {
			p.nextToken()
			continue
		}
		p.expect(token.Assign)
		val := p.parseExpr()
		out = append(out, &ast.Binding{Name: name, Value: val})
		if p.cur.Kind != token.Semicolon {
			break
		}
		p.nextToken()
	}
	return out
}

func (p *Parser) parseBindingName() *ast.IdentExpr {
	tok := p.cur
	switch tok.Kind {
	case token.Ident:
		p.nextToken()
		return ast.Ident(tok.Lexeme, tok.Span)
	case token.QuotedIdent, token.String:
		p.nextToken()
		return &ast.IdentExpr{Parts: p.splitInterpolated(tok, 1), NameSpan: tok.Span}
	default:
		p.errorf(tok.Span, "expected binding name, got %s", tok.Kind)
		return nil
	}
}

func (p *Parser) binary(op token.Token, left, right ast.Expr) ast.Expr {
	return &ast.BinaryExpr{OpSpan: op.Span, Op: op.Kind, Left: left, Right: right}
}

// parseRight parses a right associative level.
func (p *Parser) parseRight(next func() ast.Expr, kinds ...token.Kind) ast.Expr {
	left := next()
	if p.isOneOf(kinds...) {
		opTok := p.cur
		p.nextToken()
		right := p.parseRight(next, kinds...)
		return p.binary(opTok, left, right)
	}
	return left
}

// parseLeft parses a left associative level.
func (p *Parser) parseLeft(next func() ast.Expr, kinds ...token.Kind) ast.Expr {
	left := next()
	for p.isOneOf(kinds...) {
		opTok := p.cur
		p.nextToken()
		right := next()
		left = p.binary(opTok, left, right)
	}
	return left
}

func (p *Parser) isOneOf(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.cur.Kind == k {
			return true
		}
	}
	return false
}

func (p *Parser) parseImplication() ast.Expr {
	return p.parseRight(p.parseOr, token.Implies)
}

func (p *Parser) parseOr() ast.Expr {
	return p.parseLeft(p.parseAnd, token.OrOr)
}

func (p *Parser) parseAnd() ast.Expr {
	return p.parseLeft(p.parseAny, token.AndAnd)
}

func (p *Parser) parseAny() ast.Expr {
	return p.parseLeft(p.parseAll, token.Pipe)
}

func (p *Parser) parseAll() ast.Expr {
	return p.parseLeft(p.parseEquality, token.Amp)
}

func (p *Parser) parseEquality() ast.Expr {
	return p.parseLeft(p.parseRelational, token.Eq, token.NotEq)
}

func (p *Parser) parseRelational() ast.Expr {
	return p.parseLeft(p.parseUpdate, token.Lt, token.LtEq, token.Gt, token.GtEq)
}

func (p *Parser) parseUpdate() ast.Expr {
	return p.parseLeft(p.parseConcat, token.Update)
}

func (p *Parser) parseConcat() ast.Expr {
	return p.parseRight(p.parseConstruct, token.Concat)
}

func (p *Parser) parseConstruct() ast.Expr {
	return p.parseRight(p.parseAdditive, token.Colon)
}

func (p *Parser) parseAdditive() ast.Expr {
	return p.parseLeft(p.parseMultiplicative, token.Plus, token.Minus)
}

func (p *Parser) parseMultiplicative() ast.Expr {
	return p.parseLeft(p.parsePower, token.Star, token.Slash)
}

func (p *Parser) parsePower() ast.Expr {
	return p.parseRight(p.parseUnary, token.Power)
}

func (p *Parser) parseUnary() ast.Expr {
	if p.cur.Kind == token.Bang || p.cur.Kind == token.Minus || p.cur.Kind == token.Plus {
		opTok := p.cur
		p.nextToken()
		x := p.parseUnary()
		return &ast.UnaryExpr{
			OpSpan: opTok.Span,
			Op:     opTok.Kind,
			X:      x,
		}
	}
	return p.parseApplication()
}

// parseApplication parses juxtaposition: f a b is (f a) b.
func (p *Parser) parseApplication() ast.Expr {
	expr := p.parsePostfix()
	for startsAtom(p.cur.Kind) {
		arg := p.parsePostfix()
		expr = &ast.CallExpr{Fn: expr, Arg: arg}
	}
	return expr
}

func startsAtom(k token.Kind) bool {
	switch k {
	case token.Int, token.Float, token.Rune, token.String, token.Ident, token.QuotedIdent,
		token.Path, token.Island, token.True, token.False,
		token.LParen, token.LBracket, token.LBrace:
		return true
	}
	return false
}

func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()
	for p.cur.Kind == token.Dot {
		p.nextToken()
		tok := p.cur
		switch tok.Kind {
		case token.Ident:
			p.nextToken()
			expr = &ast.SelectExpr{X: expr, Name: ast.Ident(tok.Lexeme, tok.Span)}
		case token.QuotedIdent:
			p.nextToken()
			expr = &ast.SelectExpr{X: expr, Name: &ast.IdentExpr{Parts: p.splitInterpolated(tok, 1), NameSpan: tok.Span}}
		default:
			p.errorf(tok.Span, "expected attribute name after '.', got %s", tok.Kind)
			return expr
		}
	}
	return expr
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.cur
	switch tok.Kind {
	case token.Int:
		p.nextToken()
		return &ast.IntLiteral{Raw: tok.Lexeme, LitSpan: tok.Span}

	case token.Float:
		p.nextToken()
		f, err := strconv.ParseFloat(strings.ReplaceAll(tok.Lexeme, "_", ""), 64)
		if err != nil {
			p.errorf(tok.Span, "invalid float literal %q", tok.Lexeme)
		}
		return &ast.FloatLiteral{Value: f, Raw: tok.Lexeme, LitSpan: tok.Span}

	case token.Rune:
		p.nextToken()
		return p.parseRune(tok)

	case token.True, token.False:
		p.nextToken()
		return &ast.BoolLiteral{Value: tok.Kind == token.True, LitSpan: tok.Span}

	case token.String:
		p.nextToken()
		return &ast.StringLiteral{Parts: p.splitInterpolated(tok, 1), LitSpan: tok.Span}

	case token.Ident:
		p.nextToken()
		return ast.Ident(tok.Lexeme, tok.Span)

	case token.QuotedIdent:
		p.nextToken()
		return &ast.IdentExpr{Parts: p.splitInterpolated(tok, 1), NameSpan: tok.Span}

	case token.Path:
		p.nextToken()
		return p.parsePath(tok)

	case token.Island:
		p.nextToken()
		return p.parseIsland(tok)

	case token.LParen:
		p.nextToken()
		x := p.parseExpr()
		closeTok := p.expect(token.RParen)
		return &ast.ParenExpr{X: x, ParenSpan: tok.Span.Cover(closeTok.Span)}

	case token.LBracket:
		return p.parseList()

	case token.LBrace:
		return p.parseAttrs()

	default:
		p.errorf(tok.Span, "unexpected %s", tok.Kind)
		p.nextToken()
		return &ast.IdentExpr{NameSpan: tok.Span}
	}
}

func (p *Parser) parseList() ast.Expr {
	open := p.expect(token.LBracket)
	var items []ast.Expr
	for p.cur.Kind != token.RBracket && p.cur.Kind != token.EOF {
		items = append(items, p.parseExpr())
		if p.cur.Kind != token.Comma {
			break
		}
		p.nextToken()
	}
	closeTok := p.expect(token.RBracket)
	return &ast.ListLiteral{Items: items, LitSpan: open.Span.Cover(closeTok.Span)}
}

func (p *Parser) parseAttrs() ast.Expr {
	open := p.expect(token.LBrace)
	bindings := p.parseBindings(token.RBrace)
	closeTok := p.expect(token.RBrace)
	return &ast.AttrsLiteral{Bindings: bindings, LitSpan: open.Span.Cover(closeTok.Span)}
}

func (p *Parser) parseRune(tok token.Token) ast.Expr {
	text, ok := p.unescape(tok.Lexeme, tok.Span.Start+1)
	r, size := utf8.DecodeRuneInString(text)
	if !ok || size == 0 || size != len(text) {
		p.errorf(tok.Span, "rune literal must hold exactly one character")
	}
	return &ast.RuneLiteral{Value: r, LitSpan: tok.Span}
}

// parsePath handles ./a/b and ../a/b. Parts hold the text after "./".
func (p *Parser) parsePath(tok token.Token) ast.Expr {
	skip := 0
	if strings.HasPrefix(tok.Lexeme, "./") {
		skip = 2
	}
	inner := token.Token{Kind: tok.Kind, Lexeme: tok.Lexeme[skip:], Span: tok.Span}
	return &ast.PathLiteral{Parts: p.splitRaw(inner, tok.Span.Start+skip, false), LitSpan: tok.Span}
}

// parseIsland handles <type>, <type:arg> and <type:arg>/a/b.
func (p *Parser) parseIsland(tok token.Token) ast.Expr {
	closeAt := strings.IndexByte(tok.Lexeme, '>')
	header := tok.Lexeme[1:closeAt]
	typ, arg, _ := strings.Cut(header, ":")
	h := &ast.IslandHeader{
		Type:       typ,
		Arg:        arg,
		HeaderSpan: token.Span{Start: tok.Span.Start, End: tok.Span.Start + closeAt + 1},
	}
	rest := tok.Lexeme[closeAt+1:]
	offset := tok.Span.Start + closeAt + 1
	inner := token.Token{Kind: tok.Kind, Lexeme: rest, Span: token.Span{Start: offset, End: tok.Span.End}}
	return &ast.PathLiteral{Island: h, Parts: p.splitRaw(inner, offset, false), LitSpan: tok.Span}
}

// splitInterpolated splits a delimited literal whose content starts skip
// bytes after the token start.
func (p *Parser) splitInterpolated(tok token.Token, skip int) []ast.Part {
	return p.splitRaw(tok, tok.Span.Start+skip, true)
}

// splitRaw separates text from ${} interpolations in raw. offset is the
// source offset of raw's first byte.
func (p *Parser) splitRaw(tok token.Token, offset int, escapes bool) []ast.Part {
	raw := tok.Lexeme
	var parts []ast.Part
	textStart := 0

	flush := func(end int) {
		if end <= textStart {
			return
		}
		chunk := raw[textStart:end]
		if escapes {
			var ok bool
			chunk, ok = p.unescape(chunk, offset+textStart)
			if !ok {
				return
			}
		}
		parts = append(parts, &ast.TextPart{
			Value:    chunk,
			PartSpan: token.Span{Start: offset + textStart, End: offset + end},
		})
	}

	for i := 0; i < len(raw); i++ {
		switch {
		case escapes && raw[i] == '\\':
			i++
		case raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{':
			flush(i)
			end := matchBrace(raw, i+2)
			if end < 0 {
				p.errorf(token.Span{Start: offset + i, End: offset + len(raw)}, "unterminated interpolation")
				return parts
			}
			sub := newAt(p.input, offset+i+2, offset+end)
			expr := sub.ParseExpression()
			p.errors = append(p.errors, sub.Errors()...)
			parts = append(parts, &ast.ExprPart{Expr: expr})
			i = end
			textStart = end + 1
		}
	}
	flush(len(raw))
	if len(parts) == 0 && escapes {
		parts = append(parts, &ast.TextPart{Value: "", PartSpan: token.Span{Start: offset, End: offset}})
	}
	return parts
}

// matchBrace returns the index of the '}' closing an interpolation whose
// body starts at from, or -1.
func matchBrace(s string, from int) int {
	depth := 1
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		case '"', '`', '\'':
			delim := s[i]
			for i++; i < len(s) && s[i] != delim; i++ {
				if s[i] == '\\' {
					i++
				}
			}
		}
	}
	return -1
}

func (p *Parser) unescape(s string, offset int) (string, bool) {
	if !strings.ContainsRune(s, '\\') {
		return s, true
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			p.errorf(token.Span{Start: offset + i - 1, End: offset + i}, "dangling escape")
			return "", false
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\', '"', '\'', '`', '$':
			b.WriteByte(s[i])
		case 'u':
			if i+1 >= len(s) || s[i+1] != '{' {
				p.errorf(token.Span{Start: offset + i - 1, End: offset + i + 1}, "expected '{' after \\u")
				return "", false
			}
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				p.errorf(token.Span{Start: offset + i - 1, End: offset + len(s)}, "unterminated unicode escape")
				return "", false
			}
			hex := s[i+2 : i+end]
			code, err := strconv.ParseUint(hex, 16, 32)
			if err != nil || !utf8.ValidRune(rune(code)) {
				p.errorf(token.Span{Start: offset + i - 1, End: offset + i + end + 1}, "invalid unicode escape %q", hex)
				return "", false
			}
			b.WriteRune(rune(code))
			i += end
		default:
			p.errorf(token.Span{Start: offset + i - 1, End: offset + i + 1}, "unknown escape \\%c", s[i])
			return "", false
		}
	}
	return b.String(), true
}
