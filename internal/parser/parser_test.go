package parser_test

import (
	"strings"
	"testing"

	"isle/internal/ast"
	"isle/internal/parser"
	"isle/internal/token"
)

func mustParse(t *testing.T, input string) ast.Expr {
	t.Helper()
	p := parser.New(input)
	expr := p.ParseExpression()
	if errs := p.Errors(); len(errs) > 0 {
		for _, e := range errs {
			t.Logf("parser error: %s", e)
		}
		t.Fatalf("expected no parser errors, got %d", len(errs))
	}
	return expr
}

func TestParseLet(t *testing.T) {
	expr := mustParse(t, `let a = 1; b = a + 2 in b`)
	let, ok := expr.(*ast.LetExpr)
	if !ok {
		t.Fatalf("expected *ast.LetExpr, got %T", expr)
	}
	if len(let.Bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(let.Bindings))
	}
	if name, _ := let.Bindings[1].Name.Name(); name != "b" {
		t.Fatalf("expected second binding 'b', got %q", name)
	}
	if _, ok := let.Bindings[1].Value.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected binary value, got %T", let.Bindings[1].Value)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 - 2 - 3", "((1 - 2) - 3)"},
		{"2 ** 3 ** 2", "(2 ** (3 ** 2))"},
		{"a || b && c", "(a || (b && c))"},
		{"a -> b -> c", "(a -> (b -> c))"},
		{"a == b & c", "((a == b) & c)"},
		{"1 : 2 : xs", "(1 : (2 : xs))"},
		{"a ++ b ++ c", "(a ++ (b ++ c))"},
		{"a // b // c", "((a // b) // c)"},
		{"f x y", "((f x) y)"},
		{"f x.y", "(f x.y)"},
		{"-a * b", "((-a) * b)"},
		{"!a && b", "((!a) && b)"},
		{"a < b == c", "((a < b) == c)"},
		{"x : a + b", "(x : (a + b))"},
	}
	for _, tt := range tests {
		expr := mustParse(t, tt.input)
		if got := render(expr); got != tt.expected {
			t.Errorf("%q: expected %s, got %s", tt.input, tt.expected, got)
		}
	}
}

func TestParseLambdaAndIf(t *testing.T) {
	expr := mustParse(t, `x => if x > 0 then x else -x`)
	lam, ok := expr.(*ast.LambdaExpr)
	if !ok {
		t.Fatalf("expected *ast.LambdaExpr, got %T", expr)
	}
	if lam.Param != "x" {
		t.Fatalf("expected param x, got %q", lam.Param)
	}
	if _, ok := lam.Body.(*ast.IfExpr); !ok {
		t.Fatalf("expected if body, got %T", lam.Body)
	}
}

func TestParseAttrsAndSelect(t *testing.T) {
	expr := mustParse(t, "{ a = 1; `b ${c}` = 2; \"d\" = 3; }.a")
	sel, ok := expr.(*ast.SelectExpr)
	if !ok {
		t.Fatalf("expected *ast.SelectExpr, got %T", expr)
	}
	attrs, ok := sel.X.(*ast.AttrsLiteral)
	if !ok {
		t.Fatalf("expected attrs literal, got %T", sel.X)
	}
	if len(attrs.Bindings) != 3 {
		t.Fatalf("expected 3 bindings, got %d", len(attrs.Bindings))
	}
	if _, static := attrs.Bindings[1].Name.Name(); static {
		t.Fatalf("expected interpolated name for second binding")
	}
	if name, _ := attrs.Bindings[2].Name.Name(); name != "d" {
		t.Fatalf("expected string-named binding 'd', got %q", name)
	}
}

func TestParseStringInterpolation(t *testing.T) {
	expr := mustParse(t, `"a\t${1 + 2}b\u{41}"`)
	str, ok := expr.(*ast.StringLiteral)
	if !ok {
		t.Fatalf("expected *ast.StringLiteral, got %T", expr)
	}
	if len(str.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(str.Parts))
	}
	if text := str.Parts[0].(*ast.TextPart).Value; text != "a\t" {
		t.Fatalf("expected %q, got %q", "a\t", text)
	}
	inner, ok := str.Parts[1].(*ast.ExprPart)
	if !ok {
		t.Fatalf("expected interpolation, got %T", str.Parts[1])
	}
	bin := inner.Expr.(*ast.BinaryExpr)
	if bin.Left.Span() != (token.Span{Start: 6, End: 7}) {
		t.Fatalf("expected interpolated span 6..7, got %s", bin.Left.Span())
	}
	if text := str.Parts[2].(*ast.TextPart).Value; text != "bA" {
		t.Fatalf("expected %q, got %q", "bA", text)
	}
}

func TestParseEmptyString(t *testing.T) {
	expr := mustParse(t, `""`)
	text, ok := ast.StaticText(expr.(*ast.StringLiteral).Parts)
	if !ok || text != "" {
		t.Fatalf("expected empty static text, got %q (%v)", text, ok)
	}
}

func TestParsePaths(t *testing.T) {
	expr := mustParse(t, `<fs:/tmp>/a/${name}`)
	path, ok := expr.(*ast.PathLiteral)
	if !ok {
		t.Fatalf("expected *ast.PathLiteral, got %T", expr)
	}
	if path.Island == nil || path.Island.Type != "fs" || path.Island.Arg != "/tmp" {
		t.Fatalf("unexpected island header %#v", path.Island)
	}
	if len(path.Parts) != 2 {
		t.Fatalf("expected text and interpolation parts, got %d", len(path.Parts))
	}
	if text := path.Parts[0].(*ast.TextPart).Value; text != "/a/" {
		t.Fatalf("expected %q, got %q", "/a/", text)
	}

	rel := mustParse(t, `./x/y`).(*ast.PathLiteral)
	if text, _ := ast.StaticText(rel.Parts); text != "x/y" {
		t.Fatalf("expected relative text x/y, got %q", text)
	}
}

func TestParseList(t *testing.T) {
	expr := mustParse(t, `[1, "two", [3], ]`)
	list, ok := expr.(*ast.ListLiteral)
	if !ok {
		t.Fatalf("expected *ast.ListLiteral, got %T", expr)
	}
	if len(list.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(list.Items))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"let a = 1 in", "unexpected EOF"},
		{"(1 + 2", "expected )"},
		{`"\q"`, "unknown escape"},
		{"'ab'", "exactly one character"},
		{"1 2 )", "unexpected )"},
	}
	for _, tt := range tests {
		_, err := parser.Parse(tt.input)
		if err == nil {
			t.Fatalf("%q: expected error", tt.input)
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%q: expected error containing %q, got %v", tt.input, tt.want, err)
		}
	}
}

func render(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.IntLiteral:
		return e.Raw
	case *ast.IdentExpr:
		name, _ := e.Name()
		return name
	case *ast.ParenExpr:
		return render(e.X)
	case *ast.BinaryExpr:
		return "(" + render(e.Left) + " " + e.Op.String() + " " + render(e.Right) + ")"
	case *ast.UnaryExpr:
		return "(" + e.Op.String() + render(e.X) + ")"
	case *ast.CallExpr:
		return "(" + render(e.Fn) + " " + render(e.Arg) + ")"
	case *ast.SelectExpr:
		name, _ := e.Name.Name()
		return render(e.X) + "." + name
	default:
		return ast.Dump(e)
	}
}
