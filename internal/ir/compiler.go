package ir

import (
	"log/slog"
	"math/big"
	"strings"

	"github.com/docker/go-units"

	"isle/internal/ast"
	"isle/internal/island"
	"isle/internal/report"
	"isle/internal/token"
	"isle/internal/value"
)

// Compiler turns an expression tree into code. One Compiler handles one
// top-level expression and every blueprint nested in it.
type Compiler struct {
	opts    Options
	globals map[string]bool
	reports []*report.Report

	// constants computed per node, so that diagnostics are reported once
	constants map[ast.Expr]constant
}

type constant struct {
	v  value.Value
	ok bool
}

// scope tracks the names bound at compile time. Open scopes may bind names
// only known at run time (selects, interpolated keys).
type scope struct {
	parent *scope
	names  map[string]*binding
	open   bool
}

type binding struct {
	span token.Span
	used bool
	// warn when never referenced
	check bool
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]*binding)}
}

// codeCompiler emits a single Code.
type codeCompiler struct {
	c      *Compiler
	b      *value.Builder
	consts map[fingerprint]value.ValueIndex
	scope  *scope
}

// Compile compiles expr. The returned code is usable only if the result
// has not Failed.
func Compile(expr ast.Expr, opts Options) *Compiled {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = island.DefaultRegistry()
	}
	c := &Compiler{
		opts:      opts,
		globals:   make(map[string]bool, len(opts.Globals)),
		constants: make(map[ast.Expr]constant),
	}
	for _, g := range opts.Globals {
		c.globals[value.Intern(g)] = true
	}

	cc := c.newCode(newScope(nil))
	if expr == nil {
		c.report(report.New(report.Bug, "nothing to compile"))
		cc.push(token.Span{}, value.Nope)
		cc.emit(token.Span{}, value.OpReturn)
	} else {
		cc.compileStrict(expr)
		cc.emit(expr.Span(), value.OpReturn)
	}
	code := cc.b.Finish()

	report.Sort(c.reports)
	opts.Logger.Debug("compiled expression",
		"path", pathName(opts.Path),
		"code", units.HumanSize(float64(code.Len())),
		"values", len(code.Values()),
		"reports", len(c.reports))

	return &Compiled{Code: code, Reports: c.reports}
}

func pathName(p *value.Path) string {
	if p == nil {
		return "<input>"
	}
	return p.String()
}

func (c *Compiler) report(r *report.Report) {
	c.reports = append(c.reports, r)
}

func (c *Compiler) newCode(sc *scope) *codeCompiler {
	return &codeCompiler{
		c:      c,
		b:      value.NewBuilder(c.opts.Path),
		consts: make(map[fingerprint]value.ValueIndex),
		scope:  sc,
	}
}

// ---------- Emission helpers ----------

func (cc *codeCompiler) emit(span token.Span, op value.Operation) value.ByteIndex {
	return cc.b.PushOperation(span, op)
}

func (cc *codeCompiler) push(span token.Span, v value.Value) {
	idx := cc.constant(v)
	cc.b.PushOperation(span, value.OpPush)
	cc.b.PushValueIndex(idx)
}

// jump emits op with a placeholder target and returns the operand to patch.
func (cc *codeCompiler) jump(span token.Span, op value.Operation) value.ByteIndex {
	cc.b.PushOperation(span, op)
	return cc.b.PushByteIndex(0)
}

// constant returns the slot of v, sharing slots between equal scalars.
func (cc *codeCompiler) constant(v value.Value) value.ValueIndex {
	fp, ok := fingerprintOf(v)
	if ok {
		if idx, hit := cc.consts[fp]; hit {
			return idx
		}
	}
	idx := cc.b.AddValue(v)
	if ok {
		cc.consts[fp] = idx
	}
	return idx
}

// ---------- Names ----------

func (cc *codeCompiler) lookup(name string, span token.Span) {
	open := false
	for s := cc.scope; s != nil; s = s.parent {
		if b, ok := s.names[name]; ok {
			b.used = true
			return
		}
		open = open || s.open
	}
	if open || cc.c.globals[name] {
		return
	}
	cc.c.report(report.Warning("undefined reference '" + name + "'").
		Primary(span, "no definition"))
}

func (cc *codeCompiler) checkUnused(s *scope) {
	for name, b := range s.names {
		if b.used || !b.check || strings.HasPrefix(name, "_") {
			continue
		}
		cc.c.report(report.Warning("unused bind '"+name+"'").
			Primary(b.span, "never referenced").
			Tip("remove this or rename it to start with '_'"))
	}
}

// ---------- Constants ----------

// constantOf returns the value of expressions that need no evaluation.
func (cc *codeCompiler) constantOf(e ast.Expr) (value.Value, bool) {
	if k, ok := cc.c.constants[e]; ok {
		return k.v, k.ok
	}
	v, ok := cc.computeConstant(e)
	cc.c.constants[e] = constant{v: v, ok: ok}
	return v, ok
}

func (cc *codeCompiler) computeConstant(e ast.Expr) (value.Value, bool) {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return cc.constantOf(e.X)

	case *ast.IntLiteral:
		v, err := value.ParseInteger(e.Raw)
		if err != nil {
			cc.c.report(report.Errorf("invalid integer literal %q", e.Raw).
				Primary(e.LitSpan, err.Error()))
			return value.Nope, true
		}
		return v, true

	case *ast.FloatLiteral:
		return value.Float(e.Value), true

	case *ast.RuneLiteral:
		return value.RuneOf(e.Value), true

	case *ast.BoolLiteral:
		return value.Bool(e.Value), true

	case *ast.StringLiteral:
		if text, ok := ast.StaticText(e.Parts); ok {
			return value.Str(text), true
		}

	case *ast.PathLiteral:
		text, ok := ast.StaticText(e.Parts)
		if !ok {
			return value.Value{}, false
		}
		p, ok := cc.pathBase(e, text)
		if !ok {
			return value.Nope, true
		}
		return value.PathOf(p), true

	case *ast.UnaryExpr:
		if e.Op != token.Minus {
			break
		}
		switch x := unparen(e.X).(type) {
		case *ast.IntLiteral:
			v, ok := cc.constantOf(x)
			if ok && v.Kind == value.KindInteger {
				return value.IntFromBig(new(big.Int).Neg(v.Int)), true
			}
		case *ast.FloatLiteral:
			return value.Float(-x.Value), true
		}
	}
	return value.Value{}, false
}

func unparen(e ast.Expr) ast.Expr {
	for {
		p, ok := e.(*ast.ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}

// pathBase builds the path named by the static text of a path literal.
func (cc *codeCompiler) pathBase(e *ast.PathLiteral, text string) (*value.Path, bool) {
	if e.Island != nil {
		root, err := cc.c.opts.Registry.Path(e.Island.Type, e.Island.Arg)
		if err != nil {
			cc.c.report(report.Errorf("%v", err).
				Primary(e.Island.HeaderSpan, "cannot resolve this island"))
			return nil, false
		}
		return root.WithSubpath(splitParts(text)), true
	}
	rel := value.ParseRootless(text)
	src := cc.c.opts.Path
	if src == nil || src.IsRootless() {
		return rel, true
	}
	return relativeTo(src, rel.Subpath()), true
}

func splitParts(text string) value.Subpath {
	var out value.Subpath
	for _, part := range strings.Split(text, "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// relativeTo resolves rel against the directory holding src.
func relativeTo(src *value.Path, rel value.Subpath) *value.Path {
	sub := src.Subpath()
	out := value.Subpath{}
	if len(sub) > 0 {
		out = out.Append(sub[:len(sub)-1]...)
	}
	for _, part := range rel {
		if part == ".." {
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			continue
		}
		out = out.Append(part)
	}
	return src.WithSubpath(out)
}

// ---------- Expressions ----------

// needsForce reports whether the code for e may leave a thunk behind.
func needsForce(e ast.Expr) bool {
	_, ok := unparen(e).(*ast.IdentExpr)
	return ok
}

// compileStrict leaves e in weak head normal form on the stack.
func (cc *codeCompiler) compileStrict(e ast.Expr) {
	cc.compileExpr(e)
	if needsForce(e) {
		cc.emit(e.Span(), value.OpForce)
	}
}

// compileLazy leaves e unevaluated on the stack.
func (cc *codeCompiler) compileLazy(e ast.Expr) {
	if v, ok := cc.constantOf(e); ok {
		cc.push(e.Span(), v)
		return
	}
	switch unparen(e).(type) {
	case *ast.IdentExpr, *ast.LambdaExpr:
		cc.compileExpr(e)
	default:
		cc.push(e.Span(), cc.blueprint(e))
	}
}

// blueprint compiles e into a parameterless body. Pushing it suspends e
// over the scopes at hand.
func (cc *codeCompiler) blueprint(e ast.Expr) value.Value {
	sub := cc.c.newCode(cc.scope)
	sub.compileStrict(e)
	sub.emit(e.Span(), value.OpReturn)
	return value.BlueprintOf(sub.b.Finish())
}

// member is the value stored for a binding in a constant attribute set.
func (cc *codeCompiler) member(e ast.Expr) value.Value {
	if v, ok := cc.constantOf(e); ok {
		return v
	}
	if lam, ok := unparen(e).(*ast.LambdaExpr); ok {
		return cc.lambda(lam)
	}
	return cc.blueprint(e)
}

func (cc *codeCompiler) lambda(e *ast.LambdaExpr) value.Value {
	inner := newScope(cc.scope)
	inner.names[value.Intern(e.Param)] = &binding{span: e.ParamSpan}
	sub := cc.c.newCode(inner)
	sub.b.SetParameter(e.Param)
	sub.compileStrict(e.Body)
	sub.emit(e.Body.Span(), value.OpReturn)
	return value.BlueprintOf(sub.b.Finish())
}

func (cc *codeCompiler) compileExpr(e ast.Expr) {
	if v, ok := cc.constantOf(e); ok {
		cc.push(e.Span(), v)
		return
	}

	switch e := e.(type) {
	case *ast.ParenExpr:
		cc.compileExpr(e.X)

	case *ast.StringLiteral:
		cc.compileInterpolation(value.Str(""), e.Parts, e.LitSpan)

	case *ast.PathLiteral:
		cc.compilePath(e)

	case *ast.IdentExpr:
		cc.compileIdent(e)

	case *ast.ListLiteral:
		cc.push(e.LitSpan, value.Nil)
		for i := len(e.Items) - 1; i >= 0; i-- {
			item := e.Items[i]
			cc.compileLazy(item)
			cc.emit(item.Span(), value.OpSwap)
			cc.emit(item.Span(), value.OpConstruct)
		}

	case *ast.AttrsLiteral:
		inner := cc.compileBindings(e.Bindings, e.LitSpan, false)
		cc.push(e.LitSpan, value.AttributesValue(value.Attributes{}))
		cc.emit(e.LitSpan, value.OpScopeSwap)
		cc.emit(e.LitSpan, value.OpScopeEnd)
		cc.scope = inner.parent

	case *ast.LetExpr:
		inner := cc.compileBindings(e.Bindings, e.LetSpan, true)
		cc.compileStrict(e.Body)
		cc.emit(e.LetSpan, value.OpScopeEnd)
		cc.scope = inner.parent
		cc.checkUnused(inner)

	case *ast.IfExpr:
		cc.compileIf(e)

	case *ast.LambdaExpr:
		cc.push(e.Span(), cc.lambda(e))

	case *ast.CallExpr:
		cc.compileStrict(e.Fn)
		cc.compileLazy(e.Arg)
		cc.emit(e.Span(), value.OpCall)

	case *ast.SelectExpr:
		cc.compileStrict(e.X)
		cc.emit(e.Span(), value.OpScopePush)
		outer := cc.scope
		cc.scope = &scope{parent: outer, names: map[string]*binding{}, open: true}
		cc.compileStrict(e.Name)
		cc.scope = outer
		cc.emit(e.Span(), value.OpScopeEnd)

	case *ast.BinaryExpr:
		cc.compileBinary(e)

	case *ast.UnaryExpr:
		cc.compileStrict(e.X)
		switch e.Op {
		case token.Plus:
			cc.emit(e.Span(), value.OpSwwallation)
		case token.Minus:
			cc.emit(e.Span(), value.OpNegation)
		case token.Bang:
			cc.emit(e.Span(), value.OpNot)
		default:
			cc.c.report(report.New(report.Bug, "unsupported unary operator "+e.Op.String()).
				Primary(e.OpSpan, ""))
		}

	default:
		cc.c.report(report.New(report.Bug, "unsupported expression").Primary(e.Span(), ""))
		cc.push(e.Span(), value.Nope)
	}
}

// compileInterpolation pushes first joined with parts. The result has the
// kind of first.
func (cc *codeCompiler) compileInterpolation(first value.Value, parts []ast.Part, span token.Span) {
	if len(parts) > 0 {
		if text, ok := parts[0].(*ast.TextPart); ok {
			switch first.Kind {
			case value.KindBind:
				first = value.BindOf(first.Str + text.Value)
			case value.KindReference:
				first = value.ReferenceOf(first.Str + text.Value)
			default:
				first.Str += text.Value
			}
			parts = parts[1:]
		}
	}
	cc.push(span, first)
	for _, part := range parts {
		switch part := part.(type) {
		case *ast.TextPart:
			cc.push(part.PartSpan, value.Str(part.Value))
		case *ast.ExprPart:
			cc.compileStrict(part.Expr)
		}
		cc.emit(part.Span(), value.OpInterpolate)
	}
}

func (cc *codeCompiler) compileIdent(e *ast.IdentExpr) {
	if name, ok := e.Name(); ok {
		name = value.Intern(name)
		cc.lookup(name, e.NameSpan)
		cc.push(e.NameSpan, value.ReferenceOf(name))
	} else {
		cc.compileInterpolation(value.ReferenceOf(""), e.Parts, e.NameSpan)
	}
	cc.emit(e.NameSpan, value.OpResolve)
}

// compilePath handles path literals with interpolated parts: the static
// prefix up to the last '/' becomes a path constant and the rest is
// interpolated into it as text.
func (cc *codeCompiler) compilePath(e *ast.PathLiteral) {
	var prefix strings.Builder
	rest := e.Parts
	for len(rest) > 0 {
		text, ok := rest[0].(*ast.TextPart)
		if !ok {
			break
		}
		prefix.WriteString(text.Value)
		rest = rest[1:]
	}
	head, tail := "", prefix.String()
	if cut := strings.LastIndexByte(tail, '/'); cut >= 0 {
		head, tail = tail[:cut], tail[cut+1:]
	}
	base, ok := cc.pathBase(e, head)
	if !ok {
		cc.push(e.LitSpan, value.Nope)
		return
	}
	cc.push(e.LitSpan, value.PathOf(base))
	cc.compileInterpolation(value.Str(tail), rest, e.LitSpan)
	cc.emit(e.LitSpan, value.OpInterpolate)
}

// compileBindings opens a scope holding bindings and leaves the scope set
// for the caller, which must emit ScopeEnd and restore cc.scope.
func (cc *codeCompiler) compileBindings(bindings []*ast.Binding, span token.Span, check bool) *scope {
	cc.emit(span, value.OpScopeStart)

	inner := newScope(cc.scope)
	var static, dynamic []*ast.Binding
	for _, b := range bindings {
		name, ok := b.Name.Name()
		if !ok {
			inner.open = true
			dynamic = append(dynamic, b)
			continue
		}
		name = value.Intern(name)
		if prev, dup := inner.names[name]; dup {
			cc.c.report(report.Errorf("duplicate binding '%s'", name).
				Primary(b.Name.Span(), "bound again here").
				Secondary(prev.span, "first bound here"))
			continue
		}
		inner.names[name] = &binding{span: b.Name.Span(), check: check}
		static = append(static, b)
	}
	cc.scope = inner

	attrs := value.Attributes{}
	for _, b := range static {
		name, _ := b.Name.Name()
		attrs = attrs.Insert(value.Intern(name), cc.member(b.Value))
	}
	if len(dynamic) == 0 {
		cc.push(span, value.AttributesValue(attrs))
		cc.emit(span, value.OpScopeSwap)
		cc.emit(span, value.OpPop)
		return inner
	}

	// Dynamic keys are computed first. The swap then merges the static set
	// and every [key, member] pair at once, so all members see each other.
	cc.push(span, value.Nil)
	for i := len(dynamic) - 1; i >= 0; i-- {
		b := dynamic[i]
		cc.compileInterpolation(value.BindOf(""), b.Name.Parts, b.Name.Span())
		cc.push(b.Value.Span(), value.ListOf(cc.member(b.Value)))
		cc.emit(b.Span(), value.OpConstruct)
		cc.emit(b.Span(), value.OpSwap)
		cc.emit(b.Span(), value.OpConstruct)
	}
	cc.push(span, value.AttributesValue(attrs))
	cc.emit(span, value.OpSwap)
	cc.emit(span, value.OpConstruct)
	cc.emit(span, value.OpScopeSwap)
	cc.emit(span, value.OpPop)
	return inner
}

func (cc *codeCompiler) compileIf(e *ast.IfExpr) {
	cc.compileStrict(e.Cond)
	cc.emit(e.Cond.Span(), value.OpAssertBoolean)
	toThen := cc.jump(e.IfSpan, value.OpJumpIf)
	cc.compileStrict(e.Else)
	toEnd := cc.jump(e.IfSpan, value.OpJump)
	cc.b.PointHere(toThen)
	cc.compileStrict(e.Then)
	cc.b.PointHere(toEnd)
}

var binaryOps = map[token.Kind]value.Operation{
	token.Plus:   value.OpAddition,
	token.Minus:  value.OpSubtraction,
	token.Star:   value.OpMultiplication,
	token.Slash:  value.OpDivision,
	token.Power:  value.OpPower,
	token.Lt:     value.OpLess,
	token.LtEq:   value.OpLessOrEqual,
	token.Gt:     value.OpMore,
	token.GtEq:   value.OpMoreOrEqual,
	token.Eq:     value.OpEqual,
	token.Concat: value.OpConcat,
	token.Update: value.OpUpdate,
}

func (cc *codeCompiler) compileBinary(e *ast.BinaryExpr) {
	switch e.Op {
	case token.AndAnd, token.OrOr, token.Implies, token.Amp, token.Pipe:
		cc.checkConstantLeft(e)
	}

	switch e.Op {
	case token.AndAnd:
		// l && r: true jumps to r, false is the result
		cc.compileStrict(e.Left)
		toRight := cc.jump(e.OpSpan, value.OpJumpIf)
		cc.push(e.OpSpan, value.False)
		toEnd := cc.jump(e.OpSpan, value.OpJump)
		cc.b.PointHere(toRight)
		cc.compileStrict(e.Right)
		cc.emit(e.Right.Span(), value.OpAssertBoolean)
		cc.b.PointHere(toEnd)

	case token.OrOr, token.Implies:
		cc.compileStrict(e.Left)
		if e.Op == token.Implies {
			cc.emit(e.Left.Span(), value.OpNot)
		}
		toTrue := cc.jump(e.OpSpan, value.OpJumpIf)
		cc.compileStrict(e.Right)
		cc.emit(e.Right.Span(), value.OpAssertBoolean)
		toEnd := cc.jump(e.OpSpan, value.OpJump)
		cc.b.PointHere(toTrue)
		cc.push(e.OpSpan, value.True)
		cc.b.PointHere(toEnd)

	case token.Amp, token.Pipe:
		cc.compileStrict(e.Left)
		cc.compileLazy(e.Right)
		if e.Op == token.Amp {
			cc.emit(e.Span(), value.OpAll)
		} else {
			cc.emit(e.Span(), value.OpAny)
		}

	case token.Colon:
		cc.compileLazy(e.Left)
		cc.compileStrict(e.Right)
		cc.emit(e.Span(), value.OpConstruct)

	case token.NotEq:
		cc.compileStrict(e.Left)
		cc.compileStrict(e.Right)
		cc.emit(e.Span(), value.OpEqual)
		cc.emit(e.Span(), value.OpNot)

	default:
		op, ok := binaryOps[e.Op]
		if !ok {
			cc.c.report(report.New(report.Bug, "unsupported binary operator "+e.Op.String()).
				Primary(e.OpSpan, ""))
			cc.push(e.Span(), value.Nope)
			return
		}
		cc.compileStrict(e.Left)
		cc.compileStrict(e.Right)
		cc.emit(e.Span(), op)
	}
}

// checkConstantLeft warns about logical operators whose result does not
// depend on the left operand.
func (cc *codeCompiler) checkConstantLeft(e *ast.BinaryExpr) {
	lit, ok := unparen(e.Left).(*ast.BoolLiteral)
	if !ok {
		return
	}
	cc.c.report(report.Warning("unnecessary infix operation").
		Primary(lit.LitSpan, "this expression never changes").
		Secondary(e.OpSpan, ""))
}
