package ast

import (
	"fmt"
	"io"
	"strings"
)

// Dump returns a human-readable representation of the AST.
func Dump(node Node) string {
	var sb strings.Builder
	fprintNode(&sb, node, 0)
	return sb.String()
}

func fprintNode(w io.Writer, n Node, indent int) {
	if n == nil {
		return
	}

	ind := strings.Repeat("  ", indent)

	switch n := n.(type) {
	case *IntLiteral:
		fmt.Fprintf(w, "%sInt %s\n", ind, n.Raw)
	case *FloatLiteral:
		fmt.Fprintf(w, "%sFloat %s\n", ind, n.Raw)
	case *RuneLiteral:
		fmt.Fprintf(w, "%sRune %q\n", ind, n.Value)
	case *BoolLiteral:
		fmt.Fprintf(w, "%sBool %t\n", ind, n.Value)

	case *StringLiteral:
		fmt.Fprintf(w, "%sString\n", ind)
		fprintParts(w, n.Parts, indent+1)

	case *PathLiteral:
		if n.Island != nil {
			fmt.Fprintf(w, "%sPath island=%s arg=%q\n", ind, n.Island.Type, n.Island.Arg)
		} else {
			fmt.Fprintf(w, "%sPath\n", ind)
		}
		fprintParts(w, n.Parts, indent+1)

	case *IdentExpr:
		if name, ok := n.Name(); ok {
			fmt.Fprintf(w, "%sIdent %s\n", ind, name)
			return
		}
		fmt.Fprintf(w, "%sIdent\n", ind)
		fprintParts(w, n.Parts, indent+1)

	case *ListLiteral:
		fmt.Fprintf(w, "%sList\n", ind)
		for _, item := range n.Items {
			fprintNode(w, item, indent+1)
		}

	case *AttrsLiteral:
		fmt.Fprintf(w, "%sAttrs\n", ind)
		fprintBindings(w, n.Bindings, indent+1)

	case *LetExpr:
		fmt.Fprintf(w, "%sLet\n", ind)
		fprintBindings(w, n.Bindings, indent+1)
		fmt.Fprintf(w, "%s  In:\n", ind)
		fprintNode(w, n.Body, indent+2)

	case *IfExpr:
		fmt.Fprintf(w, "%sIf\n", ind)
		fprintNode(w, n.Cond, indent+1)
		fmt.Fprintf(w, "%s  Then:\n", ind)
		fprintNode(w, n.Then, indent+2)
		fmt.Fprintf(w, "%s  Else:\n", ind)
		fprintNode(w, n.Else, indent+2)

	case *LambdaExpr:
		fmt.Fprintf(w, "%sLambda %s\n", ind, n.Param)
		fprintNode(w, n.Body, indent+1)

	case *CallExpr:
		fmt.Fprintf(w, "%sCall\n", ind)
		fprintNode(w, n.Fn, indent+1)
		fprintNode(w, n.Arg, indent+1)

	case *SelectExpr:
		fmt.Fprintf(w, "%sSelect\n", ind)
		fprintNode(w, n.X, indent+1)
		fprintNode(w, n.Name, indent+1)

	case *ParenExpr:
		fprintNode(w, n.X, indent)

	case *BinaryExpr:
		fmt.Fprintf(w, "%sBinary %s\n", ind, n.Op)
		fprintNode(w, n.Left, indent+1)
		fprintNode(w, n.Right, indent+1)

	case *UnaryExpr:
		fmt.Fprintf(w, "%sUnary %s\n", ind, n.Op)
		fprintNode(w, n.X, indent+1)

	default:
		fmt.Fprintf(w, "%s<unknown %T>\n", ind, n)
	}
}

func fprintParts(w io.Writer, parts []Part, indent int) {
	ind := strings.Repeat("  ", indent)
	for _, p := range parts {
		switch p := p.(type) {
		case *TextPart:
			fmt.Fprintf(w, "%sText %q\n", ind, p.Value)
		case *ExprPart:
			fmt.Fprintf(w, "%sInterpolation\n", ind)
			fprintNode(w, p.Expr, indent+1)
		}
	}
}

func fprintBindings(w io.Writer, bindings []*Binding, indent int) {
	ind := strings.Repeat("  ", indent)
	for _, b := range bindings {
		fmt.Fprintf(w, "%sBind\n", ind)
		fprintNode(w, b.Name, indent+1)
		fprintNode(w, b.Value, indent+1)
	}
}
