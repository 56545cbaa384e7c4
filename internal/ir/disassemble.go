package ir

import (
	"fmt"
	"io"
	"strings"

	"isle/internal/value"
)

// Disassemble writes a listing of code to w. Blueprints found in the value
// table, including those held by attribute constants, are listed after
// their parent, indented one level.
func Disassemble(w io.Writer, code *value.Code) error {
	var b strings.Builder
	disassemble(&b, code, "code", 0)
	_, err := io.WriteString(w, b.String())
	return err
}

func disassemble(b *strings.Builder, code *value.Code, name string, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s%s", indent, name)
	if p, ok := code.Parameter(); ok {
		fmt.Fprintf(b, " (%s =>)", p)
	}
	if code.Path() != nil {
		fmt.Fprintf(b, " %s", code.Path())
	}
	b.WriteString(":\n")

	for ip := value.ByteIndex(0); int(ip) < code.Len(); {
		in, err := code.Read(ip)
		if err != nil {
			fmt.Fprintf(b, "%s  %04d  <%v>\n", indent, ip, err)
			break
		}
		fmt.Fprintf(b, "%s  %04d  %-14s", indent, ip, in.Op)
		switch in.Op.Argument() {
		case value.ArgValueIndex:
			fmt.Fprintf(b, " #%-4d", in.Value)
			if v, err := code.Value(in.Value); err == nil {
				b.WriteString(" " + summary(v))
			}
		case value.ArgByteIndex:
			fmt.Fprintf(b, " -> %04d", in.Target)
		}
		fmt.Fprintf(b, "  ; %s\n", code.Span(ip))
		ip = in.Next
	}

	for i, v := range code.Values() {
		nested(b, v, fmt.Sprintf("#%d", i), depth+1)
	}
}

func nested(b *strings.Builder, v value.Value, name string, depth int) {
	switch v.Kind {
	case value.KindBlueprint:
		disassemble(b, v.Code, name, depth)
	case value.KindAttributes:
		v.Attrs.Each(func(k string, m value.Value) bool {
			nested(b, m, name+"."+k, depth)
			return true
		})
	}
}

func summary(v value.Value) string {
	switch v.Kind {
	case value.KindBlueprint:
		if p, ok := v.Code.Parameter(); ok {
			return "<lambda " + p + ">"
		}
		return "<blueprint>"
	case value.KindAttributes:
		return "{" + strings.Join(v.Attrs.Keys(), " ") + "}"
	}
	s := v.String()
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return s
}
