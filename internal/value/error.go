package value

import (
	"fmt"
	"strings"

	"isle/internal/token"
)

// Location identifies a span of source inside a path.
type Location struct {
	Path *Path
	Span token.Span
}

func (l Location) IsZero() bool { return l.Path == nil && l.Span == (token.Span{}) }

func (l Location) Equal(o Location) bool {
	return l.Span == o.Span && l.Path.Equal(o.Path)
}

func (l Location) String() string {
	if l.Path == nil {
		return "<unknown>:" + l.Span.String()
	}
	return l.Path.String() + ":" + l.Span.String()
}

// Trace is a persistent list of Locations, youngest first. Pushing shares
// the older entries.
type Trace struct {
	head   *traceNode
	length int
}

type traceNode struct {
	loc  Location
	next *traceNode
}

func (t Trace) Len() int { return t.length }

// Push returns t with loc in front.
func (t Trace) Push(loc Location) Trace {
	return Trace{head: &traceNode{loc: loc, next: t.head}, length: t.length + 1}
}

// Youngest returns the most recent location.
func (t Trace) Youngest() (Location, bool) {
	if t.head == nil {
		return Location{}, false
	}
	return t.head.loc, true
}

func (t Trace) Each(fn func(Location) bool) {
	for n := t.head; n != nil; n = n.next {
		if !fn(n.loc) {
			return
		}
	}
}

func (t Trace) Slice() []Location {
	out := make([]Location, 0, t.length)
	t.Each(func(loc Location) bool {
		out = append(out, loc)
		return true
	})
	return out
}

// Error is a runtime failure carried as a value.
type Error struct {
	Value Value
	Trace Trace
}

// ErrorOf creates an error value whose payload is the string msg.
func ErrorOf(msg string, at ...Location) Value {
	return ErrorValue(Str(msg), at...)
}

// Errorf is ErrorOf with formatting.
func Errorf(format string, args ...any) Value {
	return ErrorOf(fmt.Sprintf(format, args...))
}

// ErrorValue creates an error value carrying payload. at is given oldest
// first.
func ErrorValue(payload Value, at ...Location) Value {
	e := &Error{Value: payload}
	for _, loc := range at {
		e = e.WithLocation(loc)
	}
	return Value{Kind: KindError, Err: e}
}

// WithLocation returns a copy of e with loc pushed as the youngest trace
// entry. Consecutive duplicates collapse and zero locations are ignored.
func (e *Error) WithLocation(loc Location) *Error {
	if loc.IsZero() {
		return e
	}
	if last, ok := e.Trace.Youngest(); ok && last.Equal(loc) {
		return e
	}
	return &Error{Value: e.Value, Trace: e.Trace.Push(loc)}
}

// Message returns the payload as text.
func (e *Error) Message() string {
	if e.Value.Kind == KindString {
		return e.Value.Str
	}
	return e.Value.String()
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message())
	e.Trace.Each(func(loc Location) bool {
		b.WriteString("\n  at ")
		b.WriteString(loc.String())
		return true
	})
	return b.String()
}

// TraceValue returns the trace as a list of "path:span" strings.
func (e *Error) TraceValue() Value {
	var items []Value
	e.Trace.Each(func(loc Location) bool {
		items = append(items, Str(loc.String()))
		return true
	})
	return ListOf(items...)
}
