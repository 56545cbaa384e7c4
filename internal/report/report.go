package report

import (
	"fmt"
	"sort"
	"strings"

	"isle/internal/token"
)

// Severity orders diagnostics from harmless to fatal.
type Severity int

const (
	Note Severity = iota
	Warn
	Error
	Bug
)

func (s Severity) String() string {
	switch s {
	case Note:
		return "note"
	case Warn:
		return "warn"
	case Error:
		return "error"
	case Bug:
		return "bug"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Label attaches text to a span.
type Label struct {
	Span    token.Span
	Text    string
	Primary bool
}

// Report is one diagnostic: a title, labelled spans and help points.
type Report struct {
	Severity Severity
	Title    string
	Labels   []Label
	Tips     []string
}

func New(sev Severity, title string) *Report {
	return &Report{Severity: sev, Title: title}
}

func Warning(title string) *Report { return New(Warn, title) }

func Errorf(format string, args ...any) *Report {
	return New(Error, fmt.Sprintf(format, args...))
}

// Primary adds the main label.
func (r *Report) Primary(span token.Span, text string) *Report {
	r.Labels = append(r.Labels, Label{Span: span, Text: text, Primary: true})
	return r
}

func (r *Report) Secondary(span token.Span, text string) *Report {
	r.Labels = append(r.Labels, Label{Span: span, Text: text})
	return r
}

func (r *Report) Tip(text string) *Report {
	r.Tips = append(r.Tips, text)
	return r
}

// Start is the start of the first primary span, used for ordering.
func (r *Report) Start() int {
	for _, l := range r.Labels {
		if l.Primary {
			return l.Span.Start
		}
	}
	if len(r.Labels) > 0 {
		return r.Labels[0].Span.Start
	}
	return 0
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", r.Severity, r.Title)
	for _, l := range r.Labels {
		fmt.Fprintf(&b, "\n  %s", l.Span)
		if l.Text != "" {
			b.WriteString(": ")
			b.WriteString(l.Text)
		}
	}
	for _, t := range r.Tips {
		b.WriteString("\n  tip: ")
		b.WriteString(t)
	}
	return b.String()
}

// Sort orders reports by start offset, keeping insertion order on ties.
func Sort(reports []*Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Start() < reports[j].Start()
	})
}

// Max returns the highest severity in reports, or -1 when empty.
func Max(reports []*Report) Severity {
	max := Severity(-1)
	for _, r := range reports {
		if r.Severity > max {
			max = r.Severity
		}
	}
	return max
}

// Position converts a byte offset into 1-based line and column.
func Position(source string, offset int) (line, col int) {
	line, col = 1, 1
	for i, r := range source {
		if i >= offset {
			break
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// Render formats r against source with line:column positions.
func Render(name, source string, r *Report) string {
	var b strings.Builder
	line, col := Position(source, r.Start())
	fmt.Fprintf(&b, "%s:%d:%d: %s: %s", name, line, col, r.Severity, r.Title)
	for _, l := range r.Labels {
		if l.Text == "" {
			continue
		}
		ll, lc := Position(source, l.Span.Start)
		fmt.Fprintf(&b, "\n  %d:%d: %s", ll, lc, l.Text)
	}
	for _, t := range r.Tips {
		b.WriteString("\n  tip: ")
		b.WriteString(t)
	}
	return b.String()
}
