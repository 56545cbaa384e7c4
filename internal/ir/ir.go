package ir

import (
	"fmt"
	"log/slog"
	"strings"

	"isle/internal/island"
	"isle/internal/report"
	"isle/internal/value"
)

// Options configures a compilation.
type Options struct {
	// Path is the source the expression was read from. Relative path
	// literals resolve against its directory when it has a root.
	Path *value.Path
	// Registry resolves island literals. Defaults to island.DefaultRegistry.
	Registry *island.Registry
	// Globals are names the evaluator binds in the root scope.
	Globals []string
	Logger  *slog.Logger
}

// Compiled is the result of a compilation: the code that could be emitted
// and every diagnostic found on the way.
type Compiled struct {
	Code    *value.Code
	Reports []*report.Report
}

// Failed reports whether any diagnostic is an error or worse.
func (c *Compiled) Failed() bool {
	return report.Max(c.Reports) >= report.Error
}

// Err summarises the error reports, or returns nil.
func (c *Compiled) Err() error {
	if !c.Failed() {
		return nil
	}
	var titles []string
	for _, r := range c.Reports {
		if r.Severity >= report.Error {
			titles = append(titles, r.Title)
		}
	}
	return fmt.Errorf("compile failed: %s", strings.Join(titles, "; "))
}
