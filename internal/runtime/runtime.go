// Package runtime assembles the pieces needed to run isle source: the
// island registry, the builtins and the evaluator.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"isle/internal/ir"
	"isle/internal/island"
	"isle/internal/parser"
	"isle/internal/report"
	"isle/internal/runtime/builtins"
	// Import all builtin packages to trigger their init() functions for self-registration
	_ "isle/internal/runtime/builtins/bytes"
	_ "isle/internal/runtime/builtins/collections"
	_ "isle/internal/runtime/builtins/meta"
	_ "isle/internal/runtime/builtins/paths"
	_ "isle/internal/runtime/builtins/strings"
	"isle/internal/value"
	"isle/internal/vm"
)

// Runtime compiles and evaluates source with the builtins bound as globals.
// It is safe for concurrent use.
type Runtime struct {
	Registry *island.Registry
	VM       *vm.VM
	logger   *slog.Logger
}

// New returns a runtime resolving islands through reg. A nil reg uses
// island.DefaultRegistry.
func New(reg *island.Registry, logger *slog.Logger) *Runtime {
	if reg == nil {
		reg = island.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		Registry: reg,
		VM:       vm.New(vm.WithLogger(logger), vm.WithGlobals(builtins.Attributes())),
		logger:   logger,
	}
}

// SourceError is returned when source does not parse or compile. Reports
// holds the compile diagnostics, warnings included.
type SourceError struct {
	Name    string
	Source  string
	Reports []*report.Report
	Err     error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Compile parses and compiles src. path is where src was read from and may
// be nil. Warnings are returned alongside a usable result.
func (r *Runtime) Compile(name, src string, path *value.Path) (*ir.Compiled, error) {
	expr, err := parser.Parse(src)
	if err != nil {
		return nil, &SourceError{Name: name, Source: src, Err: err}
	}
	compiled := ir.Compile(expr, ir.Options{
		Path:     path,
		Registry: r.Registry,
		Globals:  r.VM.Globals(),
		Logger:   r.logger,
	})
	if err := compiled.Err(); err != nil {
		return compiled, &SourceError{Name: name, Source: src, Reports: compiled.Reports, Err: err}
	}
	return compiled, nil
}

// Evaluate runs code and forces the whole result.
func (r *Runtime) Evaluate(ctx context.Context, code *value.Code) (value.Value, error) {
	v, err := r.VM.Evaluate(ctx, code, value.Scopes{})
	if err != nil || v.IsError() {
		return v, err
	}
	return r.VM.ForceDeep(ctx, v)
}

// EvalString compiles and evaluates src in one go.
func (r *Runtime) EvalString(ctx context.Context, name, src string) (value.Value, *ir.Compiled, error) {
	compiled, err := r.Compile(name, src, nil)
	if err != nil {
		return value.Value{}, compiled, err
	}
	v, err := r.Evaluate(ctx, compiled.Code)
	return v, compiled, err
}

// SourcePath returns the path handle of a host file, rooted in the fs
// island so that relative path literals in it resolve next to it.
func (r *Runtime) SourcePath(file string) (*value.Path, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	root, err := r.Registry.Path("fs", "/")
	if err != nil {
		return nil, err
	}
	return root.WithSubpath(value.ParseRootless(abs).Subpath()[1:]), nil
}
