package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/dc0d/onexit"
	"github.com/docker/go-units"

	"isle/internal/ast"
	"isle/internal/config"
	"isle/internal/ir"
	"isle/internal/island"
	"isle/internal/parser"
	"isle/internal/report"
	"isle/internal/runtime"
	"isle/internal/value"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "eval":
		err = cmdEval(os.Args[2:])
	case "run":
		err = cmdRun(os.Args[2:])
	case "build":
		err = cmdBuild(os.Args[2:])
	case "dump":
		err = cmdDump(os.Args[2:])
	case "repl":
		err = cmdRepl(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	case "version", "-v", "--version":
		fmt.Println("isle", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	cleanup()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`isle: a lazy language over islands of data

Usage:
  isle eval [-config file] <expression>
  isle run [-config file] <file.isle|file.isc>
  isle build [-config file] [-o out.isc] [-codec none|lz4|xz] <file.isle>
  isle dump [-config file] [-ast] <file.isle|file.isc>
  isle repl [-config file]

Commands:
  eval     Evaluate an expression given on the command line
  run      Compile and evaluate .isle source or evaluate .isc code
  build    Compile .isle source into an .isc file
  dump     Print the disassembled code of a source or .isc file
  repl     Start an interactive session
  version  Print the isle version

The config file defaults to $ISLE_CONFIG.`)
}

// errReported marks failures whose details were already printed.
var errReported = errors.New("reported")

var (
	cleanupOnce sync.Once
	closers     []func() error
)

func cleanup() {
	cleanupOnce.Do(func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	})
}

func init() {
	onexit.Register(cleanup)
}

// -------------- SETUP --------------

type app struct {
	cfg    config.Config
	logger *slog.Logger
	rt     *runtime.Runtime
}

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := fs.String("config", "", "config file (default: $"+config.EnvVar+")")
	return fs, cfgPath
}

func setup(cfgPath string) (*app, error) {
	cfg, err := config.Resolve(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeLog)
	slog.SetDefault(logger)

	reg, err := registry(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, rt: runtime.New(reg, logger)}, nil
}

// registry adds the configured s3 and sql islands to the standard ones.
func registry(ctx context.Context, cfg config.Config, logger *slog.Logger) (*island.Registry, error) {
	reg := island.DefaultRegistry()
	if s := cfg.Islands.S3; s != nil {
		client, err := island.NewS3Client(ctx, island.S3Options{
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
			Region:          s.Region,
			Endpoint:        s.Endpoint,
			ForcePathStyle:  s.ForcePathStyle,
		})
		if err != nil {
			return nil, err
		}
		reg.RegisterS3(client)
		logger.Debug("s3 islands enabled", "region", s.Region, "endpoint", s.Endpoint)
	}
	if s := cfg.Islands.SQL; s != nil {
		db, err := sql.Open(s.Driver, s.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", s.Driver, err)
		}
		closers = append(closers, db.Close)
		reg.RegisterSQL(ctx, db, s.Driver)
		logger.Debug("sql islands enabled", "driver", s.Driver)
	}
	return reg, nil
}

// evalContext is cancelled by an interrupt or the configured timeout.
func (a *app) evalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	d, _ := a.cfg.Run.Duration()
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() { cancel(); stop() }
}

// printReports renders every diagnostic in source order.
func printReports(w io.Writer, name, src string, reports []*report.Report) {
	report.Sort(reports)
	for _, r := range reports {
		fmt.Fprintln(w, report.Render(name, src, r))
	}
}

// compile prints warnings and errors and fails when any error was found.
func (a *app) compile(name, src string, path *value.Path) (*ir.Compiled, error) {
	compiled, err := a.rt.Compile(name, src, path)
	var srcErr *runtime.SourceError
	if errors.As(err, &srcErr) && len(srcErr.Reports) > 0 {
		printReports(os.Stderr, name, src, srcErr.Reports)
		return nil, errReported
	}
	if err != nil {
		return nil, err
	}
	printReports(os.Stderr, name, src, compiled.Reports)
	return compiled, nil
}

func (a *app) compileFile(file string) (*value.Code, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	path, err := a.rt.SourcePath(file)
	if err != nil {
		return nil, err
	}
	compiled, err := a.compile(file, string(src), path)
	if err != nil {
		return nil, err
	}
	return compiled.Code, nil
}

// loadCode compiles .isle source or reads .isc code.
func (a *app) loadCode(file string) (*value.Code, error) {
	switch ext := filepath.Ext(file); ext {
	case ".isle":
		return a.compileFile(file)
	case ".isc":
		code, err := ir.ReadCodeFromFile(file, a.rt.Registry)
		if err != nil {
			return nil, fmt.Errorf("failed to read code: %w", err)
		}
		return code, nil
	default:
		return nil, fmt.Errorf("unsupported file extension %q (use .isle or .isc)", ext)
	}
}

// evaluate runs code and prints its result. Error values fail the command.
func (a *app) evaluate(w io.Writer, code *value.Code) error {
	ctx, cancel := a.evalContext()
	defer cancel()
	v, err := a.rt.Evaluate(ctx, code)
	if err != nil {
		return err
	}
	if v.IsError() {
		fmt.Fprintln(os.Stderr, "error:", v.Err.Error())
		return errReported
	}
	fmt.Fprintln(w, v)
	return nil
}

// -------------- EVAL --------------

func cmdEval(args []string) error {
	fs, cfgPath := newFlagSet("eval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("eval: missing expression")
	}
	a, err := setup(*cfgPath)
	if err != nil {
		return err
	}
	src := strings.Join(fs.Args(), " ")
	compiled, err := a.compile("<eval>", src, nil)
	if err != nil {
		return err
	}
	return a.evaluate(os.Stdout, compiled.Code)
}

// -------------- RUN --------------

func cmdRun(args []string) error {
	fs, cfgPath := newFlagSet("run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("run: missing input file")
	}
	a, err := setup(*cfgPath)
	if err != nil {
		return err
	}
	code, err := a.loadCode(fs.Arg(0))
	if err != nil {
		return err
	}
	return a.evaluate(os.Stdout, code)
}

// -------------- BUILD --------------

func cmdBuild(args []string) error {
	fs, cfgPath := newFlagSet("build")
	var out string
	var codecName string
	fs.StringVar(&out, "o", "", "output file (default: <input>.isc)")
	fs.StringVar(&codecName, "codec", "", "body compression: none|lz4|xz (default: from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("build: missing input file")
	}
	input := fs.Arg(0)
	if filepath.Ext(input) != ".isle" {
		return fmt.Errorf("build: input must be .isle source file")
	}
	if out == "" {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + ".isc"
	}

	a, err := setup(*cfgPath)
	if err != nil {
		return err
	}
	if codecName == "" {
		codecName = a.cfg.Codec.Compression
	}
	codec, err := ir.ParseCodec(codecName)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	code, err := a.compileFile(input)
	if err != nil {
		return err
	}
	if err := ir.WriteCodeToFile(out, code, codec, a.rt.Registry); err != nil {
		return fmt.Errorf("failed to write code: %w", err)
	}
	if st, err := os.Stat(out); err == nil {
		a.logger.Info("code written", "file", out, "codec", codec, "size", units.HumanSize(float64(st.Size())))
	}
	return nil
}

// -------------- DUMP --------------

func cmdDump(args []string) error {
	fs, cfgPath := newFlagSet("dump")
	syntax := fs.Bool("ast", false, "print the syntax tree of a source file instead")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("dump: missing input file")
	}
	if *syntax {
		src, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			return err
		}
		expr, err := parser.Parse(string(src))
		if err != nil {
			return err
		}
		fmt.Print(ast.Dump(expr))
		return nil
	}
	a, err := setup(*cfgPath)
	if err != nil {
		return err
	}
	code, err := a.loadCode(fs.Arg(0))
	if err != nil {
		return err
	}
	return ir.Disassemble(os.Stdout, code)
}

// -------------- REPL --------------

const (
	prompt     = "isle> "
	contPrompt = "  ... "
)

func cmdRepl(args []string) error {
	fs, cfgPath := newFlagSet("repl")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := setup(*cfgPath)
	if err != nil {
		return err
	}

	home, _ := os.UserHomeDir()
	l, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       filepath.Join(home, ".isle-history"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer l.Close()
	l.CaptureExitSignal()

	fmt.Println("isle", version, "- :dis <expr> disassembles, :q quits")
	var pending string
	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 && pending == "" {
				return nil
			}
			pending = ""
			l.SetPrompt(prompt)
			continue
		} else if err == io.EOF {
			return nil
		}

		src := line
		if pending != "" {
			src = pending + "\n" + line
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		if t := strings.TrimSpace(src); t == ":q" || t == ":quit" {
			return nil
		}

		if incomplete(src) {
			pending = src
			l.SetPrompt(contPrompt)
			continue
		}
		pending = ""
		l.SetPrompt(prompt)
		a.replLine(src)
	}
}

// incomplete reports whether src fails to parse only because input ended.
func incomplete(src string) bool {
	src = strings.TrimPrefix(strings.TrimSpace(src), ":dis")
	_, err := parser.Parse(src)
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "EOF") || strings.Contains(msg, "unterminated")
}

func (a *app) replLine(src string) {
	dis := false
	if rest, ok := strings.CutPrefix(strings.TrimSpace(src), ":dis"); ok {
		src, dis = rest, true
	}
	compiled, err := a.compile("<repl>", src, nil)
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		return
	}
	if dis {
		if err := ir.Disassemble(os.Stdout, compiled.Code); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		return
	}
	if err := a.evaluate(os.Stdout, compiled.Code); err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
}
