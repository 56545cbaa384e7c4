// Package config loads the isle CLI configuration from a TOML file.
//
// A file looks like:
//
//	[log]
//	level = "debug"
//	format = "json"
//
//	[codec]
//	compression = "lz4"
//
//	[islands.s3]
//	region = "eu-west-1"
//	endpoint = "http://localhost:9000"
//	force_path_style = true
//
//	[islands.sql]
//	driver = "sqlite"
//	dsn = "file:islands.db"
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvVar names the environment variable holding the default config path.
const EnvVar = "ISLE_CONFIG"

type Config struct {
	Log     Log     `toml:"log"`
	Codec   Codec   `toml:"codec"`
	Run     Run     `toml:"run"`
	Islands Islands `toml:"islands"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

type Codec struct {
	Compression string `toml:"compression"`
}

type Run struct {
	// Timeout bounds a single evaluation, e.g. "30s". Empty means none.
	Timeout string `toml:"timeout"`
}

type Islands struct {
	S3  *S3  `toml:"s3"`
	SQL *SQL `toml:"sql"`
}

type S3 struct {
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	ForcePathStyle  bool   `toml:"force_path_style"`
}

type SQL struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:   Log{Level: "warn", Format: "text"},
		Codec: Codec{Compression: "none"},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads path, or the file named by ISLE_CONFIG when path is empty,
// or the defaults when neither is set.
func Resolve(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	switch c.Codec.Compression {
	case "", "none", "lz4", "xz":
	default:
		return fmt.Errorf("codec.compression: unknown codec %q", c.Codec.Compression)
	}
	if _, err := c.Run.Duration(); err != nil {
		return fmt.Errorf("run.timeout: %w", err)
	}
	if s := c.Islands.SQL; s != nil {
		switch s.Driver {
		case "postgres", "sqlite", "mysql":
		default:
			return fmt.Errorf("islands.sql.driver: unknown driver %q", s.Driver)
		}
		if s.DSN == "" {
			return fmt.Errorf("islands.sql.dsn: missing")
		}
	}
	return nil
}

// Duration parses Timeout. Zero means no timeout.
func (r Run) Duration() (time.Duration, error) {
	if r.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(r.Timeout)
}

func (l Log) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Logger builds the logger described by l writing to w, or to l.File when
// it is set. The returned close function releases the file.
func (l Log) Logger(w io.Writer) (*slog.Logger, func() error, error) {
	closer := func() error { return nil }
	if l.File != "" {
		f, err := os.OpenFile(l.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = f.Close
	}
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	var h slog.Handler
	if l.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}
