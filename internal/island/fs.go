package island

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/docker/go-units"

	"isle/internal/value"
)

// Fs is an island over a directory of the host filesystem.
type Fs struct {
	config value.Value
	path   *value.Path
	logger *slog.Logger
}

// NewFs roots an island at path, which must be rootless.
func NewFs(config value.Value, path *value.Path) (*Fs, error) {
	if path == nil || !path.IsRootless() {
		return nil, fmt.Errorf("fs island needs a rootless path, got %v", path)
	}
	return &Fs{config: config, path: path, logger: slog.Default()}, nil
}

// WithLogger sets the logger used for debug output.
func (f *Fs) WithLogger(l *slog.Logger) *Fs {
	f.logger = l
	return f
}

func (*Fs) Type() string { return "fs" }

func (f *Fs) Config() (value.Value, bool) {
	if f.config.Kind == value.KindNope {
		return value.Value{}, false
	}
	return f.config, true
}

func (f *Fs) Path() (value.Value, bool) { return value.PathOf(f.path), true }

// hostPath joins the stored subpath with subpath.
func (f *Fs) hostPath(subpath value.Subpath) string {
	parts := f.path.Subpath().Append(subpath...)
	if len(parts) > 0 && parts[0] == "" {
		return string(filepath.Separator) + filepath.Join(parts[1:]...)
	}
	if len(parts) == 0 {
		return "."
	}
	return filepath.Join(parts...)
}

func (f *Fs) Read(ctx context.Context, subpath value.Subpath) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	host := f.hostPath(subpath)
	data, err := os.ReadFile(host)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("fs island read", "path", host, "size", units.HumanSize(float64(len(data))))
	return data, nil
}

// List returns the names of the children of subpath, one part each, in name
// order.
func (f *Fs) List(ctx context.Context, subpath value.Subpath) ([]value.Subpath, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.hostPath(subpath))
	if err != nil {
		return nil, err
	}
	out := make([]value.Subpath, 0, len(entries))
	for _, e := range entries {
		out = append(out, value.Subpath{e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out, nil
}

func (*Fs) IsWriteable(context.Context) bool { return true }

func (f *Fs) Write(ctx context.Context, subpath value.Subpath, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(subpath) == 0 && len(f.path.Subpath()) == 0 {
		return errors.New("fs island cannot write to its own root")
	}
	host := f.hostPath(subpath)
	if err := os.MkdirAll(filepath.Dir(host), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(host, content, 0o644); err != nil {
		return err
	}
	f.logger.Debug("fs island write", "path", host, "size", units.HumanSize(float64(len(content))))
	return nil
}
