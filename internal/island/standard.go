package island

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"isle/internal/value"
)

var ErrStandardLeaf = errors.New("standard only contains a single leaf")

// Standard is the process' standard input and output as an island.
type Standard struct {
	value.BaseRoot

	in  io.Reader
	out io.Writer

	readOnce sync.Once
	input    []byte
	inputErr error

	mu sync.Mutex
}

// NewStandard uses os.Stdin and os.Stdout.
func NewStandard() *Standard {
	return NewStandardWith(os.Stdin, os.Stdout)
}

func NewStandardWith(in io.Reader, out io.Writer) *Standard {
	return &Standard{in: in, out: out}
}

func (*Standard) Type() string { return "standard" }

// Read drains standard input the first time and returns the same bytes
// afterwards.
func (s *Standard) Read(ctx context.Context, subpath value.Subpath) ([]byte, error) {
	if len(subpath) != 0 {
		return nil, ErrStandardLeaf
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.readOnce.Do(func() {
		s.input, s.inputErr = io.ReadAll(s.in)
	})
	return s.input, s.inputErr
}

func (*Standard) IsWriteable(context.Context) bool { return true }

func (s *Standard) Write(ctx context.Context, subpath value.Subpath, content []byte) error {
	if len(subpath) != 0 {
		return ErrStandardLeaf
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.out.Write(content)
	return err
}
