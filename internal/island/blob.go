package island

import (
	"context"
	"errors"

	"isle/internal/value"
)

var ErrBlobLeaf = errors.New("blob only contains a single leaf")

// Blob is an in-memory island holding one leaf.
type Blob struct {
	value.BaseRoot
	content string
}

func NewBlob(content string) *Blob {
	return &Blob{content: content}
}

func (*Blob) Type() string { return "blob" }

func (b *Blob) Config() (value.Value, bool) { return value.Str(b.content), true }

func (b *Blob) Read(_ context.Context, subpath value.Subpath) ([]byte, error) {
	if len(subpath) != 0 {
		return nil, ErrBlobLeaf
	}
	return []byte(b.content), nil
}
