package value_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"isle/internal/value"
)

type countingRoot struct {
	value.BaseRoot
	reads atomic.Int32
	lists atomic.Int32
}

func (*countingRoot) Type() string { return "counting" }

func (r *countingRoot) Read(_ context.Context, sub value.Subpath) ([]byte, error) {
	r.reads.Add(1)
	if len(sub) > 0 && sub[len(sub)-1] == "missing" {
		return nil, errors.New("no such leaf")
	}
	return []byte(strings.Join(sub, "/")), nil
}

func (r *countingRoot) List(context.Context, value.Subpath) ([]value.Subpath, error) {
	r.lists.Add(1)
	return []value.Subpath{{"a"}, {"b"}}, nil
}

func TestPath_ReadIsMemoised(t *testing.T) {
	root := &countingRoot{}
	p := value.NewPath(root)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := p.Get("x").Get("y").Read(context.Background())
			if err != nil || string(b) != "x/y" {
				t.Errorf("expected x/y, got %q (%v)", b, err)
			}
		}()
	}
	wg.Wait()
	if n := root.reads.Load(); n != 1 {
		t.Fatalf("expected one read, got %d", n)
	}

	for i := 0; i < 2; i++ {
		if _, err := p.Get("missing").Read(context.Background()); err == nil {
			t.Fatalf("expected an error")
		}
	}
	if n := root.reads.Load(); n != 2 {
		t.Fatalf("expected failures to be memoised, got %d reads", n)
	}

	for i := 0; i < 3; i++ {
		subs, err := p.List(context.Background())
		if err != nil || len(subs) != 2 {
			t.Fatalf("unexpected list %v (%v)", subs, err)
		}
	}
	if n := root.lists.Load(); n != 1 {
		t.Fatalf("expected one list, got %d", n)
	}
}

func TestPath_Defaults(t *testing.T) {
	p := value.NewPath(&countingRoot{})
	if err := p.Write(context.Background(), nil); !errors.Is(err, value.ErrNotWritable) {
		t.Fatalf("expected ErrNotWritable, got %v", err)
	}
	rootless := value.RootlessPath("a")
	if _, err := rootless.Read(context.Background()); !errors.Is(err, value.ErrRootless) {
		t.Fatalf("expected ErrRootless, got %v", err)
	}
}

func TestPath_Equal(t *testing.T) {
	root := &countingRoot{}
	a := value.NewPath(root).Get("x")
	b := value.NewPath(root, "x")
	c := value.NewPath(&countingRoot{}, "x")
	if !a.Equal(b) {
		t.Fatalf("expected paths over the same root and subpath to be equal")
	}
	if a.Equal(c) {
		t.Fatalf("expected paths over different roots to differ")
	}
	if !value.ParseRootless("./a/b").Equal(value.RootlessPath("a", "b")) {
		t.Fatalf("expected ./a/b to parse as a rootless a/b")
	}
	if got := a.String(); got != "<counting>/x" {
		t.Fatalf("expected <counting>/x, got %s", got)
	}
}

type blockingRoot struct {
	value.BaseRoot
	started chan struct{}
	release chan struct{}
	reads   atomic.Int32
}

func (*blockingRoot) Type() string { return "blocking" }

func (r *blockingRoot) Read(ctx context.Context, sub value.Subpath) ([]byte, error) {
	if r.reads.Add(1) == 1 {
		close(r.started)
	}
	select {
	case <-r.release:
		return []byte("done"), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestPath_SharedReadOutlivesCancelledCaller(t *testing.T) {
	root := &blockingRoot{started: make(chan struct{}), release: make(chan struct{})}
	p := value.NewPath(root, "leaf")

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := p.Read(ctx)
		first <- err
	}()
	<-root.started

	type outcome struct {
		b   []byte
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		b, err := p.Read(context.Background())
		second <- outcome{b, err}
	}()

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled caller to get context.Canceled, got %v", err)
	}
	close(root.release)

	got := <-second
	if got.err != nil || string(got.b) != "done" {
		t.Fatalf("expected done, got %q (%v)", got.b, got.err)
	}
	if n := root.reads.Load(); n != 1 {
		t.Fatalf("expected one root read, got %d", n)
	}
}

func TestPath_CacheKeepsSubpathsApart(t *testing.T) {
	root := &countingRoot{}
	p := value.NewPath(root)

	joined, err := p.Get("a/b").Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	split, err := p.Get("a").Get("b").Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(joined) != "a/b" || string(split) != "a/b" {
		t.Fatalf("unexpected contents %q and %q", joined, split)
	}
	if n := root.reads.Load(); n != 2 {
		t.Fatalf("expected a read per distinct subpath, got %d", n)
	}

	if _, err := p.Read(context.Background()); err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := p.Get("").Read(context.Background()); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := root.reads.Load(); n != 4 {
		t.Fatalf("expected the empty subpath and an empty part to differ, got %d reads", n)
	}
}
