package vm

import (
	"context"

	"golang.org/x/sync/errgroup"

	"isle/internal/value"
)

// Scheduler runs several evaluations concurrently and joins them. Each task
// is its own force chain, so tasks sharing a thunk wait for each other
// instead of reporting recursion.
type Scheduler struct {
	vm  *VM
	ctx context.Context
	g   *errgroup.Group
}

// Task is the handle of a scheduled evaluation. Its result is available
// once Wait has returned.
type Task struct {
	value value.Value
}

func (t *Task) Value() value.Value { return t.value }

// NewScheduler starts a scheduler bound to ctx. limit caps the number of
// tasks running at once; zero or less means no limit. The first task that
// fails with a Go error cancels the others.
func NewScheduler(ctx context.Context, vm *VM, limit int) *Scheduler {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	return &Scheduler{vm: vm, ctx: ctx, g: g}
}

// Evaluate schedules the evaluation of code over scopes.
func (s *Scheduler) Evaluate(code *value.Code, scopes value.Scopes) *Task {
	return s.Go(func(ctx context.Context) (value.Value, error) {
		return s.vm.Evaluate(ctx, code, scopes)
	})
}

// Force schedules forcing v to weak head normal form.
func (s *Scheduler) Force(v value.Value) *Task {
	return s.Go(func(ctx context.Context) (value.Value, error) {
		return s.vm.whnf(ctx, v, value.Location{})
	})
}

// Go schedules fn on a fresh force chain.
func (s *Scheduler) Go(fn func(ctx context.Context) (value.Value, error)) *Task {
	t := &Task{}
	s.g.Go(func() error {
		v, err := fn(value.WithChain(s.ctx))
		t.value = v
		return err
	})
	return t
}

// Wait blocks until every task finished and returns the first Go error.
func (s *Scheduler) Wait() error {
	return s.g.Wait()
}
