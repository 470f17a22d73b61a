// Package controller holds the view-state logic behind the task list and the
// kanban board. Both views read through a shared Store and react to its
// invalidation events.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// DefaultTimeout bounds every gateway call.
const DefaultTimeout = 10 * time.Second

// Collection is the remote task store. Satisfied by *gateway.Client.
type Collection interface {
	List(ctx context.Context, p model.ListParams) (model.TaskPage, error)
	Create(ctx context.Context, n model.NewTask) (model.Task, error)
	Update(ctx context.Context, id string, p model.Patch) error
	Delete(ctx context.Context, id string) error
}

// Assistant is the remote completion service. Satisfied by *gateway.Client and *ai.Client.
type Assistant interface {
	ProposeEdit(ctx context.Context, current model.Task, instruction string) (model.Edit, error)
	ExtractTasks(ctx context.Context, document string) ([]model.Draft, error)
}

// call runs fn under a deadline. A call that outlives the deadline is
// abandoned and reported as ErrTransport even if fn ignores its context.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil && !errors.Is(r.err, model.ErrTransport) {
			r.err = fmt.Errorf("%w: %w", model.ErrTransport, r.err)
		}
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", model.ErrTransport, ctx.Err())
	}
}

func callErr(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	_, err := call(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
