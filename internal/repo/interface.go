package repo

import (
	"context"
	"errors"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// ErrNoJobs is returned by Claim when nothing is queued.
var ErrNoJobs = errors.New("no queued jobs")

// TaskRepository is the persistence surface behind the task API.
type TaskRepository interface {
	Create(ctx context.Context, t model.NewTask) (model.Task, error)
	Get(ctx context.Context, id string) (model.Task, error)
	List(ctx context.Context, p model.ListParams) (model.TaskPage, error)
	ListByDueDate(ctx context.Context, from, to model.Date) ([]model.Task, error)
	Update(ctx context.Context, id string, p model.Patch) (model.Task, error)
	Delete(ctx context.Context, id string) error
	SaveIdempotencyKey(ctx context.Context, key string, taskID string) error
	GetIdempotencyKey(ctx context.Context, key string) (string, error)
	GetStats(ctx context.Context, today model.Date) (model.Stats, error)
}

// ImportQueue stores document import jobs for the worker pool.
type ImportQueue interface {
	Enqueue(ctx context.Context, owner, document string) (model.ImportJob, error)
	GetJob(ctx context.Context, id string) (model.ImportJob, error)
	Claim(ctx context.Context) (model.ImportJob, error)
	Complete(ctx context.Context, id string, created int) error
	Fail(ctx context.Context, id string, reason string) error
	Requeue(ctx context.Context, id string) error
}
