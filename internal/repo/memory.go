package repo

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// MemoryRepo keeps tasks and import jobs in process. It backs the API when no
// DATABASE_URL is configured and applies the same filter and sort rules as the views.
type MemoryRepo struct {
	mu    sync.RWMutex
	tasks map[string]model.Task
	keys  map[string]string
	jobs  map[string]model.ImportJob
	queue []string
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		tasks: make(map[string]model.Task),
		keys:  make(map[string]string),
		jobs:  make(map[string]model.ImportJob),
		now:   time.Now,
	}
}

// WithClock replaces the clock used for created_at stamps.
func (r *MemoryRepo) WithClock(now func() time.Time) *MemoryRepo {
	r.now = now
	return r
}

func (r *MemoryRepo) Create(_ context.Context, n model.NewTask) (model.Task, error) {
	if err := n.Validate(); err != nil {
		return model.Task{}, err
	}
	t := model.Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(n.Title),
		Description: n.Description,
		Status:      n.Status,
		DueDate:     n.DueDate,
		Owner:       n.Owner,
		CreatedAt:   r.now().UTC(),
	}
	if t.Status == "" {
		t.Status = model.StatusPending
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, model.ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) List(_ context.Context, p model.ListParams) (model.TaskPage, error) {
	p = p.Normalize()
	matched := model.FilterTasks(r.snapshot(), p.Search, p.Status)
	model.SortTasks(matched, p.Sort)

	page := model.TaskPage{Total: len(matched), Items: []model.Task{}}
	start := min(p.Offset(), len(matched))
	end := min(start+p.PageSize, len(matched))
	page.Items = append(page.Items, matched[start:end]...)
	return page, nil
}

func (r *MemoryRepo) ListByDueDate(_ context.Context, from, to model.Date) ([]model.Task, error) {
	var out []model.Task
	for _, t := range r.snapshot() {
		if t.DueDate == nil || t.DueDate.Before(from) || to.Before(*t.DueDate) {
			continue
		}
		out = append(out, t)
	}
	model.SortTasks(out, model.SortDueDate)
	return out, nil
}

func (r *MemoryRepo) Update(_ context.Context, id string, p model.Patch) (model.Task, error) {
	if err := p.Validate(); err != nil {
		return model.Task{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, model.ErrNotFound
	}
	t = p.Apply(t)
	r.tasks[id] = t
	return t, nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return model.ErrNotFound
	}
	delete(r.tasks, id)
	for k, v := range r.keys {
		if v == id {
			delete(r.keys, k)
		}
	}
	return nil
}

func (r *MemoryRepo) SaveIdempotencyKey(_ context.Context, key string, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[key]; !ok {
		r.keys[key] = taskID
	}
	return nil
}

func (r *MemoryRepo) GetIdempotencyKey(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.keys[key]
	if !ok {
		return "", model.ErrNotFound
	}
	return id, nil
}

func (r *MemoryRepo) GetStats(_ context.Context, today model.Date) (model.Stats, error) {
	stats := model.Stats{ByStatus: make(map[string]int, len(model.Statuses))}
	for _, s := range model.Statuses {
		stats.ByStatus[string(s)] = 0
	}
	for _, t := range r.snapshot() {
		stats.ByStatus[string(t.Status)]++
		stats.Total++
		if t.DueDate != nil && t.DueDate.Before(today) {
			stats.Overdue++
		}
	}
	return stats, nil
}

func (r *MemoryRepo) snapshot() []model.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out
}

func (r *MemoryRepo) Enqueue(_ context.Context, owner, document string) (model.ImportJob, error) {
	now := r.now().UTC()
	job := model.ImportJob{
		ID:        uuid.NewString(),
		Owner:     owner,
		Document:  document,
		Status:    model.ImportQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	r.queue = append(r.queue, job.ID)
	return job, nil
}

func (r *MemoryRepo) GetJob(_ context.Context, id string) (model.ImportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return model.ImportJob{}, model.ErrNotFound
	}
	return job, nil
}

func (r *MemoryRepo) Claim(_ context.Context) (model.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return model.ImportJob{}, ErrNoJobs
	}
	id := r.queue[0]
	r.queue = r.queue[1:]
	job := r.jobs[id]
	job.Status = model.ImportProcessing
	job.UpdatedAt = r.now().UTC()
	r.jobs[id] = job
	return job, nil
}

func (r *MemoryRepo) Complete(_ context.Context, id string, created int) error {
	return r.updateJob(id, func(j *model.ImportJob) {
		j.Status = model.ImportCompleted
		j.Created = created
	})
}

func (r *MemoryRepo) Fail(_ context.Context, id string, reason string) error {
	return r.updateJob(id, func(j *model.ImportJob) {
		j.Status = model.ImportFailed
		j.Error = reason
	})
}

func (r *MemoryRepo) Requeue(_ context.Context, id string) error {
	err := r.updateJob(id, func(j *model.ImportJob) {
		j.Status = model.ImportQueued
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.queue, id) {
		r.queue = append([]string{id}, r.queue...)
	}
	return nil
}

func (r *MemoryRepo) updateJob(id string, fn func(*model.ImportJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return model.ErrNotFound
	}
	fn(&job)
	job.UpdatedAt = r.now().UTC()
	r.jobs[id] = job
	return nil
}

var (
	_ TaskRepository = (*MemoryRepo)(nil)
	_ ImportQueue    = (*MemoryRepo)(nil)
	_ TaskRepository = (*TaskRepo)(nil)
	_ ImportQueue    = (*ImportRepo)(nil)
)
