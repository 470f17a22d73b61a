package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/repo"
)

var errUnavailable = fmt.Errorf("%w: service unavailable", model.ErrTransport)

// fakeCollection serves tasks from a MemoryRepo. Hooks let a test hold or
// fail individual calls.
type fakeCollection struct {
	repo *repo.MemoryRepo

	mu         sync.Mutex
	listHook   func(ctx context.Context, p model.ListParams) error
	updateHook func(ctx context.Context, id string, p model.Patch) error
	patches    []model.Patch

	lists   atomic.Int32
	updates atomic.Int32
	creates atomic.Int32
	deletes atomic.Int32
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{repo: repo.NewMemoryRepo().WithClock(tickingClock())}
}

func (f *fakeCollection) List(ctx context.Context, p model.ListParams) (model.TaskPage, error) {
	f.lists.Add(1)
	f.mu.Lock()
	hook := f.listHook
	f.mu.Unlock()
	// The page is read before the hook runs, so a held call answers with
	// the data as it was when the request arrived.
	page, err := f.repo.List(ctx, p)
	if hook != nil {
		if err := hook(ctx, p); err != nil {
			return model.TaskPage{}, err
		}
	}
	return page, err
}

func (f *fakeCollection) Create(ctx context.Context, n model.NewTask) (model.Task, error) {
	f.creates.Add(1)
	return f.repo.Create(ctx, n)
}

func (f *fakeCollection) Update(ctx context.Context, id string, p model.Patch) error {
	f.updates.Add(1)
	f.mu.Lock()
	f.patches = append(f.patches, p)
	hook := f.updateHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, id, p); err != nil {
			return err
		}
	}
	_, err := f.repo.Update(ctx, id, p)
	return err
}

func (f *fakeCollection) Delete(ctx context.Context, id string) error {
	f.deletes.Add(1)
	return f.repo.Delete(ctx, id)
}

func (f *fakeCollection) setListHook(h func(ctx context.Context, p model.ListParams) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listHook = h
}

func (f *fakeCollection) setUpdateHook(h func(ctx context.Context, id string, p model.Patch) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateHook = h
}

func (f *fakeCollection) seen() []model.Patch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Patch(nil), f.patches...)
}

func (f *fakeCollection) seed(t *testing.T, tasks ...model.NewTask) []model.Task {
	t.Helper()
	out := make([]model.Task, 0, len(tasks))
	for _, n := range tasks {
		task, err := f.repo.Create(context.Background(), n)
		require.NoError(t, err)
		out = append(out, task)
	}
	return out
}

func (f *fakeCollection) get(t *testing.T, id string) model.Task {
	t.Helper()
	task, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return task
}

// MockAssistant is a testify mock of Assistant.
type MockAssistant struct {
	mock.Mock
}

func (m *MockAssistant) ProposeEdit(ctx context.Context, current model.Task, instruction string) (model.Edit, error) {
	args := m.Called(ctx, current, instruction)
	return args.Get(0).(model.Edit), args.Error(1)
}

func (m *MockAssistant) ExtractTasks(ctx context.Context, document string) ([]model.Draft, error) {
	args := m.Called(ctx, document)
	return args.Get(0).([]model.Draft), args.Error(1)
}

func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

func pending(title string) model.NewTask {
	return model.NewTask{Title: title, Status: model.StatusPending, Owner: "u1"}
}

func numbered(n int) []model.NewTask {
	out := make([]model.NewTask, n)
	for i := range out {
		out[i] = pending(fmt.Sprintf("task %02d", i+1))
	}
	return out
}

func titles(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func newListController(t *testing.T, store *Store, assistant Assistant) *ListController {
	t.Helper()
	c := NewListController(store, assistant, "u1", zap.NewNop())
	t.Cleanup(c.Close)
	return c
}

func newBoard(t *testing.T, store *Store) *Board {
	t.Helper()
	b := NewBoard(store, zap.NewNop())
	t.Cleanup(b.Close)
	return b
}

func isTransport(err error) bool {
	return errors.Is(err, model.ErrTransport)
}
