package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

func TestStore_ListReadsThrough(t *testing.T) {
	coll := newFakeCollection()
	coll.seed(t, pending("a"), pending("b"))
	store := NewStore(coll)
	ctx := context.Background()

	first, err := store.List(ctx, model.ListParams{})
	require.NoError(t, err)
	second, err := store.List(ctx, model.ListParams{Page: 1, PageSize: 10, Sort: model.SortCreatedDesc, Status: model.FilterAll})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, coll.lists.Load(), "normalized params share one cache entry")

	first.Items[0].Title = "mutated"
	again, err := store.List(ctx, model.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, "b", again.Items[0].Title, "callers get their own copy")
}

func TestStore_MutationsInvalidateAndNotify(t *testing.T) {
	coll := newFakeCollection()
	tasks := coll.seed(t, pending("a"))
	store := NewStore(coll)
	ctx := context.Background()

	events := make(chan Event, 4)
	cancel := store.Subscribe(func(ev Event) { events <- ev })
	defer cancel()

	_, err := store.List(ctx, model.ListParams{})
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, "tester", tasks[0].ID, model.StatusPatch(model.StatusCompleted)))

	select {
	case ev := <-events:
		assert.Equal(t, Event{Source: "tester", Op: OpUpdate, TaskID: tasks[0].ID}, ev)
	case <-time.After(time.Second):
		t.Fatal("no invalidation event")
	}

	page, err := store.List(ctx, model.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, page.Items[0].Status)
	assert.EqualValues(t, 2, coll.lists.Load())
}

func TestStore_FailedMutationKeepsCache(t *testing.T) {
	coll := newFakeCollection()
	store := NewStore(coll)
	ctx := context.Background()

	_, err := store.List(ctx, model.ListParams{})
	require.NoError(t, err)

	err = store.Delete(ctx, "tester", "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = store.List(ctx, model.ListParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, coll.lists.Load())
}

func TestStore_ConcurrentListsShareOneFetch(t *testing.T) {
	coll := newFakeCollection()
	coll.seed(t, pending("a"))
	release := make(chan struct{})
	coll.setListHook(func(ctx context.Context, _ model.ListParams) error {
		<-release
		return nil
	})
	store := NewStore(coll)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page, err := store.List(context.Background(), model.ListParams{})
			assert.NoError(t, err)
			assert.Equal(t, 1, page.Total)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, coll.lists.Load())
}

func TestStore_InvalidateDuringFetchSkipsCaching(t *testing.T) {
	coll := newFakeCollection()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	coll.setListHook(func(ctx context.Context, _ model.ListParams) error {
		once.Do(func() {
			close(entered)
			<-release
		})
		return nil
	})
	store := NewStore(coll)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.List(context.Background(), model.ListParams{})
	}()
	<-entered
	store.Invalidate(Event{Source: "elsewhere", Op: OpReset})
	close(release)
	<-done

	_, err := store.List(context.Background(), model.ListParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, coll.lists.Load())
}

func TestStore_DeadlineIsTransportError(t *testing.T) {
	coll := newFakeCollection()
	hang := make(chan struct{})
	t.Cleanup(func() { close(hang) })
	coll.setListHook(func(ctx context.Context, _ model.ListParams) error {
		<-hang
		return nil
	})
	store := NewStore(coll, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := store.List(context.Background(), model.ListParams{})

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStore_SubscriberPanicIsContained(t *testing.T) {
	store := NewStore(newFakeCollection())
	got := make(chan Event, 1)
	store.Subscribe(func(Event) { panic("boom") })
	store.Subscribe(func(ev Event) { got <- ev })

	store.Invalidate(Event{Source: "x", Op: OpReset})

	select {
	case ev := <-got:
		assert.Equal(t, OpReset, ev.Op)
	case <-time.After(time.Second):
		t.Fatal("healthy subscriber not called")
	}
}

func TestStore_Unsubscribe(t *testing.T) {
	store := NewStore(newFakeCollection())
	called := make(chan struct{}, 1)
	cancel := store.Subscribe(func(Event) { called <- struct{}{} })
	cancel()

	store.Invalidate(Event{Op: OpReset})

	select {
	case <-called:
		t.Fatal("unsubscribed handler was called")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCall_WrapsErrorsAfterDeadline(t *testing.T) {
	_, err := call(context.Background(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.True(t, isTransport(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	v, err := call(context.Background(), time.Second, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestStore_FetchAlwaysAsksCollection(t *testing.T) {
	coll := newFakeCollection()
	coll.seed(t, pending("a"))
	store := NewStore(coll)
	ctx := context.Background()

	_, err := store.List(ctx, model.ListParams{})
	require.NoError(t, err)
	coll.seed(t, pending("b"))

	cached, err := store.List(ctx, model.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Total)

	fresh, err := store.Fetch(ctx, model.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Total)
	assert.EqualValues(t, 2, coll.lists.Load())

	cached, err = store.List(ctx, model.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Total, "fetch refreshes the cached page")
}

func TestStore_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	coll := newFakeCollection()
	coll.seed(t, pending("a"))
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	coll.setListHook(func(context.Context, model.ListParams) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	})
	store := NewStore(coll)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := store.Fetch(ctx, model.ListParams{})
		first <- err
	}()
	<-entered

	type result struct {
		page model.TaskPage
		err  error
	}
	second := make(chan result, 1)
	go func() {
		page, err := store.Fetch(context.Background(), model.ListParams{})
		second <- result{page, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	err := <-first
	assert.ErrorIs(t, err, model.ErrTransport)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 1, got.page.Total)
	assert.EqualValues(t, 1, coll.lists.Load())
}
