package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

func TestListController_InitialState(t *testing.T) {
	c := newListController(t, NewStore(newFakeCollection()), nil)
	s := c.State()

	assert.Equal(t, model.FilterAll, s.Status)
	assert.Equal(t, model.SortCreatedDesc, s.Sort)
	assert.Equal(t, 1, s.Page)
	assert.Equal(t, 10, s.PageSize)
	assert.False(t, s.CanPrev())
	assert.False(t, s.CanNext())
}

func TestListController_StatusFilterExcludesOtherStatuses(t *testing.T) {
	coll := newFakeCollection()
	coll.seed(t,
		pending("Buy milk"),
		model.NewTask{Title: "File taxes", Status: model.StatusCompleted, Owner: "u1"},
	)
	c := newListController(t, NewStore(coll), nil)
	ctx := context.Background()

	require.NoError(t, c.SetStatusFilter(ctx, model.StatusFilter(model.StatusCompleted)))

	s := c.State()
	assert.Equal(t, []string{"File taxes"}, titles(s.Items))
	assert.Equal(t, 1, s.Total)
}

func TestListController_ParameterChangesFetchOnce(t *testing.T) {
	coll := newFakeCollection()
	coll.seed(t, numbered(25)...)
	c := newListController(t, NewStore(coll), nil)
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	require.NoError(t, c.SetPage(ctx, 3))
	before := coll.lists.Load()

	require.NoError(t, c.SetSearch(ctx, "task 1"))
	assert.Equal(t, before+1, coll.lists.Load())
	assert.Equal(t, 1, c.State().Page, "new filter starts over at page one")

	require.NoError(t, c.SetSearch(ctx, "task 1"))
	assert.Equal(t, before+1, coll.lists.Load(), "unchanged search does not fetch")

	require.NoError(t, c.SetSort(ctx, model.SortTitle))
	assert.Equal(t, before+2, coll.lists.Load())
	assert.Equal(t, "task 10", c.State().Items[0].Title)
}

func TestListController_RejectsUnknownParameters(t *testing.T) {
	c := newListController(t, NewStore(newFakeCollection()), nil)
	ctx := context.Background()

	assert.ErrorIs(t, c.SetStatusFilter(ctx, "archived"), model.ErrValidation)
	assert.ErrorIs(t, c.SetSort(ctx, "priority"), model.ErrValidation)
}

func TestListController_StaleFetchIsDiscarded(t *testing.T) {
	coll := newFakeCollection()
	coll.seed(t, pending("old errand"), pending("Buy milk"))
	entered := make(chan struct{})
	release := make(chan struct{})
	coll.setListHook(func(ctx context.Context, p model.ListParams) error {
		if p.Search == "old" {
			close(entered)
			<-release
		}
		return nil
	})
	c := newListController(t, NewStore(coll), nil)
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() { slow <- c.SetSearch(ctx, "old") }()
	<-entered

	require.NoError(t, c.SetSearch(ctx, "milk"))
	fresh := c.State()
	require.Equal(t, []string{"Buy milk"}, titles(fresh.Items))

	close(release)
	require.NoError(t, <-slow)

	s := c.State()
	assert.Equal(t, "milk", s.Search)
	assert.Equal(t, []string{"Buy milk"}, titles(s.Items))
	assert.Equal(t, 1, s.Total)
	assert.False(t, s.Loading)
}

func TestListController_FailedFetchKeepsLastGoodPage(t *testing.T) {
	coll := newFakeCollection()
	coll.seed(t, pending("Buy milk"))
	c := newListController(t, NewStore(coll), nil)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	coll.setListHook(func(context.Context, model.ListParams) error { return errUnavailable })
	err := c.SetSearch(ctx, "bread")

	assert.ErrorIs(t, err, model.ErrTransport)
	s := c.State()
	assert.ErrorIs(t, s.Err, model.ErrTransport)
	assert.False(t, s.Loading)
	assert.Equal(t, []string{"Buy milk"}, titles(s.Items))
	assert.Equal(t, 1, s.Total)

	coll.setListHook(nil)
	require.NoError(t, c.SetSearch(ctx, ""))
	assert.NoError(t, c.State().Err, "next fetch clears the error")
}

func TestListController_PageClamping(t *testing.T) {
	coll := newFakeCollection()
	coll.seed(t, numbered(25)...)
	c := newListController(t, NewStore(coll), nil)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	tests := []struct {
		name string
		set  int
		want int
	}{
		{"past the end", 99, 3},
		{"zero", 0, 1},
		{"negative", -4, 1},
		{"in range", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.SetPage(ctx, tt.set))
			s := c.State()
			assert.Equal(t, tt.want, s.Page)
			assert.GreaterOrEqual(t, s.Page, 1)
			assert.LessOrEqual(t, s.Page, max(s.PageCount(), 1))
		})
	}

	require.NoError(t, c.SetPage(ctx, 3))
	s := c.State()
	assert.Equal(t, 3, s.PageCount())
	assert.Len(t, s.Items, 5)
	assert.True(t, s.CanPrev())
	assert.False(t, s.CanNext())

	before := coll.lists.Load()
	require.NoError(t, c.NextPage(ctx))
	assert.Equal(t, before, coll.lists.Load(), "next is disabled on the last page")
}

func TestListController_EmptyListStaysOnFirstPage(t *testing.T) {
	coll := newFakeCollection()
	c := newListController(t, NewStore(coll), nil)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))
	before := coll.lists.Load()

	require.NoError(t, c.SetPage(ctx, 5))
	require.NoError(t, c.PrevPage(ctx))

	assert.Equal(t, 1, c.State().Page)
	assert.Equal(t, before, coll.lists.Load())
}

func TestListController_DeleteEmptyingLastPageStepsBack(t *testing.T) {
	coll := newFakeCollection()
	coll.seed(t, numbered(11)...)
	c := newListController(t, NewStore(coll), nil)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))
	require.NoError(t, c.NextPage(ctx))

	s := c.State()
	require.Equal(t, 2, s.Page)
	require.Len(t, s.Items, 1)
	before := coll.lists.Load()

	require.NoError(t, c.Delete(ctx, s.Items[0].ID))

	s = c.State()
	assert.Equal(t, 1, s.Page)
	assert.Len(t, s.Items, 10)
	assert.Equal(t, 10, s.Total)
	assert.Equal(t, before+2, coll.lists.Load(), "empty page two, then page one")
	assert.EqualValues(t, 1, coll.deletes.Load())
}

func TestListController_MutationsResync(t *testing.T) {
	coll := newFakeCollection()
	seeded := coll.seed(t, pending("Buy milk"))
	c := newListController(t, NewStore(coll), nil)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	added, err := c.Add(ctx, model.NewTask{Title: "  Call mom "})
	require.NoError(t, err)
	assert.Equal(t, "Call mom", added.Title)
	assert.Equal(t, "u1", added.Owner)
	assert.Equal(t, []string{"Call mom", "Buy milk"}, titles(c.State().Items))

	require.NoError(t, c.ToggleStatus(ctx, seeded[0].ID))
	assert.Equal(t, model.StatusCompleted, coll.get(t, seeded[0].ID).Status)
	require.NoError(t, c.ToggleStatus(ctx, seeded[0].ID))
	assert.Equal(t, model.StatusPending, coll.get(t, seeded[0].ID).Status)

	title := "Buy oat milk"
	require.NoError(t, c.Update(ctx, seeded[0].ID, model.Patch{Title: &title}))
	assert.Contains(t, titles(c.State().Items), "Buy oat milk")

	_, err = c.Add(ctx, model.NewTask{Title: " "})
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.ErrorIs(t, c.State().Err, model.ErrValidation)
	assert.EqualValues(t, 1, coll.creates.Load(), "invalid task never reaches the gateway")
}

func TestListController_MutationFailureIsRecorded(t *testing.T) {
	coll := newFakeCollection()
	c := newListController(t, NewStore(coll), nil)
	ctx := context.Background()

	err := c.Delete(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, c.State().Err, model.ErrNotFound)

	err = c.ToggleStatus(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListController_ApplyAIEdit(t *testing.T) {
	due := model.NewDate(2026, time.October, 20)
	desc := "two litres"

	tests := []struct {
		name      string
		edit      model.Edit
		editErr   error
		wantErr   error
		wantTitle string
		wantDue   *model.Date
	}{
		{
			name:      "applies proposal",
			edit:      model.Edit{Title: "Buy oat milk", Description: &desc, DueDate: &due},
			wantTitle: "Buy oat milk",
			wantDue:   &due,
		},
		{
			name:      "empty title is rejected",
			edit:      model.Edit{Title: ""},
			wantErr:   model.ErrValidation,
			wantTitle: "Buy milk",
		},
		{
			name:      "blank title is rejected",
			edit:      model.Edit{Title: "   "},
			wantErr:   model.ErrValidation,
			wantTitle: "Buy milk",
		},
		{
			name:      "assistant failure",
			editErr:   errUnavailable,
			wantErr:   model.ErrTransport,
			wantTitle: "Buy milk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coll := newFakeCollection()
			task := coll.seed(t, pending("Buy milk"))[0]
			assistant := new(MockAssistant)
			assistant.On("ProposeEdit", mock.Anything, mock.MatchedBy(func(cur model.Task) bool {
				return cur.ID == task.ID
			}), "make it oat").Return(tt.edit, tt.editErr)

			c := newListController(t, NewStore(coll), assistant)
			ctx := context.Background()
			require.NoError(t, c.Refresh(ctx))

			_, err := c.ApplyAIEdit(ctx, task.ID, "make it oat")

			got := coll.get(t, task.ID)
			assert.Equal(t, tt.wantTitle, got.Title)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, c.State().Err, tt.wantErr)
				assert.Zero(t, coll.updates.Load())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, desc, got.Description)
			assert.Equal(t, tt.wantDue, got.DueDate)
			assistant.AssertExpectations(t)
		})
	}
}

func TestListController_ApplyAIEditNeedsInstruction(t *testing.T) {
	assistant := new(MockAssistant)
	c := newListController(t, NewStore(newFakeCollection()), assistant)

	_, err := c.ApplyAIEdit(context.Background(), "any", "  ")

	assert.ErrorIs(t, err, model.ErrValidation)
	assistant.AssertNotCalled(t, "ProposeEdit", mock.Anything, mock.Anything, mock.Anything)
}

func TestListController_ImportDocument(t *testing.T) {
	coll := newFakeCollection()
	assistant := new(MockAssistant)
	assistant.On("ExtractTasks", mock.Anything, "notes").Return([]model.Draft{
		{Title: "A", Description: "B"},
		{Title: "  "},
		{Title: "C"},
	}, nil)
	c := newListController(t, NewStore(coll), assistant)

	n, err := c.ImportDocument(context.Background(), "notes")

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	s := c.State()
	assert.Equal(t, []string{"C", "A"}, titles(s.Items))
	for _, task := range s.Items {
		assert.Equal(t, model.StatusPending, task.Status)
	}
}

func TestListController_ImportDocumentFailure(t *testing.T) {
	assistant := new(MockAssistant)
	assistant.On("ExtractTasks", mock.Anything, "notes").Return([]model.Draft(nil), errUnavailable)
	c := newListController(t, NewStore(newFakeCollection()), assistant)

	n, err := c.ImportDocument(context.Background(), "notes")

	assert.Zero(t, n)
	assert.True(t, errors.Is(err, model.ErrTransport))
}

func TestListController_RefreshesAfterBoardChange(t *testing.T) {
	coll := newFakeCollection()
	task := coll.seed(t, pending("Buy milk"))[0]
	store := NewStore(coll)
	c := newListController(t, store, nil)
	b := newBoard(t, store)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))
	require.NoError(t, b.Load(ctx))

	require.NoError(t, b.BeginDrag(task.ID))
	outcome, err := b.Drop(ctx, &Position{Column: model.StatusCompleted})
	require.NoError(t, err)
	require.Equal(t, Committed, outcome)

	assert.Eventually(t, func() bool {
		s := c.State()
		return len(s.Items) == 1 && s.Items[0].Status == model.StatusCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestListController_SeesChangesMadeElsewhere(t *testing.T) {
	coll := newFakeCollection()
	coll.seed(t, numbered(15)...)
	c := newListController(t, NewStore(coll), nil)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))
	require.NoError(t, c.SetPage(ctx, 2))

	coll.seed(t, pending("task 16"))
	before := coll.lists.Load()

	require.NoError(t, c.SetPage(ctx, 1))
	assert.Equal(t, before+1, coll.lists.Load(), "revisited page is fetched again")
	s := c.State()
	assert.Equal(t, 16, s.Total)
	assert.Equal(t, "task 16", s.Items[0].Title)

	coll.seed(t, pending("task 17"))
	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, before+2, coll.lists.Load())
	assert.Equal(t, 17, c.State().Total)
}

func TestListController_ParameterChangeSupersedesInFlightFetch(t *testing.T) {
	coll := newFakeCollection()
	coll.seed(t, pending("old errand"), pending("Buy milk"))
	entered := make(chan struct{})
	release := make(chan struct{})
	coll.setListHook(func(ctx context.Context, p model.ListParams) error {
		if p.Search == "old" {
			close(entered)
			<-release
		}
		return nil
	})
	c := newListController(t, NewStore(coll), nil)
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() { slow <- c.SetSearch(ctx, "old") }()
	<-entered

	c.mu.Lock()
	issued := c.seq
	c.mu.Unlock()

	require.NoError(t, c.SetSearch(ctx, "milk"))
	c.mu.Lock()
	assert.Equal(t, issued+2, c.seq, "the change itself retires the old fetch")
	c.mu.Unlock()

	close(release)
	require.NoError(t, <-slow)
	assert.Equal(t, []string{"Buy milk"}, titles(c.State().Items))
}
