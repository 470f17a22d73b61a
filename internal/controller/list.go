package controller

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// ListState is a snapshot of the list view.
type ListState struct {
	Search   string
	Status   model.StatusFilter
	Sort     model.SortKey
	Page     int
	PageSize int
	Items    []model.Task
	Total    int
	Loading  bool
	Err      error
}

func (s ListState) PageCount() int {
	return model.PageCount(s.Total, s.PageSize)
}

func (s ListState) CanPrev() bool {
	return s.Page > 1
}

func (s ListState) CanNext() bool {
	return s.Page < s.PageCount()
}

func (s ListState) params() model.ListParams {
	return model.ListParams{
		Status:   s.Status,
		Search:   s.Search,
		Sort:     s.Sort,
		Page:     s.Page,
		PageSize: s.PageSize,
	}
}

// ListController drives the paginated task list. Every parameter change
// triggers one fetch; a fetch that resolves after a newer one was issued is
// dropped.
type ListController struct {
	store     *Store
	assistant Assistant
	owner     string
	source    string
	logger    *zap.Logger

	mu    sync.Mutex
	state ListState
	seq   uint64

	unsubscribe func()
}

func NewListController(store *Store, assistant Assistant, owner string, logger *zap.Logger) *ListController {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ListController{
		store:     store,
		assistant: assistant,
		owner:     owner,
		source:    "list:" + uuid.NewString(),
		logger:    logger.Named("list"),
		state: ListState{
			Status:   model.FilterAll,
			Sort:     model.SortCreatedDesc,
			Page:     1,
			PageSize: model.DefaultPageSize,
		},
	}
	c.unsubscribe = store.Subscribe(c.onEvent)
	return c
}

// Close stops reacting to changes made elsewhere.
func (c *ListController) Close() {
	c.unsubscribe()
}

func (c *ListController) State() ListState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Items = slices.Clone(s.Items)
	return s
}

func (c *ListController) SetSearch(ctx context.Context, q string) error {
	return c.setParams(ctx, func(s *ListState) { s.Search = q })
}

func (c *ListController) SetStatusFilter(ctx context.Context, f model.StatusFilter) error {
	if f != model.FilterAll && !model.Status(f).Valid() {
		return model.ErrInvalidStatus
	}
	return c.setParams(ctx, func(s *ListState) { s.Status = f })
}

func (c *ListController) SetSort(ctx context.Context, k model.SortKey) error {
	if _, err := model.ParseSortKey(string(k)); err != nil || k == "" {
		return fmt.Errorf("%w: unknown sort key %q", model.ErrValidation, k)
	}
	return c.setParams(ctx, func(s *ListState) { s.Sort = k })
}

// setParams applies a filter change and starts over from the first page.
func (c *ListController) setParams(ctx context.Context, change func(*ListState)) error {
	c.mu.Lock()
	before := c.state.params()
	change(&c.state)
	c.state.Page = 1
	changed := c.state.params() != before
	if changed {
		// Fetches issued for the old parameters are stale from here on.
		c.seq++
	}
	c.mu.Unlock()

	if !changed {
		return nil
	}
	return c.Refresh(ctx)
}

// SetPage moves to page n, clamped to [1, max(pageCount, 1)].
func (c *ListController) SetPage(ctx context.Context, n int) error {
	c.mu.Lock()
	n = max(1, min(n, max(c.state.PageCount(), 1)))
	changed := n != c.state.Page
	c.state.Page = n
	if changed {
		c.seq++
	}
	c.mu.Unlock()

	if !changed {
		return nil
	}
	return c.Refresh(ctx)
}

func (c *ListController) NextPage(ctx context.Context) error {
	s := c.State()
	if !s.CanNext() {
		return nil
	}
	return c.SetPage(ctx, s.Page+1)
}

func (c *ListController) PrevPage(ctx context.Context) error {
	s := c.State()
	if !s.CanPrev() {
		return nil
	}
	return c.SetPage(ctx, s.Page-1)
}

// Refresh re-runs the current query. When the current page comes back empty
// past the first page it steps back and fetches again.
func (c *ListController) Refresh(ctx context.Context) error {
	for {
		again, err := c.fetch(ctx)
		if err != nil || !again {
			return err
		}
	}
}

func (c *ListController) fetch(ctx context.Context) (bool, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	params := c.state.params()
	c.state.Loading = true
	c.state.Err = nil
	c.mu.Unlock()

	page, err := c.store.Fetch(ctx, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		c.logger.Debug("discarding stale fetch", zap.Uint64("seq", seq), zap.Uint64("current", c.seq))
		return false, nil
	}
	c.state.Loading = false
	if err != nil {
		c.state.Err = err
		c.logger.Warn("fetch tasks", zap.Error(err), zap.Int("page", params.Page))
		return false, err
	}
	c.state.Items = page.Items
	c.state.Total = page.Total

	if len(page.Items) == 0 && c.state.Page > 1 {
		c.state.Page = max(1, min(c.state.Page-1, c.state.PageCount()))
		return true, nil
	}
	return false, nil
}

func (c *ListController) Add(ctx context.Context, n model.NewTask) (model.Task, error) {
	if n.Owner == "" {
		n.Owner = c.owner
	}
	if err := n.Validate(); err != nil {
		return model.Task{}, c.fail("add", err)
	}
	t, err := c.store.Create(ctx, c.source, n)
	if err != nil {
		return model.Task{}, c.fail("add", err)
	}
	return t, c.Refresh(ctx)
}

// ToggleStatus flips a listed task between pending and completed.
func (c *ListController) ToggleStatus(ctx context.Context, id string) error {
	t, err := c.find(id)
	if err != nil {
		return c.fail("toggle", err)
	}
	return c.update(ctx, "toggle", id, model.StatusPatch(t.Status.Toggled()))
}

func (c *ListController) Update(ctx context.Context, id string, p model.Patch) error {
	return c.update(ctx, "update", id, p)
}

func (c *ListController) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, c.source, id); err != nil {
		return c.fail("delete", err)
	}
	return c.Refresh(ctx)
}

// ApplyAIEdit asks the assistant to rewrite a listed task. A proposal without
// a title is rejected and the task is left as it was.
func (c *ListController) ApplyAIEdit(ctx context.Context, id, instruction string) (model.Edit, error) {
	if strings.TrimSpace(instruction) == "" {
		return model.Edit{}, c.fail("ai edit", fmt.Errorf("%w: instruction is required", model.ErrValidation))
	}
	t, err := c.find(id)
	if err != nil {
		return model.Edit{}, c.fail("ai edit", err)
	}
	edit, err := call(ctx, c.store.Timeout(), func(ctx context.Context) (model.Edit, error) {
		return c.assistant.ProposeEdit(ctx, t, instruction)
	})
	if err != nil {
		return model.Edit{}, c.fail("ai edit", err)
	}
	if strings.TrimSpace(edit.Title) == "" {
		return model.Edit{}, c.fail("ai edit", fmt.Errorf("%w: proposed edit has no title", model.ErrValidation))
	}
	return edit, c.update(ctx, "ai edit", id, edit.Patch())
}

// ImportDocument extracts tasks from free text and adds each as pending.
// It reports how many were created.
func (c *ListController) ImportDocument(ctx context.Context, document string) (int, error) {
	drafts, err := call(ctx, c.store.Timeout(), func(ctx context.Context) ([]model.Draft, error) {
		return c.assistant.ExtractTasks(ctx, document)
	})
	if err != nil {
		return 0, c.fail("import", err)
	}

	var createErr error
	created := 0
	for _, d := range drafts {
		n := d.NewTask(c.owner)
		if n.Validate() != nil {
			continue
		}
		if _, err := c.store.Create(ctx, c.source, n); err != nil {
			createErr = c.fail("import", err)
			break
		}
		created++
	}
	if created > 0 {
		if err := c.Refresh(ctx); err != nil {
			return created, err
		}
	}
	return created, createErr
}

func (c *ListController) update(ctx context.Context, op, id string, p model.Patch) error {
	if err := p.Validate(); err != nil {
		return c.fail(op, err)
	}
	if err := c.store.Update(ctx, c.source, id, p); err != nil {
		return c.fail(op, err)
	}
	return c.Refresh(ctx)
}

func (c *ListController) find(id string) (model.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.state.Items {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Task{}, fmt.Errorf("%w: task %s is not listed", model.ErrNotFound, id)
}

func (c *ListController) fail(op string, err error) error {
	c.mu.Lock()
	c.state.Err = err
	c.mu.Unlock()
	c.logger.Warn("task mutation failed", zap.String("op", op), zap.Error(err))
	return err
}

func (c *ListController) onEvent(ev Event) {
	if ev.Source == c.source {
		return
	}
	c.logger.Debug("refreshing after change elsewhere", zap.String("source", ev.Source), zap.String("op", string(ev.Op)))
	_ = c.Refresh(context.Background())
}
