package controller

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

type DragState int

const (
	DragIdle DragState = iota
	DragDragging
	DragReconciling
)

func (s DragState) String() string {
	switch s {
	case DragDragging:
		return "dragging"
	case DragReconciling:
		return "reconciling"
	}
	return "idle"
}

// Outcome is how a drop ended.
type Outcome int

const (
	DroppedInvalid Outcome = iota
	Committed
	Reverted
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Reverted:
		return "reverted"
	}
	return "dropped-invalid"
}

// Position is a slot on the board. Columns map one to one onto statuses.
type Position struct {
	Column model.Status
	Index  int
}

// Board is the kanban view. Drops are applied locally first and rolled back
// when the status update fails.
type Board struct {
	store  *Store
	source string
	logger *zap.Logger

	mu       sync.Mutex
	columns  map[model.Status][]model.Task
	state    DragState
	dragID   string
	dragFrom Position
	stale    bool
	gen      uint64
	lastErr  error

	unsubscribe func()
}

func NewBoard(store *Store, logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Board{
		store:   store,
		source:  "board:" + uuid.NewString(),
		logger:  logger.Named("board"),
		columns: emptyColumns(),
	}
	b.unsubscribe = store.Subscribe(b.onEvent)
	return b
}

func (b *Board) Close() {
	b.unsubscribe()
}

// Load replaces the board with every task, newest first within each column.
// A load that raced a drop is fetched again so the drop is not overwritten.
func (b *Board) Load(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		b.mu.Lock()
		gen := b.gen
		b.mu.Unlock()

		columns, err := b.fetchColumns(ctx)
		if err != nil {
			b.mu.Lock()
			b.lastErr = err
			b.mu.Unlock()
			b.logger.Warn("load board", zap.Error(err))
			return err
		}

		b.mu.Lock()
		switch {
		case b.state != DragIdle:
			b.stale = true
		case b.gen != gen:
			b.mu.Unlock()
			if attempt < maxLoadAttempts {
				continue
			}
			b.logger.Debug("dropping board load overtaken by drops")
			return nil
		default:
			b.columns = columns
			b.stale = false
		}
		b.mu.Unlock()
		return nil
	}
}

const maxLoadAttempts = 3

func (b *Board) fetchColumns(ctx context.Context) (map[model.Status][]model.Task, error) {
	params := model.ListParams{
		Status:   model.FilterAll,
		Sort:     model.SortCreatedDesc,
		Page:     1,
		PageSize: model.MaxPageSize,
	}
	columns := emptyColumns()
	for {
		page, err := b.store.Fetch(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, t := range page.Items {
			columns[t.Status] = append(columns[t.Status], t)
		}
		if params.Page >= model.PageCount(page.Total, params.PageSize) {
			return columns, nil
		}
		params.Page++
	}
}

func (b *Board) Column(s model.Status) []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.columns[s])
}

func (b *Board) State() DragState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LastError is the failure behind the most recent revert or load, if any.
func (b *Board) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *Board) BeginDrag(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != DragIdle {
		return fmt.Errorf("%w: board is %s", model.ErrConflict, b.state)
	}
	pos, ok := b.locate(id)
	if !ok {
		return fmt.Errorf("%w: task %s is not on the board", model.ErrNotFound, id)
	}
	b.state = DragDragging
	b.dragID = id
	b.dragFrom = pos
	return nil
}

func (b *Board) CancelDrag() {
	b.mu.Lock()
	reload := b.finishLocked()
	b.mu.Unlock()
	b.reloadIf(reload)
}

// Drop ends the current drag at dst. A nil destination or the source slot is
// an invalid drop and touches nothing. Otherwise the task moves immediately
// and its status is written through the store; on failure the board returns
// to how it was before the drag.
func (b *Board) Drop(ctx context.Context, dst *Position) (Outcome, error) {
	b.mu.Lock()
	if b.state != DragDragging {
		b.mu.Unlock()
		return DroppedInvalid, fmt.Errorf("%w: no drag in progress", model.ErrConflict)
	}
	if dst == nil || *dst == b.dragFrom || !dst.Column.Valid() {
		reload := b.finishLocked()
		b.mu.Unlock()
		b.reloadIf(reload)
		return DroppedInvalid, nil
	}

	snapshot := cloneColumns(b.columns)
	id := b.dragID
	src := b.columns[b.dragFrom.Column]
	t := src[b.dragFrom.Index]
	b.columns[b.dragFrom.Column] = slices.Delete(slices.Clone(src), b.dragFrom.Index, b.dragFrom.Index+1)
	t.Status = dst.Column
	col := b.columns[dst.Column]
	idx := max(0, min(dst.Index, len(col)))
	b.columns[dst.Column] = slices.Insert(slices.Clone(col), idx, t)
	b.state = DragReconciling
	b.gen++
	b.mu.Unlock()

	err := b.store.Update(ctx, b.source, id, model.StatusPatch(dst.Column))

	b.mu.Lock()
	outcome := Committed
	if err != nil {
		b.columns = snapshot
		b.lastErr = err
		outcome = Reverted
		b.logger.Warn("status update failed, drop reverted", zap.String("task_id", id), zap.Error(err))
	} else {
		b.lastErr = nil
	}
	reload := b.finishLocked()
	b.mu.Unlock()
	b.reloadIf(reload)
	return outcome, err
}

func (b *Board) finishLocked() bool {
	b.state = DragIdle
	b.dragID = ""
	b.dragFrom = Position{}
	reload := b.stale
	b.stale = false
	return reload
}

func (b *Board) reloadIf(reload bool) {
	if !reload {
		return
	}
	if err := b.Load(context.Background()); err != nil {
		b.logger.Warn("deferred reload", zap.Error(err))
	}
}

func (b *Board) locate(id string) (Position, bool) {
	for _, s := range model.Statuses {
		for i, t := range b.columns[s] {
			if t.ID == id {
				return Position{Column: s, Index: i}, true
			}
		}
	}
	return Position{}, false
}

// onEvent reloads after changes made elsewhere, or marks the board stale
// while a drag holds it.
func (b *Board) onEvent(ev Event) {
	if ev.Source == b.source {
		return
	}
	b.mu.Lock()
	if b.state != DragIdle {
		b.stale = true
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	if err := b.Load(context.Background()); err != nil {
		b.logger.Warn("reload after change elsewhere", zap.Error(err))
	}
}

func emptyColumns() map[model.Status][]model.Task {
	columns := make(map[model.Status][]model.Task, len(model.Statuses))
	for _, s := range model.Statuses {
		columns[s] = nil
	}
	return columns
}

func cloneColumns(in map[model.Status][]model.Task) map[model.Status][]model.Task {
	out := make(map[model.Status][]model.Task, len(in))
	for s, tasks := range in {
		out[s] = slices.Clone(tasks)
	}
	return out
}
