package controller

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpReset  Op = "reset"
)

// Event announces that cached pages were dropped after a mutation.
type Event struct {
	Source string
	Op     Op
	TaskID string
}

type Handler func(Event)

// Store is a read-through cache of list pages over a Collection. Mutations
// made through it drop every cached page and notify subscribers.
type Store struct {
	coll    Collection
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	pages map[model.ListParams]model.TaskPage
	gen   uint64
	group singleflight.Group

	subMu  sync.RWMutex
	subs   map[int]Handler
	nextID int
}

type StoreOption func(*Store)

func WithTimeout(d time.Duration) StoreOption {
	return func(s *Store) { s.timeout = d }
}

func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

func NewStore(coll Collection, opts ...StoreOption) *Store {
	s := &Store{
		coll:    coll,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
		pages:   make(map[model.ListParams]model.TaskPage),
		subs:    make(map[int]Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout is the deadline applied to each gateway call.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// List serves p from the last fetched page, fetching only on a miss. Views
// that must show the remote state use Fetch.
func (s *Store) List(ctx context.Context, p model.ListParams) (model.TaskPage, error) {
	p = p.Normalize()

	s.mu.Lock()
	if page, ok := s.pages[p]; ok {
		s.mu.Unlock()
		return clonePage(page), nil
	}
	gen := s.gen
	s.mu.Unlock()

	return s.fetch(ctx, gen, p)
}

// Fetch always asks the collection for p and refreshes the cached page.
// Concurrent fetches of the same page share one call.
func (s *Store) Fetch(ctx context.Context, p model.ListParams) (model.TaskPage, error) {
	p = p.Normalize()

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	return s.fetch(ctx, gen, p)
}

// fetch runs detached from ctx so one caller giving up does not fail the
// others sharing the call. The store timeout still bounds it.
func (s *Store) fetch(ctx context.Context, gen uint64, p model.ListParams) (model.TaskPage, error) {
	key := fmt.Sprintf("%d|%+v", gen, p)
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		page, err := call(detached, s.timeout, func(ctx context.Context) (model.TaskPage, error) {
			return s.coll.List(ctx, p)
		})
		if err != nil {
			return page, err
		}
		s.mu.Lock()
		if s.gen == gen {
			s.pages[p] = page
		}
		s.mu.Unlock()
		return page, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.TaskPage{}, res.Err
		}
		return clonePage(res.Val.(model.TaskPage)), nil
	case <-ctx.Done():
		return model.TaskPage{}, fmt.Errorf("%w: %w", model.ErrTransport, ctx.Err())
	}
}

func (s *Store) Create(ctx context.Context, source string, n model.NewTask) (model.Task, error) {
	t, err := call(ctx, s.timeout, func(ctx context.Context) (model.Task, error) {
		return s.coll.Create(ctx, n)
	})
	if err != nil {
		return t, err
	}
	s.Invalidate(Event{Source: source, Op: OpCreate, TaskID: t.ID})
	return t, nil
}

func (s *Store) Update(ctx context.Context, source, id string, p model.Patch) error {
	err := callErr(ctx, s.timeout, func(ctx context.Context) error {
		return s.coll.Update(ctx, id, p)
	})
	if err != nil {
		return err
	}
	s.Invalidate(Event{Source: source, Op: OpUpdate, TaskID: id})
	return nil
}

func (s *Store) Delete(ctx context.Context, source, id string) error {
	err := callErr(ctx, s.timeout, func(ctx context.Context) error {
		return s.coll.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.Invalidate(Event{Source: source, Op: OpDelete, TaskID: id})
	return nil
}

// Invalidate drops every cached page and publishes ev. Fetches already in
// flight are not cached when they land.
func (s *Store) Invalidate(ev Event) {
	s.mu.Lock()
	s.gen++
	clear(s.pages)
	s.mu.Unlock()
	s.publish(ev)
}

// Subscribe registers h for invalidation events and returns its cancel func.
// Handlers run on their own goroutine.
func (s *Store) Subscribe(h Handler) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = h
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) publish(ev Event) {
	s.subMu.RLock()
	handlers := make([]Handler, 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.subMu.RUnlock()

	for _, h := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("store subscriber panicked", zap.Any("panic", r), zap.String("op", string(ev.Op)))
				}
			}()
			h(ev)
		}(h)
	}
}

func clonePage(p model.TaskPage) model.TaskPage {
	return model.TaskPage{Items: slices.Clone(p.Items), Total: p.Total}
}
