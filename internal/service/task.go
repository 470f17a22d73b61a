package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BuzzLyutic/taskboard/internal/calendar"
	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/repo"
)

// ListCache holds list pages and stats between mutations. Misses and cache
// errors fall through to the repository.
type ListCache interface {
	GetPage(ctx context.Context, p model.ListParams) (model.TaskPage, bool, error)
	SetPage(ctx context.Context, p model.ListParams, page model.TaskPage) error
	GetStats(ctx context.Context, today model.Date) (model.Stats, bool, error)
	SetStats(ctx context.Context, today model.Date, stats model.Stats) error
	Invalidate(ctx context.Context) error
}

type TaskService struct {
	repo   repo.TaskRepository
	cache  ListCache
	logger *zap.Logger
	now    func() time.Time

	creates singleflight.Group
}

type Option func(*TaskService)

func WithCache(c ListCache) Option {
	return func(s *TaskService) { s.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *TaskService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *TaskService) { s.now = now }
}

func NewTaskService(repo repo.TaskRepository, opts ...Option) *TaskService {
	s := &TaskService{repo: repo, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists t. Requests sharing a non-empty idempotency key resolve to the first task created under it.
func (s *TaskService) Create(ctx context.Context, t model.NewTask, idempKey string) (model.Task, error) {
	if err := t.Validate(); err != nil {
		return model.Task{}, err
	}
	if idempKey == "" {
		return s.create(ctx, t)
	}

	v, err, _ := s.creates.Do(idempKey, func() (any, error) {
		if existingID, err := s.repo.GetIdempotencyKey(ctx, idempKey); err == nil {
			return s.repo.Get(ctx, existingID)
		} else if !errors.Is(err, model.ErrNotFound) {
			return model.Task{}, err
		}

		created, err := s.create(ctx, t)
		if err != nil {
			return created, err
		}
		if err := s.repo.SaveIdempotencyKey(ctx, idempKey, created.ID); err != nil {
			return created, err
		}

		// Another instance may have won the key first.
		winner, err := s.repo.GetIdempotencyKey(ctx, idempKey)
		if err != nil || winner == created.ID {
			return created, err
		}
		if err := s.repo.Delete(ctx, created.ID); err != nil && !errors.Is(err, model.ErrNotFound) {
			s.logger.Warn("failed to drop duplicate task", zap.String("id", created.ID), zap.Error(err))
		}
		return s.repo.Get(ctx, winner)
	})
	return v.(model.Task), err
}

func (s *TaskService) create(ctx context.Context, t model.NewTask) (model.Task, error) {
	created, err := s.repo.Create(ctx, t)
	if err != nil {
		return created, err
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (model.Task, error) {
	return s.repo.Get(ctx, id)
}

func (s *TaskService) List(ctx context.Context, p model.ListParams) (model.TaskPage, error) {
	p = p.Normalize()
	if s.cache != nil {
		page, ok, err := s.cache.GetPage(ctx, p)
		if err != nil {
			s.logger.Warn("list cache read failed", zap.Error(err))
		} else if ok {
			return page, nil
		}
	}

	page, err := s.repo.List(ctx, p)
	if err != nil {
		return page, err
	}
	if s.cache != nil {
		if err := s.cache.SetPage(ctx, p, page); err != nil {
			s.logger.Warn("list cache write failed", zap.Error(err))
		}
	}
	return page, nil
}

func (s *TaskService) Update(ctx context.Context, id string, p model.Patch) (model.Task, error) {
	if err := p.Validate(); err != nil {
		return model.Task{}, err
	}
	updated, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return updated, err
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *TaskService) GetStats(ctx context.Context) (model.Stats, error) {
	today := model.DateOf(s.now())
	if s.cache != nil {
		if stats, ok, err := s.cache.GetStats(ctx, today); err == nil && ok {
			return stats, nil
		}
	}
	stats, err := s.repo.GetStats(ctx, today)
	if err != nil {
		return stats, err
	}
	if s.cache != nil {
		if err := s.cache.SetStats(ctx, today, stats); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// Calendar returns the month grid with every task due inside the visible range.
func (s *TaskService) Calendar(ctx context.Context, year int, month time.Month) (calendar.Month, error) {
	from, to := calendar.Range(year, month)
	tasks, err := s.repo.ListByDueDate(ctx, from, to)
	if err != nil {
		return calendar.Month{}, err
	}
	return calendar.Build(year, month, tasks), nil
}

// Today is the service clock truncated to a date; handlers use it for the overdue flag.
func (s *TaskService) Today() model.Date {
	return model.DateOf(s.now())
}

func (s *TaskService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}
