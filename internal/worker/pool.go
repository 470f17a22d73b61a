// Package worker runs background document imports.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/repo"
)

// Extractor turns a document into task drafts.
type Extractor interface {
	ExtractTasks(ctx context.Context, document string) ([]model.Draft, error)
}

// TaskCreator persists drafts. Satisfied by *service.TaskService.
type TaskCreator interface {
	Create(ctx context.Context, t model.NewTask, idempKey string) (model.Task, error)
}

type Pool struct {
	queue     repo.ImportQueue
	extractor Extractor
	tasks     TaskCreator
	logger    *zap.Logger
	count     int
	interval  time.Duration

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

func NewPool(queue repo.ImportQueue, extractor Extractor, tasks TaskCreator, logger *zap.Logger, count int) *Pool {
	if count < 1 {
		count = 1
	}
	return &Pool{
		queue:     queue,
		extractor: extractor,
		tasks:     tasks,
		logger:    logger,
		count:     count,
		interval:  time.Second,
		stop:      make(chan struct{}),
	}
}

// WithInterval sets how often idle workers poll the queue.
func (p *Pool) WithInterval(d time.Duration) *Pool {
	p.interval = d
	return p
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("starting import workers", zap.Int("workers", p.count))

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals every worker and waits for in-flight jobs to finish or requeue.
func (p *Pool) Stop() {
	p.once.Do(func() {
		p.logger.Info("stopping import workers")
		close(p.stop)
	})
	p.wg.Wait()
	p.logger.Info("import workers stopped")
}

func (p *Pool) worker(parent context.Context, id int) {
	defer p.wg.Done()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for {
				err := p.processNext(ctx, id)
				if errors.Is(err, repo.ErrNoJobs) || ctx.Err() != nil {
					break
				}
				if err != nil {
					p.logger.Error("import worker error", zap.Int("worker", id), zap.Error(err))
					break
				}
			}
		}
	}
}

func (p *Pool) processNext(ctx context.Context, workerID int) error {
	job, err := p.queue.Claim(ctx)
	if err != nil {
		return err
	}
	log := p.logger.With(zap.Int("worker", workerID), zap.String("job_id", job.ID))
	log.Info("processing import", zap.Int("bytes", len(job.Document)))

	start := time.Now()
	drafts, err := p.extractor.ExtractTasks(ctx, job.Document)
	if ctx.Err() != nil {
		return p.requeue(job.ID, log)
	}
	if err != nil {
		return p.fail(job.ID, err, log)
	}

	created := 0
	for i, d := range drafts {
		// Keys make a retried job skip drafts it already created.
		key := fmt.Sprintf("import:%s:%d", job.ID, i)
		if _, err := p.tasks.Create(ctx, d.NewTask(job.Owner), key); err != nil {
			if ctx.Err() != nil {
				return p.requeue(job.ID, log)
			}
			if errors.Is(err, model.ErrValidation) {
				log.Warn("skipping invalid draft", zap.Int("index", i), zap.Error(err))
				continue
			}
			return p.fail(job.ID, err, log)
		}
		created++
	}

	if err := p.queue.Complete(ctx, job.ID, created); err != nil {
		return fmt.Errorf("complete import %s: %w", job.ID, err)
	}
	log.Info("import completed", zap.Int("created", created), zap.Duration("took", time.Since(start)))
	return nil
}

func (p *Pool) requeue(id string, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.queue.Requeue(ctx, id); err != nil {
		return fmt.Errorf("requeue import %s: %w", id, err)
	}
	log.Info("import requeued on shutdown")
	return context.Canceled
}

func (p *Pool) fail(id string, cause error, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Warn("import failed", zap.Error(cause))
	if err := p.queue.Fail(ctx, id, cause.Error()); err != nil {
		return fmt.Errorf("mark import %s failed: %w", id, err)
	}
	return nil
}
