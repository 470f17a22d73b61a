package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

const jobColumns = `id::text, owner, document, status, created_count, error, created_at, updated_at`

type ImportRepo struct {
	pool *pgxpool.Pool
}

func NewImportRepo(pool *pgxpool.Pool) *ImportRepo {
	return &ImportRepo{pool: pool}
}

func (r *ImportRepo) Enqueue(ctx context.Context, owner, document string) (model.ImportJob, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO import_jobs (id, owner, document, status)
		VALUES ($1::uuid, $2, $3, 'queued')
		RETURNING `+jobColumns, uuid.NewString(), owner, document)
	return scanJob(row)
}

func (r *ImportRepo) GetJob(ctx context.Context, id string) (model.ImportJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM import_jobs WHERE id = $1::uuid`, id)
	return scanJob(row)
}

// Claim moves the oldest queued job to processing. Concurrent workers never claim the same row.
func (r *ImportRepo) Claim(ctx context.Context) (model.ImportJob, error) {
	row := r.pool.QueryRow(ctx, `
		WITH claimed AS (
			SELECT id
			FROM import_jobs
			WHERE status = 'queued'
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE import_jobs
		SET status = 'processing', updated_at = now()
		FROM claimed
		WHERE import_jobs.id = claimed.id
		RETURNING import_jobs.id::text, import_jobs.owner, import_jobs.document, import_jobs.status,
		          import_jobs.created_count, import_jobs.error, import_jobs.created_at, import_jobs.updated_at
	`)
	job, err := scanJob(row)
	if errors.Is(err, model.ErrNotFound) {
		return job, ErrNoJobs
	}
	return job, err
}

func (r *ImportRepo) Complete(ctx context.Context, id string, created int) error {
	return r.finish(ctx, `
		UPDATE import_jobs SET status = 'completed', created_count = $2, updated_at = now()
		WHERE id = $1::uuid
	`, id, created)
}

func (r *ImportRepo) Fail(ctx context.Context, id string, reason string) error {
	return r.finish(ctx, `
		UPDATE import_jobs SET status = 'failed', error = $2, updated_at = now()
		WHERE id = $1::uuid
	`, id, reason)
}

func (r *ImportRepo) Requeue(ctx context.Context, id string) error {
	return r.finish(ctx, `
		UPDATE import_jobs SET status = 'queued', updated_at = now()
		WHERE id = $1::uuid AND status = 'processing'
	`, id)
}

func (r *ImportRepo) finish(ctx context.Context, sql string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (model.ImportJob, error) {
	var (
		j      model.ImportJob
		status string
	)
	err := row.Scan(&j.ID, &j.Owner, &j.Document, &status, &j.Created, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	j.Status = model.ImportStatus(status)
	return j, mapError(err)
}
