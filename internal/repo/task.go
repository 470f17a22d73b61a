package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

const taskColumns = `id::text, title, description, status, due_date, created_at, owner`

// Ties always fall back to id so paging is stable.
var orderBy = map[model.SortKey]string{
	model.SortCreatedDesc: `created_at DESC, id ASC`,
	model.SortCreatedAsc:  `created_at ASC, id ASC`,
	model.SortDueDate:     `due_date ASC NULLS LAST, id ASC`,
	model.SortTitle:       `title COLLATE "C" ASC, id ASC`,
}

const listWhere = `
	WHERE ($1::text IS NULL OR status = $1)
	  AND ($2::text IS NULL OR title ILIKE $2 ESCAPE '\' OR description ILIKE $2 ESCAPE '\')
`

type TaskRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{
		pool: pool,
		now:  time.Now,
	}
}

func (r *TaskRepo) Create(ctx context.Context, t model.NewTask) (model.Task, error) {
	status := t.Status
	if status == "" {
		status = model.StatusPending
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, title, description, status, due_date, owner, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
		RETURNING `+taskColumns,
		uuid.NewString(), strings.TrimSpace(t.Title), t.Description, string(status), toPgDate(t.DueDate), t.Owner, r.now().UTC(),
	)
	task, err := scanTask(row)
	return task, mapError(err)
}

func (r *TaskRepo) Get(ctx context.Context, id string) (model.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1::uuid`, id)
	task, err := scanTask(row)
	return task, mapError(err)
}

func (r *TaskRepo) List(ctx context.Context, p model.ListParams) (model.TaskPage, error) {
	p = p.Normalize()
	status, search := listArgs(p)

	var page model.TaskPage
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tasks`+listWhere, status, search).Scan(&page.Total); err != nil {
		return page, mapError(err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks`+listWhere+`
		ORDER BY `+orderBy[p.Sort]+`
		LIMIT $3 OFFSET $4
	`, status, search, p.PageSize, p.Offset())
	if err != nil {
		return page, mapError(err)
	}
	page.Items, err = collectTasks(rows, p.PageSize)
	return page, mapError(err)
}

func (r *TaskRepo) ListByDueDate(ctx context.Context, from, to model.Date) ([]model.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE due_date BETWEEN $1 AND $2
		ORDER BY due_date ASC, id ASC
	`, toPgDate(&from), toPgDate(&to))
	if err != nil {
		return nil, mapError(err)
	}
	tasks, err := collectTasks(rows, 0)
	return tasks, mapError(err)
}

func (r *TaskRepo) Update(ctx context.Context, id string, p model.Patch) (model.Task, error) {
	args := []any{id}
	var sets []string
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Title != nil {
		set("title", strings.TrimSpace(*p.Title))
	}
	if p.Description != nil {
		set("description", *p.Description)
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.DueDateSet {
		set("due_date", toPgDate(p.DueDate))
	}
	if len(sets) == 0 {
		return model.Task{}, model.ErrEmptyPatch
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE tasks SET `+strings.Join(sets, ", ")+`
		WHERE id = $1::uuid
		RETURNING `+taskColumns, args...)
	task, err := scanTask(row)
	return task, mapError(err)
}

func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1::uuid", id)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *TaskRepo) SaveIdempotencyKey(ctx context.Context, key string, taskID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, resource_id) VALUES ($1, $2::uuid)
		ON CONFLICT (key) DO NOTHING
	`, key, taskID)
	return mapError(err)
}

func (r *TaskRepo) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		SELECT resource_id::text FROM idempotency_keys WHERE key = $1
	`, key).Scan(&id)
	return id, mapError(err)
}

func (r *TaskRepo) GetStats(ctx context.Context, today model.Date) (model.Stats, error) {
	stats := model.Stats{ByStatus: make(map[string]int, len(model.Statuses))}
	for _, s := range model.Statuses {
		stats.ByStatus[string(s)] = 0
	}

	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
	if err != nil {
		return stats, mapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, mapError(err)
		}
		stats.ByStatus[status] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return stats, mapError(err)
	}

	err = r.pool.QueryRow(ctx, `SELECT count(*) FROM tasks WHERE due_date < $1`, toPgDate(&today)).Scan(&stats.Overdue)
	return stats, mapError(err)
}

func listArgs(p model.ListParams) (status, search *string) {
	if p.Status != model.FilterAll {
		s := string(p.Status)
		status = &s
	}
	if p.Search != "" {
		s := "%" + escapeLike(p.Search) + "%"
		search = &s
	}
	return status, search
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanTask(row pgx.Row) (model.Task, error) {
	var (
		t      model.Task
		status string
		due    pgtype.Date
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &due, &t.CreatedAt, &t.Owner)
	if err != nil {
		return t, err
	}
	t.Status = model.Status(status)
	t.DueDate = fromPgDate(due)
	return t, nil
}

func collectTasks(rows pgx.Rows, capacity int) ([]model.Task, error) {
	defer rows.Close()
	tasks := make([]model.Task, 0, capacity)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func toPgDate(d *model.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time, Valid: true}
}

func fromPgDate(d pgtype.Date) *model.Date {
	if !d.Valid {
		return nil
	}
	v := model.DateOf(d.Time)
	return &v
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return model.ErrConflict
		case "23514":
			return fmt.Errorf("%w: %s", model.ErrValidation, pgErr.ConstraintName)
		case "22P02": // malformed uuid
			return model.ErrNotFound
		}
	}
	return err
}
