package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/task-timer-api/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

const taskColumns = `id, user_id, name, description, status, timer_running, timer_started_at,
	elapsed_seconds, version, created_at, updated_at`

type TaskRepo struct { // Репозиторий для работы непосредственно с БД
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo { // Конструктор
	return &TaskRepo{
		pool: pool,
	}
}

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID, &t.UserID, &t.Name, &t.Description, &t.Status, &t.TimerRunning, &t.TimerStartedAt,
		&t.ElapsedSeconds, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func (r *TaskRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	created, err := scanTask(r.pool.QueryRow(ctx, `
		INSERT INTO tasks (user_id, name, description, status, timer_running, timer_started_at,
			elapsed_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+taskColumns,
		t.UserID, t.Name, t.Description, t.Status, t.TimerRunning, t.TimerStartedAt,
		t.ElapsedSeconds, t.CreatedAt, t.UpdatedAt,
	))
	if err != nil {
		return t, r.mapError(err)
	}
	return created, nil
}

func (r *TaskRepo) Get(ctx context.Context, id int64) (model.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, err
}

func (r *TaskRepo) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	// поиск по имени фильтруем в Go: lower() зависит от локали базы
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY id
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		if filter.MatchesName(t.Name) {
			tasks = append(tasks, t)
		}
	}
	return tasks, rows.Err()
}

func (r *TaskRepo) Update(ctx context.Context, t model.Task) (model.Task, error) {
	updated, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET status = $2, timer_running = $3, timer_started_at = $4, elapsed_seconds = $5,
			updated_at = $6, version = version + 1
		WHERE id = $1 AND version = $7
		RETURNING `+taskColumns,
		t.ID, t.Status, t.TimerRunning, t.TimerStartedAt, t.ElapsedSeconds, t.UpdatedAt, t.Version,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return t, r.missingOrConflict(ctx, t.ID)
	}
	if err != nil {
		return t, r.mapError(err)
	}
	return updated, nil
}

func (r *TaskRepo) GetStats(ctx context.Context) (model.Stats, error) {
	stats := model.NewStats()

	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*), COUNT(*) FILTER (WHERE timer_running), COALESCE(SUM(elapsed_seconds), 0)
		FROM tasks
		GROUP BY status
	`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status         model.Status
			count, running int
			elapsed        int64
		)
		if err := rows.Scan(&status, &count, &running, &elapsed); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
		stats.TotalTasks += count
		stats.RunningTimers += running
		stats.TotalElapsedSeconds += elapsed
	}
	return stats, rows.Err()
}

func (r *TaskRepo) InsertLog(ctx context.Context, entry model.RequestLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO request_logs (route, method, status_code, duration_ms, error_message)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.Route, entry.Method, entry.StatusCode, entry.DurationMs, entry.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// missingOrConflict различает удаленную строку и устаревшую версию
func (r *TaskRepo) missingOrConflict(ctx context.Context, id int64) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrorNotFound
	}
	return ErrorConflict
}

func (r *TaskRepo) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return ErrorConflict
		}
	}
	return err
}
