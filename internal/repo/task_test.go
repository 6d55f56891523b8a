package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-timer-api/internal/model"
	"github.com/BuzzLyutic/task-timer-api/internal/repo"
	"github.com/BuzzLyutic/task-timer-api/internal/testdb"
	"github.com/BuzzLyutic/task-timer-api/internal/worker"
)

func newTask(name string, status model.Status) model.Task {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return model.Task{UserID: 1, Name: name, Status: status, CreatedAt: now, UpdatedAt: now}
}

func TestTaskRepo(t *testing.T) {
	pool, cleanup := testdb.Setup(t)
	defer cleanup()

	ctx := context.Background()
	r := repo.NewTaskRepo(pool)

	t.Run("create and get", func(t *testing.T) {
		testdb.Truncate(t, pool)

		created, err := r.Create(ctx, newTask("Write report", model.StatusTodo))
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, 1, created.Version)
		assert.False(t, created.TimerRunning)
		assert.Nil(t, created.TimerStartedAt)

		got, err := r.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Write report", got.Name)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := r.Get(ctx, 999999)
		assert.ErrorIs(t, err, repo.ErrorNotFound)
	})

	t.Run("list filters by status and search", func(t *testing.T) {
		testdb.Truncate(t, pool)

		_, err := r.Create(ctx, newTask("Write report", model.StatusDone))
		require.NoError(t, err)
		_, err = r.Create(ctx, newTask("Review 100% coverage", model.StatusTodo))
		require.NoError(t, err)

		done := model.StatusDone
		tasks, err := r.List(ctx, model.TaskFilter{Status: &done})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "Write report", tasks[0].Name)

		tasks, err = r.List(ctx, model.TaskFilter{Search: "REPORT"})
		require.NoError(t, err)
		assert.Len(t, tasks, 1)

		tasks, err = r.List(ctx, model.TaskFilter{Search: "100%"})
		require.NoError(t, err)
		assert.Len(t, tasks, 1)

		accented, err := r.Create(ctx, newTask("ÉTÉ report", model.StatusTodo))
		require.NoError(t, err)
		tasks, err = r.List(ctx, model.TaskFilter{Search: "été"})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, accented.ID, tasks[0].ID)

		tasks, err = r.List(ctx, model.TaskFilter{})
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		assert.Less(t, tasks[0].ID, tasks[1].ID)
	})

	t.Run("update checks version", func(t *testing.T) {
		testdb.Truncate(t, pool)

		created, err := r.Create(ctx, newTask("Timer", model.StatusTodo))
		require.NoError(t, err)

		started := time.Now().UTC().Truncate(time.Microsecond)
		created.TimerRunning = true
		created.TimerStartedAt = &started
		updated, err := r.Update(ctx, created)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)
		assert.True(t, updated.TimerRunning)
		require.NotNil(t, updated.TimerStartedAt)

		// stale version
		_, err = r.Update(ctx, created)
		assert.ErrorIs(t, err, repo.ErrorConflict)

		created.ID = 999999
		_, err = r.Update(ctx, created)
		assert.ErrorIs(t, err, repo.ErrorNotFound)
	})

	t.Run("stats and logs", func(t *testing.T) {
		testdb.Truncate(t, pool)

		a, err := r.Create(ctx, newTask("A", model.StatusTodo))
		require.NoError(t, err)
		_, err = r.Create(ctx, newTask("B", model.StatusDone))
		require.NoError(t, err)

		a.ElapsedSeconds = 90
		_, err = r.Update(ctx, a)
		require.NoError(t, err)

		stats, err := r.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalTasks)
		assert.Equal(t, 1, stats.ByStatus[model.StatusTodo])
		assert.Equal(t, 0, stats.ByStatus[model.StatusInProgress])
		assert.Equal(t, int64(90), stats.TotalElapsedSeconds)

		msg := "task not found"
		require.NoError(t, r.InsertLog(ctx, model.RequestLog{Route: "/tasks/1/start", Method: "POST", StatusCode: 404, DurationMs: 3, ErrorMessage: &msg}))

		var count int
		require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM request_logs WHERE status_code = 404").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("request logs through the worker pool", func(t *testing.T) {
		testdb.Truncate(t, pool)

		wp := worker.NewPool(r, zap.NewNop(), 3, 100, nil)
		wp.Start(ctx)
		defer wp.Stop()

		for i := 0; i < 20; i++ {
			require.NoError(t, wp.Submit(model.RequestLog{Route: "/tasks", Method: "GET", StatusCode: 200, DurationMs: int64(i)}))
		}

		ok := testdb.WaitForCondition(t, 5*time.Second, func() bool {
			var count int
			if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM request_logs").Scan(&count); err != nil {
				return false
			}
			return count == 20
		})
		assert.True(t, ok, "all submitted entries are persisted")
	})
}
