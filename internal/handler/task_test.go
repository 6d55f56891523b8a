package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-timer-api/internal/clock"
	"github.com/BuzzLyutic/task-timer-api/internal/model"
	"github.com/BuzzLyutic/task-timer-api/internal/operation"
	"github.com/BuzzLyutic/task-timer-api/internal/repo/memory"
	"github.com/BuzzLyutic/task-timer-api/internal/reqlog"
	"github.com/BuzzLyutic/task-timer-api/internal/service"
	"github.com/BuzzLyutic/task-timer-api/internal/worker"
)

type testServer struct {
	router http.Handler
	store  *memory.Store
	pool   *worker.Pool
	clock  *clock.Manual
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.New()
	clk := clock.NewManual(time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC))
	logger := zap.NewNop()

	pool := worker.NewPool(store, logger, 2, 100, nil)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	ops := operation.NewFacade(
		service.NewTaskService(store, clk),
		reqlog.New(logger, pool, nil),
		1,
	)

	return &testServer{
		router: NewRouter(NewTaskHandler(ops, logger)),
		store:  store,
		pool:   pool,
		clock:  clk,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// logs останавливает пул, чтобы все записи журнала дошли до хранилища
func (s *testServer) logs() []model.RequestLog {
	s.pool.Stop()
	return s.store.Logs()
}

func (s *testServer) create(t *testing.T, name string) model.Task {
	t.Helper()
	w := s.do(t, http.MethodPost, "/tasks", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.Task](t, w)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

func TestTaskHandler_Create(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{
			name:     "successful creation",
			body:     map[string]string{"name": "Write report", "description": "Q2"},
			wantCode: http.StatusCreated,
		},
		{
			name:     "explicit status",
			body:     map[string]string{"name": "Review", "status": "in_progress"},
			wantCode: http.StatusCreated,
		},
		{
			name:     "missing name",
			body:     map[string]string{"description": "no name"},
			wantCode: http.StatusBadRequest,
			wantErr:  "task name is required",
		},
		{
			name:     "invalid status",
			body:     map[string]string{"name": "x", "status": "archived"},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid status",
		},
		{
			name:     "malformed json",
			body:     "{not json",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupServer(t)

			w := s.do(t, http.MethodPost, "/tasks", tt.body)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			if tt.wantCode == http.StatusCreated {
				task := decode[model.Task](t, w)
				assert.NotZero(t, task.ID)
				assert.Equal(t, int64(1), task.UserID)
				assert.Zero(t, task.ElapsedSeconds)
				assert.False(t, task.TimerRunning)
				assert.Equal(t, fmt.Sprintf("/tasks/%d", task.ID), w.Header().Get("Location"))
			} else if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, errorOf(t, w))
			}

			logs := s.logs()
			require.Len(t, logs, 1, "every request is logged once")
			assert.Equal(t, "/tasks", logs[0].Route)
			assert.Equal(t, http.MethodPost, logs[0].Method)
			assert.Equal(t, tt.wantCode, logs[0].StatusCode)
		})
	}
}

func TestTaskHandler_List(t *testing.T) {
	s := setupServer(t)

	s.create(t, "Write report")
	second := s.create(t, "Plan sprint")
	s.create(t, "Report review")

	w := s.do(t, http.MethodPatch, fmt.Sprintf("/tasks/%d/status", second.ID), map[string]string{"status": "done"})
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("all tasks", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/tasks", nil)
		require.Equal(t, http.StatusOK, w.Code)
		tasks := decode[[]model.Task](t, w)
		require.Len(t, tasks, 3)
		assert.Less(t, tasks[0].ID, tasks[1].ID)
	})

	t.Run("filter by status", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/tasks?status=done", nil)
		require.Equal(t, http.StatusOK, w.Code)
		tasks := decode[[]model.Task](t, w)
		require.Len(t, tasks, 1)
		assert.Equal(t, second.ID, tasks[0].ID)
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/tasks?search=REPORT", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]model.Task](t, w), 2)
	})

	t.Run("no match gives empty array", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/tasks?search=zzz", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("unknown status", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/tasks?status=archived", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid status", errorOf(t, w))
	})
}

func TestTaskHandler_UpdateStatus(t *testing.T) {
	s := setupServer(t)
	task := s.create(t, "Status")
	path := fmt.Sprintf("/tasks/%d/status", task.ID)

	t.Run("valid transition", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, path, map[string]string{"status": "in_progress"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, model.StatusInProgress, decode[model.Task](t, w).Status)
	})

	t.Run("missing status", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, path, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "status is required", errorOf(t, w))
	})

	t.Run("unknown task", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/tasks/999/status", map[string]string{"status": "done"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "task not found", errorOf(t, w))
	})

	t.Run("bad id", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/tasks/abc/status", map[string]string{"status": "done"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid task id", errorOf(t, w))
	})

	t.Run("malformed json", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, path, "[")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	patches := 0
	for _, l := range s.logs() {
		if l.Method == http.MethodPatch {
			patches++
		}
	}
	assert.Equal(t, 5, patches)
}

func TestTaskHandler_Timer(t *testing.T) {
	s := setupServer(t)
	task := s.create(t, "Timed")
	start := fmt.Sprintf("/tasks/%d/start", task.ID)
	stop := fmt.Sprintf("/tasks/%d/stop", task.ID)

	w := s.do(t, http.MethodPost, stop, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "timer not running", errorOf(t, w))

	w = s.do(t, http.MethodPost, start, nil)
	require.Equal(t, http.StatusOK, w.Code)
	running := decode[model.Task](t, w)
	assert.True(t, running.TimerRunning)
	require.NotNil(t, running.TimerStartedAt)

	w = s.do(t, http.MethodPost, start, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "timer already running", errorOf(t, w))

	s.clock.Advance(90*time.Second + 700*time.Millisecond)

	w = s.do(t, http.MethodPost, stop, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stopped := decode[model.Task](t, w)
	assert.False(t, stopped.TimerRunning)
	assert.Nil(t, stopped.TimerStartedAt)
	assert.Equal(t, int64(90), stopped.ElapsedSeconds)

	w = s.do(t, http.MethodPost, "/tasks/404/start", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/tasks/-1/stop", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid task id", errorOf(t, w))

	logs := s.logs()
	require.Len(t, logs, 7)
	codes := make([]int, 0, len(logs))
	for _, l := range logs {
		codes = append(codes, l.StatusCode)
	}
	assert.ElementsMatch(t, []int{201, 400, 200, 400, 200, 404, 400}, codes)
}

func TestTaskHandler_Summary(t *testing.T) {
	s := setupServer(t)
	a := s.create(t, "A")
	s.create(t, "B")

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/start", a.ID), nil).Code)
	s.clock.Advance(30 * time.Second)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/stop", a.ID), nil).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/start", a.ID), nil).Code)

	w := s.do(t, http.MethodGet, "/dashboard/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	stats := decode[model.Stats](t, w)
	assert.Equal(t, 2, stats.TotalTasks)
	assert.Equal(t, 2, stats.ByStatus[model.StatusTodo])
	assert.Equal(t, 0, stats.ByStatus[model.StatusDone])
	assert.Equal(t, 1, stats.RunningTimers)
	assert.Equal(t, int64(30), stats.TotalElapsedSeconds)
}

func TestRouter_HealthIsNotLogged(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Empty(t, s.logs())
}

func TestRouter_UnknownRoute(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodDelete, "/tasks", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Empty(t, s.logs())
}
