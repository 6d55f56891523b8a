package operation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BuzzLyutic/task-timer-api/internal/model"
	"github.com/BuzzLyutic/task-timer-api/internal/service"
)

const internalMessage = "internal server error"

// Error - то, что видит клиент: код и безопасное сообщение
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

type RequestLogger interface {
	LogRequest(route, method string, statusCode int, durationMs int64, errorMessage string)
}

type CreateTaskRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Status      model.Status `json:"status"`
}

// Facade - вход для всех операций с задачами. Каждый вызов замеряется
// и пишется в журнал ровно один раз
type Facade struct {
	tasks  *service.TaskService
	log    RequestLogger
	userID int64
}

func NewFacade(tasks *service.TaskService, log RequestLogger, userID int64) *Facade {
	return &Facade{
		tasks:  tasks,
		log:    log,
		userID: userID,
	}
}

func (f *Facade) ListTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	return run(f, "/tasks", http.MethodGet, http.StatusOK, func() ([]model.Task, error) {
		return f.tasks.List(ctx, filter)
	})
}

func (f *Facade) CreateTask(ctx context.Context, req CreateTaskRequest) (model.Task, error) {
	return run(f, "/tasks", http.MethodPost, http.StatusCreated, func() (model.Task, error) {
		return f.tasks.Create(ctx, service.CreateTaskInput{
			UserID:      f.userID,
			Name:        req.Name,
			Description: req.Description,
			Status:      req.Status,
		})
	})
}

func (f *Facade) UpdateStatus(ctx context.Context, id int64, status model.Status) (model.Task, error) {
	return run(f, fmt.Sprintf("/tasks/%d/status", id), http.MethodPatch, http.StatusOK, func() (model.Task, error) {
		return f.tasks.UpdateStatus(ctx, id, status)
	})
}

func (f *Facade) StartTimer(ctx context.Context, id int64) (model.Task, error) {
	return run(f, fmt.Sprintf("/tasks/%d/start", id), http.MethodPost, http.StatusOK, func() (model.Task, error) {
		return f.tasks.StartTimer(ctx, id)
	})
}

func (f *Facade) StopTimer(ctx context.Context, id int64) (model.Task, error) {
	return run(f, fmt.Sprintf("/tasks/%d/stop", id), http.MethodPost, http.StatusOK, func() (model.Task, error) {
		return f.tasks.StopTimer(ctx, id)
	})
}

func (f *Facade) Summary(ctx context.Context) (model.Stats, error) {
	return run(f, "/dashboard/summary", http.MethodGet, http.StatusOK, func() (model.Stats, error) {
		return f.tasks.GetStats(ctx)
	})
}

// Reject журналирует неразобранный ввод (битый JSON, плохой id) как 400
func (f *Facade) Reject(route, method string, started time.Time, message string) error {
	f.log.LogRequest(route, method, http.StatusBadRequest, time.Since(started).Milliseconds(), message)
	return &Error{Code: http.StatusBadRequest, Message: message, Err: service.ErrValidation}
}

// Code переводит ошибку сервиса в код ответа
func Code(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTimerAlreadyRunning), errors.Is(err, service.ErrTimerNotRunning):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func run[T any](f *Facade, route, method string, okCode int, op func() (T, error)) (T, error) {
	start := time.Now()

	res, err := op()
	if err == nil {
		f.log.LogRequest(route, method, okCode, time.Since(start).Milliseconds(), "")
		return res, nil
	}

	code := Code(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		message = internalMessage
	}
	// в журнал уходит исходный текст ошибки, клиенту - только безопасный
	f.log.LogRequest(route, method, code, time.Since(start).Milliseconds(), err.Error())

	return res, &Error{Code: code, Message: message, Err: err}
}
