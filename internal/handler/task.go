package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-timer-api/internal/model"
	"github.com/BuzzLyutic/task-timer-api/internal/operation"
	"github.com/BuzzLyutic/task-timer-api/pkg/respond"
)

type TaskHandler struct {
	ops    *operation.Facade
	logger *zap.Logger
}

func NewTaskHandler(ops *operation.Facade, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		ops:    ops,
		logger: logger,
	}
}

// Routes регистрирует все маршруты задач и дашборда
func (h *TaskHandler) Routes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Post("/{id}/start", h.StartTimer)
		r.Post("/{id}/stop", h.StopTimer)
	})
	r.Get("/dashboard/summary", h.Summary)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter model.TaskFilter
	if status := r.URL.Query().Get("status"); status != "" {
		s := model.Status(status)
		filter.Status = &s
	}
	filter.Search = r.URL.Query().Get("search")

	tasks, err := h.ops.ListTasks(r.Context(), filter)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req operation.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("failed to decode json", zap.Error(err))
		h.handleErrors(w, r, h.ops.Reject("/tasks", http.MethodPost, start, fmt.Sprintf("invalid json: %v", err)))
		return
	}

	task, err := h.ops.CreateTask(r.Context(), req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/tasks/%d", task.ID))
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rawID := chi.URLParam(r, "id")
	route := "/tasks/" + rawID + "/status"

	id, err := parseID(rawID)
	if err != nil {
		h.handleErrors(w, r, h.ops.Reject(route, http.MethodPatch, start, err.Error()))
		return
	}

	var req struct {
		Status model.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleErrors(w, r, h.ops.Reject(route, http.MethodPatch, start, "invalid json"))
		return
	}

	task, err := h.ops.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	h.timer(w, r, "start", h.ops.StartTimer)
}

func (h *TaskHandler) StopTimer(w http.ResponseWriter, r *http.Request) {
	h.timer(w, r, "stop", h.ops.StopTimer)
}

func (h *TaskHandler) Summary(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ops.Summary(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, stats)
}

type timerOp func(ctx context.Context, id int64) (model.Task, error)

func (h *TaskHandler) timer(w http.ResponseWriter, r *http.Request, action string, op timerOp) {
	start := time.Now()
	rawID := chi.URLParam(r, "id")

	id, err := parseID(rawID)
	if err != nil {
		h.handleErrors(w, r, h.ops.Reject("/tasks/"+rawID+"/"+action, http.MethodPost, start, err.Error()))
		return
	}

	task, err := op(r.Context(), id)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	var opErr *operation.Error
	if errors.As(err, &opErr) {
		if opErr.Code >= http.StatusInternalServerError {
			h.logger.Error("internal error", zap.Error(opErr.Err))
		}
		respond.Error(w, r, opErr.Code, opErr.Message)
		return
	}
	h.logger.Error("internal error", zap.Error(err))
	respond.Error(w, r, http.StatusInternalServerError, "internal server error")
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid task id")
	}
	return id, nil
}
