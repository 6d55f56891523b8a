package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/BuzzLyutic/task-timer-api/internal/clock"
	"github.com/BuzzLyutic/task-timer-api/internal/model"
	"github.com/BuzzLyutic/task-timer-api/internal/repo"
)

// maxUpdateAttempts ограничивает повторы при конфликте версий
const maxUpdateAttempts = 3

// ValidationError - ошибка входных данных, errors.Is(err, ErrValidation) == true
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type CreateTaskInput struct {
	UserID      int64
	Name        string `validate:"required,max=200"`
	Description string
	Status      model.Status `validate:"omitempty,oneof=todo in_progress done"`
}

type TaskService struct {
	repo     repo.TaskRepository
	clock    clock.Clock
	locks    *keyedMutex
	validate *validator.Validate
}

func NewTaskService(repo repo.TaskRepository, clk clock.Clock) *TaskService {
	if clk == nil {
		clk = clock.System{}
	}
	return &TaskService{
		repo:     repo,
		clock:    clk,
		locks:    newKeyedMutex(),
		validate: validator.New(),
	}
}

func (s *TaskService) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "invalid status"}
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, filter)
}

func (s *TaskService) Get(ctx context.Context, id int64) (model.Task, error) {
	t, err := s.repo.Get(ctx, id)
	if errors.Is(err, repo.ErrorNotFound) {
		return t, ErrNotFound
	}
	return t, err
}

func (s *TaskService) Create(ctx context.Context, in CreateTaskInput) (model.Task, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validateInput(in); err != nil { // Валидация введенных данных
		return model.Task{}, err
	}
	if in.Status == "" {
		in.Status = model.StatusTodo
	}

	now := s.clock.Now()
	task, err := s.repo.Create(ctx, model.Task{
		UserID:      in.UserID,
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (s *TaskService) UpdateStatus(ctx context.Context, id int64, status model.Status) (model.Task, error) {
	if status == "" {
		return model.Task{}, &ValidationError{Field: "status", Message: "status is required"}
	}
	if !status.Valid() {
		return model.Task{}, &ValidationError{Field: "status", Message: "invalid status"}
	}

	return s.mutate(ctx, id, func(t *model.Task, now time.Time) error {
		t.Status = status
		return nil
	})
}

func (s *TaskService) StartTimer(ctx context.Context, id int64) (model.Task, error) {
	return s.mutate(ctx, id, func(t *model.Task, now time.Time) error {
		if t.TimerRunning {
			return ErrTimerAlreadyRunning
		}
		t.TimerRunning = true
		t.TimerStartedAt = &now
		return nil
	})
}

func (s *TaskService) StopTimer(ctx context.Context, id int64) (model.Task, error) {
	return s.mutate(ctx, id, func(t *model.Task, now time.Time) error {
		if !t.TimerRunning || t.TimerStartedAt == nil {
			return ErrTimerNotRunning
		}
		t.ElapsedSeconds += elapsedSeconds(*t.TimerStartedAt, now)
		t.TimerRunning = false
		t.TimerStartedAt = nil
		return nil
	})
}

func (s *TaskService) GetStats(ctx context.Context) (model.Stats, error) {
	return s.repo.GetStats(ctx)
}

// mutate применяет fn к задаче под блокировкой её id и сохраняет результат.
// Если fn вернула ошибку, в хранилище ничего не пишется.
func (s *TaskService) mutate(ctx context.Context, id int64, fn func(t *model.Task, now time.Time) error) (model.Task, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return model.Task{}, err
	}

	for attempt := 1; ; attempt++ {
		t, err := s.repo.Get(ctx, id)
		if errors.Is(err, repo.ErrorNotFound) {
			return model.Task{}, ErrNotFound
		}
		if err != nil {
			return model.Task{}, fmt.Errorf("get task %d: %w", id, err)
		}

		now := s.clock.Now()
		if err := fn(&t, now); err != nil {
			return model.Task{}, err
		}
		t.UpdatedAt = now

		updated, err := s.repo.Update(ctx, t)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, repo.ErrorConflict) && attempt < maxUpdateAttempts:
			// другой процесс успел обновить строку - перечитываем
			continue
		case errors.Is(err, repo.ErrorNotFound):
			return model.Task{}, ErrNotFound
		default:
			return model.Task{}, fmt.Errorf("update task %d: %w", id, err)
		}
	}
}

func (s *TaskService) validateInput(in CreateTaskInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate task: %w", err)
	}

	e := verrs[0]
	switch {
	case e.StructField() == "Name" && e.Tag() == "required":
		return &ValidationError{Field: "name", Message: "task name is required"}
	case e.StructField() == "Name" && e.Tag() == "max":
		return &ValidationError{Field: "name", Message: "task name is too long"}
	case e.StructField() == "Status":
		return &ValidationError{Field: "status", Message: "invalid status"}
	}
	return &ValidationError{Field: strings.ToLower(e.StructField()), Message: fmt.Sprintf("invalid %s", strings.ToLower(e.StructField()))}
}

// elapsedSeconds округляет вниз до секунд, часы назад дают 0
func elapsedSeconds(started, now time.Time) int64 {
	d := now.Sub(started)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
