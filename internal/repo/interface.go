package repo

import (
	"context"

	"github.com/BuzzLyutic/task-timer-api/internal/model"
)

// TaskRepository определяет интерфейс для работы с задачами
type TaskRepository interface {
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Get(ctx context.Context, id int64) (model.Task, error)
	List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	// Update пишет все изменяемые поля одной операцией, только если версия совпадает
	Update(ctx context.Context, t model.Task) (model.Task, error)
	GetStats(ctx context.Context) (model.Stats, error)
}

// LogRepository - журнал запросов, только вставка
type LogRepository interface {
	InsertLog(ctx context.Context, entry model.RequestLog) error
}

type Repository interface {
	TaskRepository
	LogRepository
}
