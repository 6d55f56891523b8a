package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BuzzLyutic/task-timer-api/internal/model"
	"github.com/BuzzLyutic/task-timer-api/internal/repo"
)

type taskRecord struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	UserID         int64  `gorm:"not null"`
	Name           string `gorm:"size:200;not null"`
	Description    string `gorm:"not null;default:''"`
	Status         string `gorm:"not null;index;default:todo"`
	TimerRunning   bool   `gorm:"not null;default:false"`
	TimerStartedAt *time.Time
	ElapsedSeconds int64 `gorm:"not null;default:0"`
	Version        int   `gorm:"not null;default:1"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (taskRecord) TableName() string { return "tasks" }

type requestLogRecord struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Route        string `gorm:"not null"`
	Method       string `gorm:"not null"`
	StatusCode   int    `gorm:"not null"`
	DurationMs   int64  `gorm:"not null"`
	ErrorMessage *string
	CreatedAt    time.Time
}

func (requestLogRecord) TableName() string { return "request_logs" }

type statusCount struct {
	Status  string
	Count   int
	Running int
	Elapsed int64
}

// Store - хранилище на gorm и SQLite
type Store struct {
	db *gorm.DB
}

var _ repo.Repository = (*Store)(nil)

// Open открывает (или создает) базу и применяет схему. ":memory:" - база в памяти
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite допускает одного писателя; одно соединение заодно сохраняет :memory: базу
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&taskRecord{}, &requestLogRecord{}); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Create(ctx context.Context, t model.Task) (model.Task, error) {
	rec := fromTask(t)
	rec.ID = 0
	rec.Version = 1
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return t, fmt.Errorf("failed to create task: %w", err)
	}
	return rec.toTask(), nil
}

func (s *Store) Get(ctx context.Context, id int64) (model.Task, error) {
	var rec taskRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Task{}, repo.ErrorNotFound
		}
		return model.Task{}, fmt.Errorf("failed to find task: %w", err)
	}
	return rec.toTask(), nil
}

func (s *Store) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	q := s.db.WithContext(ctx).Model(&taskRecord{})
	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}

	var recs []taskRecord
	if err := q.Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(recs))
	for _, rec := range recs {
		if filter.MatchesName(rec.Name) {
			tasks = append(tasks, rec.toTask())
		}
	}
	return tasks, nil
}

func (s *Store) Update(ctx context.Context, t model.Task) (model.Task, error) {
	var out model.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// map, чтобы gorm записал и нулевые значения (false, NULL)
		res := tx.Model(&taskRecord{}).
			Where("id = ? AND version = ?", t.ID, t.Version).
			Updates(map[string]any{
				"status":           string(t.Status),
				"timer_running":    t.TimerRunning,
				"timer_started_at": t.TimerStartedAt,
				"elapsed_seconds":  t.ElapsedSeconds,
				"updated_at":       t.UpdatedAt,
				"version":          gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update task: %w", res.Error)
		}

		var rec taskRecord
		if err := tx.First(&rec, "id = ?", t.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repo.ErrorNotFound
			}
			return err
		}
		if res.RowsAffected == 0 {
			return repo.ErrorConflict
		}
		out = rec.toTask()
		return nil
	})
	if err != nil {
		return t, err
	}
	return out, nil
}

func (s *Store) GetStats(ctx context.Context) (model.Stats, error) {
	var rows []statusCount
	err := s.db.WithContext(ctx).Model(&taskRecord{}).
		Select(`status, COUNT(*) AS count,
			SUM(CASE WHEN timer_running THEN 1 ELSE 0 END) AS running,
			COALESCE(SUM(elapsed_seconds), 0) AS elapsed`).
		Group("status").
		Scan(&rows).Error

	stats := model.NewStats()
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate tasks: %w", err)
	}
	for _, r := range rows {
		stats.ByStatus[model.Status(r.Status)] = r.Count
		stats.TotalTasks += r.Count
		stats.RunningTimers += r.Running
		stats.TotalElapsedSeconds += r.Elapsed
	}
	return stats, nil
}

func (s *Store) InsertLog(ctx context.Context, entry model.RequestLog) error {
	rec := requestLogRecord{
		Route:        entry.Route,
		Method:       entry.Method,
		StatusCode:   entry.StatusCode,
		DurationMs:   entry.DurationMs,
		ErrorMessage: entry.ErrorMessage,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to insert request log: %w", err)
	}
	return nil
}

func fromTask(t model.Task) taskRecord {
	return taskRecord{
		ID:             t.ID,
		UserID:         t.UserID,
		Name:           t.Name,
		Description:    t.Description,
		Status:         string(t.Status),
		TimerRunning:   t.TimerRunning,
		TimerStartedAt: t.TimerStartedAt,
		ElapsedSeconds: t.ElapsedSeconds,
		Version:        t.Version,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func (r taskRecord) toTask() model.Task {
	return model.Task{
		ID:             r.ID,
		UserID:         r.UserID,
		Name:           r.Name,
		Description:    r.Description,
		Status:         model.Status(r.Status),
		TimerRunning:   r.TimerRunning,
		TimerStartedAt: r.TimerStartedAt,
		ElapsedSeconds: r.ElapsedSeconds,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
