package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BuzzLyutic/task-timer-api/internal/model"
	"github.com/BuzzLyutic/task-timer-api/internal/repo"
)

// Store хранит задачи и журнал в памяти. Задачи копируются на входе и выходе
type Store struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]model.Task
	logs   []model.RequestLog
}

var _ repo.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		tasks: make(map[int64]model.Task),
	}
}

func (s *Store) Create(_ context.Context, t model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t.ID = s.nextID
	t.Version = 1
	t.TimerStartedAt = copyTime(t.TimerStartedAt)
	s.tasks[t.ID] = t

	return clone(t), nil
}

func (s *Store) Get(_ context.Context, id int64) (model.Task, error) {
	s.mu.RLock()
	t, ok := s.tasks[id]
	s.mu.RUnlock()

	if !ok {
		return model.Task{}, repo.ErrorNotFound
	}
	return clone(t), nil
}

func (s *Store) List(_ context.Context, filter model.TaskFilter) ([]model.Task, error) {
	s.mu.RLock()
	tasks := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if !filter.MatchesName(t.Name) {
			continue
		}
		tasks = append(tasks, clone(t))
	}
	s.mu.RUnlock()

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (s *Store) Update(_ context.Context, t model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[t.ID]
	if !ok {
		return t, repo.ErrorNotFound
	}
	if cur.Version != t.Version {
		return t, repo.ErrorConflict
	}

	cur.Status = t.Status
	cur.TimerRunning = t.TimerRunning
	cur.TimerStartedAt = copyTime(t.TimerStartedAt)
	cur.ElapsedSeconds = t.ElapsedSeconds
	cur.UpdatedAt = t.UpdatedAt
	cur.Version++
	s.tasks[t.ID] = cur

	return clone(cur), nil
}

func (s *Store) GetStats(_ context.Context) (model.Stats, error) {
	stats := model.NewStats()

	s.mu.RLock()
	for _, t := range s.tasks {
		stats.Add(t)
	}
	s.mu.RUnlock()

	return stats, nil
}

func (s *Store) InsertLog(_ context.Context, entry model.RequestLog) error {
	s.mu.Lock()
	entry.ID = int64(len(s.logs) + 1)
	s.logs = append(s.logs, entry)
	s.mu.Unlock()
	return nil
}

// Logs отдает копию журнала запросов в порядке вставки. В API хранилища не входит:
// нужен тестам и отладке, сервис журнал не читает
func (s *Store) Logs() []model.RequestLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RequestLog, len(s.logs))
	copy(out, s.logs)
	return out
}

func clone(t model.Task) model.Task {
	t.TimerStartedAt = copyTime(t.TimerStartedAt)
	return t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
