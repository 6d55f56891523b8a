package model

import (
	"strings"
	"time"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Statuses перечисляет допустимые статусы в порядке жизненного цикла
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type Task struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Status         Status     `json:"status"`
	TimerRunning   bool       `json:"timer_running"`
	TimerStartedAt *time.Time `json:"timer_started_at"`
	ElapsedSeconds int64      `json:"elapsed_seconds"`
	Version        int        `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type TaskFilter struct {
	Status *Status
	Search string
}

// MatchesName - поиск подстроки без учета регистра. Регистр приводим в Go:
// lower() в SQLite и в Postgres с локалью C понимает только ASCII
func (f TaskFilter) MatchesName(name string) bool {
	if f.Search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(f.Search))
}

// Stats - сводка для дашборда
type Stats struct {
	TotalTasks          int            `json:"total_tasks"`
	ByStatus            map[Status]int `json:"by_status"`
	RunningTimers       int            `json:"running_timers"`
	TotalElapsedSeconds int64          `json:"total_elapsed_seconds"`
}

// NewStats - пустая сводка, в которой есть все статусы
func NewStats() Stats {
	st := Stats{ByStatus: make(map[Status]int, len(Statuses))}
	for _, s := range Statuses {
		st.ByStatus[s] = 0
	}
	return st
}

// Add учитывает задачу в сводке
func (st *Stats) Add(t Task) {
	st.TotalTasks++
	st.ByStatus[t.Status]++
	if t.TimerRunning {
		st.RunningTimers++
	}
	st.TotalElapsedSeconds += t.ElapsedSeconds
}
