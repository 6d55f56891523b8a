package model

import "time"

// RequestLog - запись журнала о завершенной операции, только добавляется
type RequestLog struct {
	ID           int64     `json:"id"`
	Route        string    `json:"route"`
	Method       string    `json:"method"`
	StatusCode   int       `json:"status_code"`
	DurationMs   int64     `json:"duration_ms"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
