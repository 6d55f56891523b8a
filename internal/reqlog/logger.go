package reqlog

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-timer-api/internal/model"
)

// Submitter передает запись в БД, не дожидаясь записи
type Submitter interface {
	Submit(entry model.RequestLog) error
}

// Diagnostics получает внутренние ошибки журнала. Не блокирует и не падает
type Diagnostics interface {
	Report(msg string, err error, fields ...zap.Field)
}

// Logger пишет итог каждой операции: сразу в zap, в БД через пул
type Logger struct {
	stream *zap.Logger
	store  Submitter
	diag   Diagnostics
}

func New(stream *zap.Logger, store Submitter, diag Diagnostics) *Logger {
	if stream == nil {
		stream = zap.NewNop()
	}
	if diag == nil {
		diag = NewZapDiagnostics(nil)
	}
	return &Logger{
		stream: stream,
		store:  store,
		diag:   diag,
	}
}

// LogRequest не возвращает ошибок и не паникует, проблемы уходят в diag
func (l *Logger) LogRequest(route, method string, statusCode int, durationMs int64, errorMessage string) {
	defer func() {
		if r := recover(); r != nil {
			l.diag.Report("request log panicked", fmt.Errorf("%v", r), zap.String("route", route))
		}
	}()

	if durationMs < 0 {
		durationMs = 0
	}

	entry := model.RequestLog{
		Route:      route,
		Method:     method,
		StatusCode: statusCode,
		DurationMs: durationMs,
	}
	fields := []zap.Field{
		zap.String("route", route),
		zap.String("method", method),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMs),
	}
	if errorMessage != "" {
		msg := errorMessage
		entry.ErrorMessage = &msg
		fields = append(fields, zap.String("error", errorMessage))
	}

	l.stream.Info("request", fields...)

	if l.store == nil {
		return
	}
	if err := l.store.Submit(entry); err != nil {
		l.diag.Report("Error inserting request_log", err, entryFields(entry)...)
	}
}

// PersistFailureReporter - колбэк пула для записей, которые не удалось сохранить
func PersistFailureReporter(diag Diagnostics) func(model.RequestLog, error) {
	return func(entry model.RequestLog, err error) {
		diag.Report("Error inserting request_log", err, entryFields(entry)...)
	}
}

func entryFields(entry model.RequestLog) []zap.Field {
	return []zap.Field{
		zap.String("route", entry.Route),
		zap.String("method", entry.Method),
		zap.Int("status_code", entry.StatusCode),
	}
}
