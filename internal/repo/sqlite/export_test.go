package sqlite

import (
	"context"

	"github.com/BuzzLyutic/task-timer-api/internal/model"
)

// storedLogs читает журнал запросов по порядку id, только для тестов
func (s *Store) storedLogs(ctx context.Context) ([]model.RequestLog, error) {
	var recs []requestLogRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]model.RequestLog, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.RequestLog{
			ID:           r.ID,
			Route:        r.Route,
			Method:       r.Method,
			StatusCode:   r.StatusCode,
			DurationMs:   r.DurationMs,
			ErrorMessage: r.ErrorMessage,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}
