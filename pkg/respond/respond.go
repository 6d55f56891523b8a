// Package respond пишет JSON-ответы API.
package respond

import (
	"encoding/json"
	"net/http"
)

// ErrorBody - тело ответа с ошибкой
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON сначала кодирует data: если не вышло, отдаем 500, а не обрезанное тело
func JSON(w http.ResponseWriter, r *http.Request, code int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		code = http.StatusInternalServerError
		body = []byte(`{"error":"internal server error"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func Error(w http.ResponseWriter, r *http.Request, code int, message string) {
	JSON(w, r, code, ErrorBody{Error: message})
}
