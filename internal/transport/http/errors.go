package http

import (
	"encoding/json"
	"net/http"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError отображает вид доменной ошибки на HTTP-статус.
// Текст ошибки отдаётся клиенту как есть, кроме internal: его детали
// остаются в логах.
func writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)

	status := http.StatusInternalServerError
	msg := err.Error()

	switch kind {
	case domain.ErrorKindNotFound:
		status = http.StatusNotFound
	case domain.ErrorKindInvalidState:
		status = http.StatusConflict
	case domain.ErrorKindValidationFailed:
		status = http.StatusBadRequest
	case domain.ErrorKindPreconditionMissing:
		status = http.StatusBadRequest
	case domain.ErrorKindInternal:
		msg = "internal error"
	}

	writeError(w, status, string(kind), msg)
}
