// Пакет errors — ответы об ошибках HTTP API портала.
// Тело всегда {"message": "...", "code": "..."}: клиенты читают message,
// code выводится из HTTP-статуса и нужен для машинной обработки.
package errors

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Машиночитаемые коды ошибок.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternalError   = "INTERNAL_ERROR"
)

var codeByStatus = map[int]string{
	http.StatusBadRequest:          CodeValidationError,
	http.StatusUnauthorized:        CodeUnauthorized,
	http.StatusForbidden:           CodeForbidden,
	http.StatusNotFound:            CodeNotFound,
	http.StatusConflict:            CodeConflict,
	http.StatusTooManyRequests:     CodeRateLimited,
	http.StatusInternalServerError: CodeInternalError,
}

// Body — тело ответа с ошибкой. Экспортируется для тестов клиентов API.
type Body struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Write записывает ошибку с кодом, соответствующим статусу.
// Неизвестный статус получает INTERNAL_ERROR.
func Write(w http.ResponseWriter, status int, message string) {
	code, ok := codeByStatus[status]
	if !ok {
		code = CodeInternalError
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Body{Message: message, Code: code})
}

// ValidationError — 400.
func ValidationError(w http.ResponseWriter, message string) {
	Write(w, http.StatusBadRequest, message)
}

// Unauthorized — 401, токен отсутствует, просрочен или неверен пароль.
func Unauthorized(w http.ResponseWriter, message string) {
	Write(w, http.StatusUnauthorized, message)
}

// Forbidden — 403, роль не допускает операцию.
func Forbidden(w http.ResponseWriter, message string) {
	Write(w, http.StatusForbidden, message)
}

// NotFound — 404.
func NotFound(w http.ResponseWriter, message string) {
	Write(w, http.StatusNotFound, message)
}

// Conflict — 409, например email учётной записи занят.
func Conflict(w http.ResponseWriter, message string) {
	Write(w, http.StatusConflict, message)
}

// TooManyRequests — 429 с заголовком Retry-After в целых секундах.
func TooManyRequests(w http.ResponseWriter, message string, retryAfter time.Duration) {
	if secs := int(retryAfter / time.Second); secs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	Write(w, http.StatusTooManyRequests, message)
}

// InternalError — 500. Подробности пишутся только в лог.
func InternalError(w http.ResponseWriter, message string) {
	Write(w, http.StatusInternalServerError, message)
}
