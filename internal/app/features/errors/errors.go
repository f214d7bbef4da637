// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// WriteJSON writes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RenderError writes {"error": msg} with status.
func RenderError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{Error: msg})
}

// RenderBadRequest writes a 400 with optional details (e.g. per-row CSV errors).
func RenderBadRequest(w http.ResponseWriter, msg string, details interface{}) {
	WriteJSON(w, http.StatusBadRequest, errorBody{Error: msg, Details: details})
}

// RenderNotFound writes a 404.
func RenderNotFound(w http.ResponseWriter, msg string) {
	RenderError(w, http.StatusNotFound, msg)
}

// RenderConflict writes a 409.
func RenderConflict(w http.ResponseWriter, msg string) {
	RenderError(w, http.StatusConflict, msg)
}

// ErrorLogger logs server-side failures and answers with a generic 500 so
// internal error text never reaches the client.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger creates an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// LogServerError logs msg and err with the request path and writes userMsg
// as a 500 response.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.log.Error(msg,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	RenderError(w, http.StatusInternalServerError, userMsg)
}
