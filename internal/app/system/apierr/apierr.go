// internal/app/system/apierr/apierr.go
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Kind classifies a request failure. The set is closed: storage and
// engine code return one of these three, anything else is treated as an
// internal error by the HTTP layer.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindNotFound
	KindConflict
)

// Error is a typed failure with a message safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// BadRequest builds a structurally-invalid-operation error.
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a missing-resource error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds an invariant-violation error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// StatusOf maps an error to an HTTP status code. Unclassified errors map
// to 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case KindBadRequest:
			return http.StatusBadRequest
		case KindNotFound:
			return http.StatusNotFound
		case KindConflict:
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

type errBody struct {
	Error string `json:"error"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as a JSON error body using StatusOf. Internal
// errors get a generic message so server details never leak.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	msg := "internal server error"
	var ae *Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	WriteJSON(w, status, errBody{Error: msg})
}

// Logger pairs client-safe error responses with server-side log records.
type Logger struct {
	Log *zap.Logger
}

// NewLogger creates an error Logger backed by zap.
func NewLogger(log *zap.Logger) *Logger {
	return &Logger{Log: log}
}

// ServerError logs the underlying error and writes a 500 JSON body.
func (l *Logger) ServerError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	l.Log.Error(msg,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	WriteJSON(w, http.StatusInternalServerError, errBody{Error: "internal server error"})
}

// Fail writes err if it is a typed failure, otherwise logs it and writes
// a 500. Handlers funnel engine/store errors through this.
func (l *Logger) Fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var ae *Error
	if errors.As(err, &ae) {
		WriteError(w, err)
		return
	}
	l.ServerError(w, r, msg, err)
}
