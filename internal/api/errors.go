package api

import (
	"encoding/json"
	"net/http"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

func errBadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message}
}

func errNotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: message}
}

func errMethodNotAllowed(message string) *Error {
	return &Error{Status: http.StatusMethodNotAllowed, Code: ErrCodeMethodNotAllow, Message: message}
}

// errUnavailable reports a feature that is switched off in config.
func errUnavailable(message string) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Code: ErrCodeUnavailable, Message: message}
}

// errInternal hides the cause; handlers log it before responding.
func errInternal(message string) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: ErrCodeInternal, Message: message}
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes e tagged with the request's X-Request-ID.
func writeError(w http.ResponseWriter, r *http.Request, e *Error) {
	if id, ok := r.Context().Value(ctxKeyRequestID).(string); ok {
		e.RequestID = id
	}
	writeJSON(w, e.Status, e)
}
