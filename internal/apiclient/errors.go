package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized matches a *StatusError carrying 401 Unauthorized.
var ErrUnauthorized = errors.New("unauthorized")

// maxErrorBody bounds how much of an error response is kept on StatusError.
const maxErrorBody = 64 << 10

// StatusError is returned for every non-2xx response.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	// Message is the "error" or "message" field of a JSON error body, if any.
	Message string
	Body    []byte
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is reports whether target is ErrUnauthorized and the status is 401.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// StatusCode returns the HTTP status of err if it wraps a *StatusError, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

func newStatusError(req *http.Request, status int, body []byte) *StatusError {
	return &StatusError{
		StatusCode: status,
		Method:     req.Method,
		Path:       req.URL.Path,
		Message:    errorMessage(body),
		Body:       body,
	}
}

// errorMessage extracts a human readable message from common JSON error shapes:
// {"error": "..."}, {"message": "..."} and {"error": {"message": "..."}}.
func errorMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if len(payload.Error) > 0 {
		var s string
		if err := json.Unmarshal(payload.Error, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
			return strings.TrimSpace(nested.Message)
		}
	}
	return strings.TrimSpace(payload.Message)
}
