package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Detail is the backend's "detail" message when it sent one.
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf(
			"unexpected status %d on %s %s: %s",
			e.StatusCode, e.Method, e.Path, e.Detail,
		)
	}
	return fmt.Sprintf("unexpected status %d on %s %s", e.StatusCode, e.Method, e.Path)
}

// errorResponse is the FastAPI error body.
type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

func newStatusError(method, path string, status int, body []byte) *StatusError {
	e := &StatusError{Method: method, Path: path, StatusCode: status}

	var er errorResponse
	if json.Unmarshal(body, &er) == nil && len(er.Detail) > 0 {
		var s string
		if json.Unmarshal(er.Detail, &s) == nil {
			e.Detail = s
		} else {
			// Validation errors come back as a list of objects.
			e.Detail = string(er.Detail)
		}
	} else if len(body) > 0 && len(body) < 512 {
		e.Detail = string(body)
	}

	return e
}

// IsNotFound reports whether err (or any error in its chain) is a 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsAuthError reports whether err (or any error in its chain) means the
// session token was rejected.
func IsAuthError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusUnauthorized ||
		se.StatusCode == http.StatusForbidden
}
