package report

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRetriesExhausted wraps the last transient error once every attempt failed.
var ErrRetriesExhausted = errors.New("report: retries exhausted")

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("report: %s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("report: %s %s: %d %s: %s", e.Method, e.URL, e.Code, http.StatusText(e.Code), e.Body)
}

// Temporary reports whether the status is worth retrying (5xx or 429).
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}
