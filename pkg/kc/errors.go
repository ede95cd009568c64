package kc

import (
	"errors"
	"fmt"
)

// APIError is a failed admin API call. It preserves the upstream HTTP status
// code so callers can classify the failure; the gateway itself never
// interprets it.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("keycloak: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("keycloak: %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// StatusOf returns the upstream status code of err, or 0 if err is not an
// APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
