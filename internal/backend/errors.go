package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned for 401 responses; the token expired or was revoked.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError carries any other non-success response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("backend API error: %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend API error: %s %s: %d %s (%s)", e.Method, e.Path, e.Status, http.StatusText(e.Status), body)
}

// Unwrap maps 404 and 401 onto the sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}
	return nil
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// StatusOf returns the HTTP status behind err, or 0 when err did not come from a response.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
