package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrAccessDenied maps 401/403 responses (paywalled or unauthorized)
	ErrAccessDenied = errors.New("access denied")
	// ErrNotFound maps 404 responses
	ErrNotFound = errors.New("not found")
)

// StatusError is a non-2xx response that is neither access-denied nor not-found
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// maxErrorBodyBytes limits how much of an error response body is kept for messages
const maxErrorBodyBytes = 512

// errorFromResponse converts a non-2xx response into a typed error
func errorFromResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w", resp.Request.URL.Path, ErrAccessDenied)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", resp.Request.URL.Path, ErrNotFound)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}
