package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrPoolNotFound = errors.New("staking pool not found")
	ErrBadResponse  = errors.New("unexpected response from staking backend")
)

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("staking backend returned %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrBadResponse
}

// Temporary reports whether the request is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
