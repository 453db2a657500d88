package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrNoActiveProfile  = errors.New("no active profile")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSecretNotFound   = errors.New("secret not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrItemNotFound     = errors.New("item not found")
	ErrNoSubject        = errors.New("context has no subject")
	ErrNoAccount        = errors.New("context has no account")
	ErrOffline          = errors.New("offline")
)

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}
