// Package session provides server-side session records keyed by opaque
// UUIDs, a pluggable store, the cookie-driven manager and the
// route-level middleware.
package session

import (
	"errors"
	"fmt"
	"time"
)

// Session is one server-side session record. It is mutated only by the
// store that owns it.
type Session struct {
	// ID is an opaque random UUID.
	ID string

	// Data is the session's string attribute map.
	Data map[string]string

	// CreatedAt is when the record was minted.
	CreatedAt time.Time

	// ExpiresAt is the absolute expiry, nil when the session never
	// expires on its own.
	ExpiresAt *time.Time
}

// Expired reports whether the session's expiry has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Typed session errors (spec error taxonomy).
var (
	// ErrInvalidSession marks a cookie that names no live record.
	ErrInvalidSession = errors.New("session: invalid session")

	// ErrSessionExpired marks a record found past its expiry. The store
	// entry is deleted as a side effect of the lookup that found it.
	ErrSessionExpired = errors.New("session: session expired")

	// ErrAuthenticationRequired is the middleware failure when a route
	// demands a session and the request carries none.
	ErrAuthenticationRequired = errors.New("session: authentication required")
)

// RedirectError is the middleware failure when the matched route names a
// session_redirect target: the caller answers 302 to URL instead of 401.
type RedirectError struct {
	URL string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("session: redirect to %s", e.URL)
}

// StorageError wraps a store-level failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
