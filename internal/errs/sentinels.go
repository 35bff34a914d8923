// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

var (
	// ErrNotFound indicates the requested key or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformed indicates persisted state that could not be decoded.
	// Callers are expected to treat the data as absent, not to fail.
	ErrMalformed = errors.New("malformed persisted state")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates a temporary login lock after repeated failures.
	ErrRateLimited = errors.New("rate limited")
)
