// Package common defines shared constants and sentinel errors used across
// the FitTrack server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// StoreUnavailable is the only category a caller may retry; every
	// other failure is terminal for the given input.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")

	// Authentication errors. ErrInvalidToken deliberately covers
	// malformed, expired, wrong-kind, revoked and missing-subject tokens:
	// the caller must never learn which specific check failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrAccountLocked      = errors.New("account locked")
	ErrInvalidToken       = errors.New("invalid token")
)
