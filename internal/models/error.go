package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// ErrStorage wraps any persistence failure. Callers never see the cause.
	ErrStorage = errors.New("storage failure")

	// ErrAccountLocked is returned once trailing failures exceed the lockout threshold
	ErrAccountLocked = errors.New("account is locked")
)
