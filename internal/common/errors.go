// Package common defines shared constants and sentinel errors used across
// the layers of TenantVault. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Registration-time errors. ErrSchema means an entity definition is
	// missing or invalid and nothing can be instantiated from it.
	ErrSchema = errors.New("invalid schema")

	// ErrInvalidInput marks caller mistakes detected before any store call
	// (wrong shape, empty identifier, non-string email and the like).
	ErrInvalidInput = errors.New("invalid input")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Account security errors.
	ErrAccountLocked      = errors.New("account locked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCodeInvalid        = errors.New("code invalid or expired")
)
