// Package common defines shared constants and sentinel errors used across
// client and server layers of authpipe. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrorAlreadyExists = errors.New("already exists")
	ErrorInvalidInput  = errors.New("invalid input")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Client pipeline errors.
	ErrTransport      = errors.New("transport error")
	ErrRetryExhausted = errors.New("authentication failed after token refresh")
	ErrRefreshFailed  = errors.New("token refresh failed")
)
