package auth

import "errors"

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
	ErrUnauthorized  = errors.New("auth: unauthorized")

	// ErrMissingToken is returned when no refresh token accompanies a
	// refresh or logout request.
	ErrMissingToken = errors.New("auth: missing refresh token")

	// ErrInvalidToken covers signature, structure and expiry failures.
	ErrInvalidToken = errors.New("auth: invalid or expired token")

	// ErrStaleToken indicates a refresh token that verified cryptographically
	// but no longer matches the identity's stored slot: the session was
	// superseded by a later login or revoked by logout.
	ErrStaleToken = errors.New("auth: stale refresh token")
)
