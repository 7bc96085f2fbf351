package listener

import "errors"

var (
	// ErrAlreadyListening indicates a live or starting session already owns the api id.
	ErrAlreadyListening = errors.New("already listening")
	// ErrCapacityExceeded indicates the registry reached its session limit.
	ErrCapacityExceeded = errors.New("listener capacity exceeded")
	// ErrSessionNotFound indicates no live session exists for the api id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAuthFailed indicates the platform connection could not be authenticated.
	ErrAuthFailed = errors.New("session authentication failed")
	// ErrRegistryClosed indicates the registry is shutting down.
	ErrRegistryClosed = errors.New("listener registry closed")
	// ErrInvalidConfig indicates a session config is missing required fields.
	ErrInvalidConfig = errors.New("invalid session config")
)
