package session

import "errors"

// ErrNotFound indicates no persisted record exists for the api id.
var ErrNotFound = errors.New("session record not found")
