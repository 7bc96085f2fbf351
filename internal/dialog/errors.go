package dialog

import "errors"

// ErrEntityNotFound indicates no user dialog matched the requested participant.
var ErrEntityNotFound = errors.New("dialog entity not found")
