package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrGraphNotFound is returned when a loader has no graph under the requested name.
var ErrGraphNotFound = errors.New("graph not found")

// ErrInvalidVariables is returned when seed variables fall outside the scalar union.
var ErrInvalidVariables = errors.New("invalid variables")
