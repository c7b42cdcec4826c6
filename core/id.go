package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for invocations, conversations and
// function calls that arrive without one.
func NewID() string { return uuid.NewString() }
