package pipeline

import "errors"

// ErrValidation marks unrecoverable input problems detected before any page
// work starts.
var ErrValidation = errors.New("validation failed")

// ErrInterrupted marks a user-cancelled run. The cache keeps its last saved
// state; in-flight page work is discarded.
var ErrInterrupted = errors.New("processing interrupted")
