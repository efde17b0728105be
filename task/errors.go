package task

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a task id is unknown.
	ErrNotFound = errors.New("task not found")
)

// ValidationError reports a rejected field on task creation or update.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
