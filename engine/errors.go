package engine

import "errors"

// Sentinel errors for engine operations.
var (
	// ErrWorkflowNotFound is returned when a workflow id is unknown.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrGenerateTimeout wraps a content-production call that exceeded its
	// deadline. It propagates to the caller of ExecuteWorkflow.
	ErrGenerateTimeout = errors.New("content generation timed out")

	// ErrUnsupportedPhase is returned for an unrecognized phase or task type.
	// It indicates a programming or configuration error, not a data-quality
	// issue, so it is raised immediately.
	ErrUnsupportedPhase = errors.New("unsupported phase")
)
