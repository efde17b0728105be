package agent

import "errors"

// Generation failures fall into two classes: transient ones worth another
// attempt (rate limits, 5xx, network) and fatal ones that fail the same way
// every time (auth, malformed request). GenerateContent's retry loop
// branches on the class.
type classifiedError struct {
	err       error
	transient bool
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// NewTransientError marks err as worth retrying.
func NewTransientError(err error) error {
	return &classifiedError{err: err, transient: true}
}

// NewFatalError marks err as permanent.
func NewFatalError(err error) error {
	return &classifiedError{err: err}
}

// IsTransient reports whether err carries the retryable mark.
func IsTransient(err error) bool {
	var ce *classifiedError
	return errors.As(err, &ce) && ce.transient
}

// IsFatal reports whether err carries the permanent mark.
func IsFatal(err error) bool {
	var ce *classifiedError
	return errors.As(err, &ce) && !ce.transient
}
