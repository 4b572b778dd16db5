package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// ErrMessageNotFound covers operations against unknown or already
	// removed message ids. Callers treat it as a silent no-op.
	ErrMessageNotFound = fmt.Errorf("message not found")

	// ErrInvalidInput is returned by the gateway before a command ever
	// reaches the store.
	ErrInvalidInput = fmt.Errorf("invalid input")

	// ErrStoreUnavailable wraps transient persistence failures. The hub
	// retries these a bounded number of times before giving up.
	ErrStoreUnavailable = fmt.Errorf("message store unavailable")
)
