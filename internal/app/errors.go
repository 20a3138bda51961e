package app

import "errors"

// ErrTransactionFailed is returned when a store error aborts a write. The
// whole batch is rolled back; the wrapped error carries the cause.
var ErrTransactionFailed = errors.New("transaction failed")

// IsTransactionFailed reports whether err wraps ErrTransactionFailed.
func IsTransactionFailed(err error) bool {
	return errors.Is(err, ErrTransactionFailed)
}
