package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("order not found")
	ErrNotReady       = errors.New("order must be ready to process payment")
	ErrAlreadyPaid    = errors.New("order is already paid")
	ErrOfflineBlocked = errors.New("online payment not allowed while offline")
)

// ValidationError carries the field-level reasons an order payload was
// rejected. It is surfaced synchronously to the caller and never queued.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order data: %s", strings.Join(e.Fields, "; "))
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
