package driver

import "errors"

// DriverError represents an error reported across the boundary.
type DriverError struct {
	// Message is the human-readable error text.
	Message string
}

func (e *DriverError) Error() string {
	return e.Message
}

var (
	// ErrNotConnected is returned when an operation is attempted on a
	// closed or uninitialized driver or transaction.
	ErrNotConnected = errors.New("driver: not connected")
	// ErrNilHandle is returned when a boundary call unexpectedly yields
	// the nil handle without an error.
	ErrNilHandle = errors.New("driver: nil handle")
)
