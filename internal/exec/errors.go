package exec

import (
	"errors"
	"fmt"
)

// OpError represents a failure of one query execution operation.
//
// The boundary transmits errors as human-readable text, but Go callers get
// structure: Code distinguishes a cooperative abort from an engine failure,
// an encoding failure, and misuse of an already-consumed operation.
type OpError struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Op is the operation token of the affected pending operation,
	// empty for synchronous execution.
	Op string

	// Err is the underlying cause, if any.
	Err error
}

// Code categorizes operation errors.
type Code string

const (
	// CodeAborted indicates the operation was cancelled cooperatively
	// before producing a result.
	CodeAborted Code = "ABORTED"

	// CodeEngine indicates the remote engine reported a failure.
	CodeEngine Code = "ENGINE_ERROR"

	// CodeEncode indicates the answer could not be drained or serialized.
	CodeEncode Code = "ENCODE_ERROR"

	// CodeConsumed indicates the pending operation's result was already
	// taken. Consuming twice is a contract violation by the caller.
	CodeConsumed Code = "CONSUMED"

	// CodeRuntime indicates the task runtime rejected the work.
	CodeRuntime Code = "RUNTIME_ERROR"
)

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *OpError) Unwrap() error {
	return e.Err
}

// IsAborted returns true if the error is a cooperative-abort outcome.
// Uses errors.As to handle wrapped errors.
func IsAborted(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == CodeAborted
	}
	return false
}

// IsConsumed returns true if the error marks a second consumption of the
// same pending operation.
func IsConsumed(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == CodeConsumed
	}
	return false
}

func abortedError(op string) *OpError {
	return &OpError{Code: CodeAborted, Message: "query aborted", Op: op}
}

func engineError(op string, err error) *OpError {
	return &OpError{Code: CodeEngine, Message: err.Error(), Op: op, Err: err}
}

func encodeError(op string, err error) *OpError {
	return &OpError{Code: CodeEncode, Message: err.Error(), Op: op, Err: err}
}
