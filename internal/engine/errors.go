package engine

import "fmt"

// Error codes.
const (
	ErrCodeEngineFailed = "ENGINE_FAILED"
	ErrCodeProbeFailed  = "PROBE_FAILED"
	ErrCodeBadInput     = "BAD_INPUT"
)

// Error is a typed engine failure.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a typed engine error.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
