package export

import "fmt"

// Error codes.
const (
	ErrCodeNoSegments      = "NO_SEGMENTS"
	ErrCodeUnknownDuration = "UNKNOWN_DURATION"
	ErrCodeBadSettings     = "BAD_SETTINGS"
	ErrCodeEngineFailed    = "ENGINE_FAILED"
	ErrCodeBusy            = "EXPORT_BUSY"
)

// Error is a typed, user-dismissable export failure.
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

// NewError creates a typed export error.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
