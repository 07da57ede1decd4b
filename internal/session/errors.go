package session

import "fmt"

// Error codes.
const (
	ErrCodeAcquisition     = "ACQUISITION_FAILED"
	ErrCodeEmptyRecording  = "EMPTY_RECORDING"
	ErrCodeDurationUnknown = "DURATION_UNKNOWN"
	ErrCodeInvalidState    = "INVALID_STATE"
	ErrCodeSessionBusy     = "SESSION_BUSY"
)

// Error is a typed session failure.
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

// NewError creates a typed session error.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
