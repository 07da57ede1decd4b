// Package capture defines the boundary to the platform capture engine:
// display, microphone and camera acquisition. Real OS backends live behind
// the Engine interface; this package ships the contract, the permission
// error taxonomy and a synthetic engine for tests and the CLI test mode.
package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/recnode/recnode/internal/media"
)

// Engine acquires live capture sources. Every returned source exposes
// per-track end-of-life notification via Done(); a display source ends when
// the user stops sharing through native browser/OS chrome.
type Engine interface {
	// Display acquires the screen video track and, when the platform offers
	// it, the system audio track. The audio source may be nil.
	Display(ctx context.Context) (media.VideoSource, media.AudioSource, error)

	// Microphone acquires the user's microphone track.
	Microphone(ctx context.Context) (media.AudioSource, error)

	// Camera acquires the user's camera track.
	Camera(ctx context.Context) (media.VideoSource, error)
}

// Error codes for acquisition failures.
const (
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeNoDevice         = "NO_DEVICE"
	ErrCodeAborted          = "ABORTED"
)

// Error is a typed acquisition failure.
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

// NewError creates a typed acquisition error.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// IsPermissionDenied reports whether err is a denied-permission acquisition error.
func IsPermissionDenied(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == ErrCodePermissionDenied
}
