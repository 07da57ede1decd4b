package media

import (
	"context"
	"errors"
)

// ErrSourceEnded is returned by ReadFrame/ReadChunk once a source has
// terminated, either through Stop or because the underlying device went away.
var ErrSourceEnded = errors.New("media source ended")

// VideoConfig describes a video source's output.
type VideoConfig struct {
	Width  int
	Height int
	FPS    int
}

// VideoSource produces raw video frames.
type VideoSource interface {
	// Start begins capture or generation. Idempotent.
	Start(ctx context.Context) error

	// Stop halts the source and ends its track. Idempotent.
	Stop() error

	// ReadFrame blocks until the next frame is available, the context is
	// cancelled, or the source ends (ErrSourceEnded).
	ReadFrame(ctx context.Context) (*VideoFrame, error)

	// Done is closed when the source terminates for any reason, including
	// external termination such as the user revoking a screen share.
	Done() <-chan struct{}

	// Config returns the source's output configuration.
	Config() VideoConfig
}

// AudioSource produces raw PCM audio chunks.
type AudioSource interface {
	// Start begins capture or generation. Idempotent.
	Start(ctx context.Context) error

	// Stop halts the source and ends its track. Idempotent.
	Stop() error

	// ReadChunk blocks until the next chunk is available, the context is
	// cancelled, or the source ends (ErrSourceEnded).
	ReadChunk(ctx context.Context) (*AudioChunk, error)

	// Done is closed when the source terminates for any reason.
	Done() <-chan struct{}

	// SampleRate returns the source sample rate.
	SampleRate() int

	// Channels returns the number of interleaved channels.
	Channels() int
}
