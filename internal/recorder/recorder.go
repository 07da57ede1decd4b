// Package recorder turns a combined live stream into periodic binary chunks.
// The wire format of the chunks is opaque to everything downstream; the
// segment editor and export planner treat the assembled blob as input bytes
// for the transcoding engine.
package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/recnode/recnode/internal/media"
)

// ErrNoLiveVideo is returned when a recorder is started on a stream without
// a live video track. Recording such a stream can only produce an unusable
// blob, so recorders fail fast instead.
var ErrNoLiveVideo = errors.New("recorder: stream has no live video track")

// Chunk is one block of recorded bytes.
type Chunk struct {
	Data      []byte
	Timestamp time.Duration // offset of the chunk start from recording start
}

// Recorder consumes a combined stream and emits periodic chunks.
type Recorder interface {
	// Start begins recording. Fails with ErrNoLiveVideo when the stream
	// carries no live video track.
	Start(ctx context.Context, stream *media.Stream) error

	// Pause suspends chunk production without ending the recording.
	Pause()

	// Resume reverses Pause.
	Resume()

	// RequestData asks the recorder to emit any buffered-but-undelivered
	// data as a chunk. Best effort.
	RequestData()

	// Stop flushes remaining data, emits the terminal stop notification
	// (Done closes, Chunks closes) and releases the recorder. Idempotent.
	Stop()

	// Chunks delivers recorded chunks. Closed after Stop.
	Chunks() <-chan Chunk

	// Done is closed once the recorder has fully stopped.
	Done() <-chan struct{}
}
