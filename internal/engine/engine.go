// Package engine defines the boundary to the external transcoding engine.
// The core hands over input bytes plus an ordered argument list and gets
// output bytes back; everything about containers and codecs stays on the
// far side of this interface.
package engine

import "context"

// Job is one transcode request.
type Job struct {
	// Input is the recorded blob to transcode.
	Input []byte

	// InputArgs are arguments placed before the input declaration.
	InputArgs []string

	// Args is the ordered argument list expressing trim, filter and codec
	// choices, placed between input and output.
	Args []string

	// OutputExt is the output container extension, e.g. "mp4".
	OutputExt string

	// Duration is the expected output duration in seconds, used to derive
	// progress ratios. Zero disables progress reporting.
	Duration float64
}

// ProgressFunc receives progress ratios during a run. Values are raw
// engine reports; callers clamp as needed.
type ProgressFunc func(ratio float64)

// ProbeResult describes the streams of an input blob.
type ProbeResult struct {
	HasAudio bool
	HasVideo bool
	Duration float64 // seconds, 0 when unknown
	Width    int
	Height   int
}

// Engine is the transcoding engine contract.
type Engine interface {
	// Run executes one job and returns the output bytes. Progress may be
	// nil. Cancelling ctx aborts the job.
	Run(ctx context.Context, job Job, progress ProgressFunc) ([]byte, error)

	// Probe inspects input without mutating anything. Callers must treat
	// probe failure as recoverable.
	Probe(ctx context.Context, input []byte) (*ProbeResult, error)
}
