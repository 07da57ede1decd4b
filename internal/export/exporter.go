package export

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recnode/recnode/internal/editor"
	"github.com/recnode/recnode/internal/engine"
	"github.com/recnode/recnode/internal/events"
	"github.com/recnode/recnode/internal/logging"
)

// Result is a finished export.
type Result struct {
	JobID    string
	Data     []byte
	MimeType string
	Duration float64 // output seconds
}

// Exporter runs export jobs against the transcoding engine and publishes
// progress, completion and failure events. One job runs at a time; errors
// stick until dismissed so the caller can show and clear them.
type Exporter struct {
	engine  engine.Engine
	presets *Presets
	bus     *events.Bus
	logger  logging.Logger

	mu      sync.Mutex
	running bool
	lastErr *Error
}

// New creates an exporter over the given engine.
func New(eng engine.Engine, presets *Presets, bus *events.Bus, logger logging.Logger) *Exporter {
	return &Exporter{engine: eng, presets: presets, bus: bus, logger: logger}
}

// Presets returns the active quality table.
func (x *Exporter) Presets() *Presets { return x.presets }

// SetPresets swaps the quality table, for config reload.
func (x *Exporter) SetPresets(p *Presets) {
	x.mu.Lock()
	x.presets = p
	x.mu.Unlock()
}

// LastError returns the sticky error from the most recent failed export.
func (x *Exporter) LastError() *Error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.lastErr
}

// ClearError dismisses the sticky error.
func (x *Exporter) ClearError() {
	x.mu.Lock()
	x.lastErr = nil
	x.mu.Unlock()
}

// Export plans and runs one job. Blocks until the engine finishes; a
// concurrent second call fails with EXPORT_BUSY.
func (x *Exporter) Export(ctx context.Context, input []byte, duration float64, segments []editor.Segment, settings Settings) (*Result, error) {
	if duration <= 0 {
		return nil, x.fail("", NewError(ErrCodeUnknownDuration,
			"recording duration unknown, export blocked", nil))
	}

	x.mu.Lock()
	if x.running {
		x.mu.Unlock()
		return nil, NewError(ErrCodeBusy, "an export is already running", nil)
	}
	x.running = true
	presets := x.presets
	x.mu.Unlock()
	defer func() {
		x.mu.Lock()
		x.running = false
		x.mu.Unlock()
	}()

	jobID := uuid.NewString()

	// The engine has no separate metadata facility, so audio presence
	// comes from a probe of the input itself. A failed probe must never
	// fail the export; it conservatively downgrades to "no audio".
	hasAudio := false
	if probe, err := x.engine.Probe(ctx, input); err != nil {
		x.logger.Warn("Probe failed, exporting without audio", "job", jobID, "error", err)
	} else if probe != nil {
		hasAudio = probe.HasAudio
	}

	plan, err := BuildPlan(input, segments, settings, presets, hasAudio)
	if err != nil {
		return nil, x.fail(jobID, err)
	}

	x.logger.Info("Export started", "job", jobID, "format", settings.Format,
		"preset", settings.Preset, "segments", len(segments), "audio", hasAudio)

	tracker := NewTracker()
	data, err := x.engine.Run(ctx, plan.Job, func(raw float64) {
		ratio, eta := tracker.Update(raw)
		x.bus.Publish(events.ExportProgressEvent{
			JobID:      jobID,
			Ratio:      ratio,
			ETASeconds: eta,
		})
	})
	if err != nil {
		return nil, x.fail(jobID, NewError(ErrCodeEngineFailed, "transcode failed", err))
	}

	x.mu.Lock()
	x.lastErr = nil
	x.mu.Unlock()

	x.bus.Publish(events.ExportDoneEvent{
		JobID:     jobID,
		Bytes:     len(data),
		MimeType:  plan.MimeType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	x.logger.Info("Export finished", "job", jobID, "bytes", len(data))

	return &Result{
		JobID:    jobID,
		Data:     data,
		MimeType: plan.MimeType,
		Duration: plan.Job.Duration,
	}, nil
}

// fail records and publishes a typed export error.
func (x *Exporter) fail(jobID string, err error) *Error {
	xe, ok := err.(*Error)
	if !ok {
		xe = NewError(ErrCodeEngineFailed, "export failed", err)
	}
	x.mu.Lock()
	x.lastErr = xe
	x.mu.Unlock()
	x.bus.Publish(events.ExportErrorEvent{
		JobID:     jobID,
		Code:      xe.Code,
		Message:   xe.Message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	x.logger.Error("Export failed", "job", jobID, "code", xe.Code, "error", xe)
	return xe
}
