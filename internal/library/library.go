// Package library holds the single stored recording and the segment editor
// working on it. Recordings replace each other; persistence goes through the
// blob store so the loaded recording survives restarts.
package library

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/recnode/recnode/internal/editor"
	"github.com/recnode/recnode/internal/engine"
	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/recorder"
	"github.com/recnode/recnode/internal/store"
)

// ErrNoRecording is returned when an operation needs a recording and none is
// loaded.
var ErrNoRecording = errors.New("library: no recording loaded")

// Library owns the current recording blob and its editor.
type Library struct {
	store  *store.Store
	engine engine.Engine
	logger logging.Logger
	thumb  editor.Thumbnailer

	mu       sync.Mutex
	policy   editor.Policy
	blob     []byte
	duration float64
	ed       *editor.Editor
}

// New creates a library over the given blob store and transcoding engine.
func New(st *store.Store, eng engine.Engine, policy editor.Policy, logger logging.Logger) *Library {
	return &Library{
		store:  st,
		engine: eng,
		logger: logger,
		thumb:  editor.DefaultThumbnailer(),
		policy: policy,
	}
}

// Restore loads the persisted recording, if any, and builds a fresh editor
// for it. Called once at startup.
func (l *Library) Restore(ctx context.Context) error {
	blob, duration, err := l.store.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("restoring recording: %w", err)
	}
	l.mu.Lock()
	l.blob = blob
	l.duration = duration
	l.ed = editor.New(duration, l.policy)
	l.mu.Unlock()
	l.logger.Info("Restored persisted recording", "bytes", len(blob), "duration", duration)
	return nil
}

// SetRecording replaces the stored recording and resets the editor. Any
// in-progress edit state of the previous recording is discarded.
func (l *Library) SetRecording(ctx context.Context, blob []byte, duration float64) error {
	if err := l.store.Save(ctx, blob, duration); err != nil {
		return fmt.Errorf("persisting recording: %w", err)
	}
	l.mu.Lock()
	l.blob = blob
	l.duration = duration
	l.ed = editor.New(duration, l.policy)
	l.mu.Unlock()
	return nil
}

// Recording returns the loaded blob and its duration.
func (l *Library) Recording() ([]byte, float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ed == nil {
		return nil, 0, ErrNoRecording
	}
	return l.blob, l.duration, nil
}

// Editor returns the editor for the loaded recording, or nil when none is
// loaded. The editor is safe for concurrent use.
func (l *Library) Editor() *editor.Editor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ed
}

// Delete drops the recording from memory and the store.
func (l *Library) Delete(ctx context.Context) error {
	if err := l.store.Delete(ctx); err != nil {
		return fmt.Errorf("deleting recording: %w", err)
	}
	l.mu.Lock()
	l.blob = nil
	l.duration = 0
	l.ed = nil
	l.mu.Unlock()
	return nil
}

// SetPolicy applies a reloaded edit policy. The running editor picks it up
// for subsequent operations; segments already cut stay as they are.
func (l *Library) SetPolicy(p editor.Policy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.policy = p
	if l.ed != nil {
		l.ed.SetPolicy(p)
	}
}

// Probe runs the engine's analyzer over the loaded recording. When the
// probed duration differs from what the session reported and the recording
// has not been edited yet, the editor timeline is resynced to the probed
// value.
func (l *Library) Probe(ctx context.Context) (*engine.ProbeResult, bool, error) {
	l.mu.Lock()
	ed, blob := l.ed, l.blob
	l.mu.Unlock()
	if ed == nil {
		return nil, false, ErrNoRecording
	}

	result, err := l.engine.Probe(ctx, blob)
	if err != nil {
		return nil, false, err
	}

	synced := false
	if result.Duration > 0 && ed.SyncDurationIfUntouched(result.Duration) {
		l.mu.Lock()
		l.duration = result.Duration
		l.mu.Unlock()
		if err := l.store.Save(ctx, blob, result.Duration); err != nil {
			l.logger.Warn("Persisting synced duration failed", "error", err)
		}
		synced = true
		l.logger.Info("Synced editor timeline to probed duration", "duration", result.Duration)
	}
	return result, synced, nil
}

// Filmstrip renders a preview strip of frames sampled evenly across the
// loaded recording.
func (l *Library) Filmstrip() (image.Image, error) {
	l.mu.Lock()
	ed, blob := l.ed, l.blob
	l.mu.Unlock()
	if ed == nil {
		return nil, ErrNoRecording
	}
	frames, err := recorder.SampleVideoFrames(blob, l.thumb.Cells)
	if err != nil {
		return nil, fmt.Errorf("decoding recording: %w", err)
	}
	return l.thumb.Strip(frames)
}
