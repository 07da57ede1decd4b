// Package audiomix merges one or more live PCM sources into a single output
// track. A mixer is only ever constructed when at least one audio source
// exists; sessions with no audio carry no audio track at all.
package audiomix

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/media"
)

// ErrNoSources is returned when a mixer is constructed without inputs.
var ErrNoSources = errors.New("audiomix: mixer requires at least one source")

const (
	outputSampleRate = 48000
	outputChannels   = 2
	mixInterval      = 20 * time.Millisecond
)

// Mixer combines N audio inputs into one output track. It implements
// media.AudioSource so the merged track plugs into the combined stream the
// same way a raw source would.
type Mixer struct {
	sources []media.AudioSource
	logger  logging.Logger

	running   atomic.Bool
	suspended atomic.Bool
	cancel    context.CancelFunc
	chunkCh   chan *media.AudioChunk
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
	start     time.Time
}

// New creates a mixer over the given sources.
// Returns ErrNoSources for an empty input list.
func New(sources []media.AudioSource, logger logging.Logger) (*Mixer, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	return &Mixer{
		sources: sources,
		logger:  logger,
		chunkCh: make(chan *media.AudioChunk, 4),
		done:    make(chan struct{}),
	}, nil
}

// Start begins pulling from all inputs and emitting mixed chunks.
func (m *Mixer) Start(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return nil
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.start = time.Now()
	for _, src := range m.sources {
		if err := src.Start(ctx); err != nil {
			m.cancel()
			m.running.Store(false)
			return err
		}
	}
	go m.mixLoop(ctx)
	return nil
}

// Stop halts mixing without stopping the underlying sources; source
// lifecycle belongs to the owning session.
func (m *Mixer) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.doneOnce.Do(func() { close(m.done) })
	return nil
}

// Suspend pauses output while keeping the mixing graph alive.
// Input chunks arriving while suspended are discarded.
func (m *Mixer) Suspend() {
	m.suspended.Store(true)
}

// Resume reverses Suspend.
func (m *Mixer) Resume() {
	m.suspended.Store(false)
}

// Close releases the mixer. Idempotent.
func (m *Mixer) Close() error {
	m.closeOnce.Do(func() {
		_ = m.Stop()
	})
	return nil
}

// Done reports mixer termination.
func (m *Mixer) Done() <-chan struct{} { return m.done }

// SampleRate returns the output sample rate.
func (m *Mixer) SampleRate() int { return outputSampleRate }

// Channels returns the output channel count.
func (m *Mixer) Channels() int { return outputChannels }

// ReadChunk returns the next mixed chunk.
func (m *Mixer) ReadChunk(ctx context.Context) (*media.AudioChunk, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, media.ErrSourceEnded
	case chunk := <-m.chunkCh:
		return chunk, nil
	}
}

func (m *Mixer) mixLoop(ctx context.Context) {
	defer m.doneOnce.Do(func() { close(m.done) })

	ticker := time.NewTicker(mixInterval)
	defer ticker.Stop()

	frames := outputSampleRate * int(mixInterval/time.Millisecond) / 1000

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.suspended.Load() {
				m.drainInputs(ctx)
				continue
			}
			mixed := m.mixOnce(ctx, frames)
			if mixed == nil {
				continue
			}
			select {
			case m.chunkCh <- mixed:
			default:
				// Consumer behind, drop.
			}
		}
	}
}

// drainInputs discards pending input while suspended so sources do not
// back up and resume does not replay stale audio.
func (m *Mixer) drainInputs(ctx context.Context) {
	for _, src := range m.sources {
		readCtx, cancel := context.WithTimeout(ctx, time.Millisecond)
		_, _ = src.ReadChunk(readCtx)
		cancel()
	}
}

// mixOnce pulls one chunk from each live input and saturating-sums them
// into a single stereo S16 buffer.
func (m *Mixer) mixOnce(ctx context.Context, frames int) *media.AudioChunk {
	acc := make([]int32, frames*outputChannels)
	contributed := 0

	for _, src := range m.sources {
		readCtx, cancel := context.WithTimeout(ctx, mixInterval/2)
		chunk, err := src.ReadChunk(readCtx)
		cancel()
		if err != nil || chunk == nil {
			continue
		}
		addChunk(acc, chunk)
		contributed++
	}
	if contributed == 0 {
		return nil
	}

	samples := make([]int16, len(acc))
	for i, v := range acc {
		samples[i] = clampS16(v)
	}
	return &media.AudioChunk{
		Samples:    samples,
		SampleRate: outputSampleRate,
		Channels:   outputChannels,
		Timestamp:  time.Since(m.start),
	}
}

// addChunk accumulates a source chunk into the stereo accumulator,
// duplicating mono inputs across both channels.
func addChunk(acc []int32, chunk *media.AudioChunk) {
	frames := min(len(acc)/outputChannels, chunk.FrameCount())
	for i := 0; i < frames; i++ {
		var left, right int32
		if chunk.Channels == 1 {
			left = int32(chunk.Samples[i])
			right = left
		} else {
			left = int32(chunk.Samples[i*chunk.Channels])
			right = int32(chunk.Samples[i*chunk.Channels+1])
		}
		acc[i*outputChannels] += left
		acc[i*outputChannels+1] += right
	}
}

func clampS16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
