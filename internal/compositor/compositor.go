// Package compositor renders a primary video source plus an optional
// picture-in-picture overlay onto an off-screen surface at a fixed rate and
// exposes the surface as a capturable video track.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/recnode/recnode/internal/audiomix"
	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/media"
	"github.com/recnode/recnode/internal/metrics"
)

// ErrPrimaryNotReady is returned when the primary source never delivers a
// first frame within the readiness window. Capturing the surface before the
// first draw would record an empty stream, so Start fails instead.
var ErrPrimaryNotReady = errors.New("compositor: primary source not ready")

// Config configures the render surface and loop.
type Config struct {
	Width        int
	Height       int
	FPS          int
	ReadyTimeout time.Duration // max wait for the primary's first frame
}

// DefaultConfig returns a 1080p30 canvas with a 5s readiness window.
func DefaultConfig() Config {
	return Config{Width: 1920, Height: 1080, FPS: 30, ReadyTimeout: 5 * time.Second}
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = 1920
	}
	if c.Height <= 0 {
		c.Height = 1080
	}
	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 5 * time.Second
	}
	// Even dimensions keep downstream encoders happy.
	c.Width &^= 1
	c.Height &^= 1
	return c
}

// Stats is a snapshot of render loop counters.
type Stats struct {
	FramesDrawn   uint64
	FramesDropped uint64
}

// Compositor owns the render surface and draw loop for one capture session.
type Compositor struct {
	config Config
	logger logging.Logger

	primary   media.VideoSource
	secondary media.VideoSource
	mixer     *audiomix.Mixer

	surface       *image.RGBA
	lastPrimary   *media.VideoFrame
	lastSecondary *media.VideoFrame

	pipMu sync.RWMutex
	pip   PIPConfig

	running  atomic.Bool
	paused   atomic.Bool
	cancel   context.CancelFunc
	frameCh  chan *media.VideoFrame
	done     chan struct{}
	doneOnce sync.Once
	stopOnce sync.Once
	start    time.Time

	framesDrawn   atomic.Uint64
	framesDropped atomic.Uint64
}

// New creates a compositor with the given canvas configuration.
func New(config Config, logger logging.Logger) *Compositor {
	config = config.withDefaults()
	return &Compositor{
		config:  config,
		logger:  logger,
		pip:     DefaultPIPConfig(),
		surface: image.NewRGBA(image.Rect(0, 0, config.Width, config.Height)),
		frameCh: make(chan *media.VideoFrame, 3),
		done:    make(chan struct{}),
	}
}

// Start wires the sources, waits for the primary to deliver its first frame,
// draws one frame synchronously so the surface is never captured empty, then
// starts the continuous draw loop and returns the combined stream.
//
// secondary and mixer may be nil. A non-nil mixer is owned by the compositor
// from this point: Pause suspends it and Stop closes it.
func (c *Compositor) Start(ctx context.Context, primary media.VideoSource, secondary media.VideoSource, mixer *audiomix.Mixer) (*media.Stream, error) {
	if primary == nil {
		return nil, fmt.Errorf("compositor: primary source required")
	}
	if !c.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("compositor: already started")
	}

	c.primary = primary
	c.secondary = secondary
	c.mixer = mixer

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if err := primary.Start(loopCtx); err != nil {
		c.teardown()
		return nil, fmt.Errorf("compositor: starting primary: %w", err)
	}
	if secondary != nil {
		if err := secondary.Start(loopCtx); err != nil {
			c.teardown()
			return nil, fmt.Errorf("compositor: starting secondary: %w", err)
		}
	}
	if mixer != nil {
		if err := mixer.Start(loopCtx); err != nil {
			c.teardown()
			return nil, fmt.Errorf("compositor: starting mixer: %w", err)
		}
	}

	// Block until the primary is decodable. A source that never produces a
	// frame (permission revoked mid-negotiation, track ended early) must
	// fail here rather than yield an indefinitely black stream.
	readyCtx, readyCancel := context.WithTimeout(loopCtx, c.config.ReadyTimeout)
	first, err := primary.ReadFrame(readyCtx)
	readyCancel()
	if err != nil {
		c.teardown()
		return nil, fmt.Errorf("%w: %v", ErrPrimaryNotReady, err)
	}
	c.lastPrimary = first
	c.start = time.Now()

	// First draw happens before any consumer can capture the surface.
	c.renderFrame()
	c.publishSurface()

	go c.drawLoop(loopCtx)

	stream := &media.Stream{Video: []media.VideoSource{c.captureTrack()}}
	if mixer != nil {
		stream.Audio = append(stream.Audio, mixer)
	}
	return stream, nil
}

// Pause freezes the rendered image. The loop keeps ticking and republishing
// the last frame so the captured track stays live, and the owned mixer is
// suspended.
func (c *Compositor) Pause() {
	if c.paused.CompareAndSwap(false, true) && c.mixer != nil {
		c.mixer.Suspend()
	}
}

// Resume reverses Pause.
func (c *Compositor) Resume() {
	if c.paused.CompareAndSwap(true, false) && c.mixer != nil {
		c.mixer.Resume()
	}
}

// SetPIPPosition live-updates overlay placement without interrupting the loop.
func (c *Compositor) SetPIPPosition(cfg PIPConfig) {
	c.pipMu.Lock()
	c.pip = cfg.normalize()
	c.pipMu.Unlock()
}

// PIPPosition returns the current normalized overlay placement.
func (c *Compositor) PIPPosition() PIPConfig {
	c.pipMu.RLock()
	defer c.pipMu.RUnlock()
	return c.pip
}

// Stop cancels the render loop and closes the owned mixer. Safe to call
// multiple times.
func (c *Compositor) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.mixer != nil {
			_ = c.mixer.Close()
		}
		c.teardown()
	})
}

// teardown marks the compositor terminal. Source fields are written only in
// Start and stay set afterwards; the draw loop reads them concurrently with
// Stop, so they must not be cleared here.
func (c *Compositor) teardown() {
	c.running.Store(false)
	c.doneOnce.Do(func() { close(c.done) })
}

// Stats returns render loop counters.
func (c *Compositor) Stats() Stats {
	return Stats{
		FramesDrawn:   c.framesDrawn.Load(),
		FramesDropped: c.framesDropped.Load(),
	}
}

func (c *Compositor) drawLoop(ctx context.Context) {
	interval := time.Second / time.Duration(c.config.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.paused.Load() {
				c.pollSources(ctx, interval)
				c.renderFrame()
			}
			c.publishSurface()
		}
	}
}

// pollSources refreshes the latest decoded frame from each source without
// blocking the tick for longer than half the frame interval.
func (c *Compositor) pollSources(ctx context.Context, interval time.Duration) {
	primary, secondary := c.primary, c.secondary
	if primary != nil {
		readCtx, cancel := context.WithTimeout(ctx, interval/2)
		if frame, err := primary.ReadFrame(readCtx); err == nil {
			c.lastPrimary = frame
		}
		cancel()
	}
	if secondary != nil {
		readCtx, cancel := context.WithTimeout(ctx, interval/4)
		if frame, err := secondary.ReadFrame(readCtx); err == nil {
			c.lastSecondary = frame
		}
		cancel()
	}
}

// renderFrame draws the primary full-surface and the PIP overlay on top.
func (c *Compositor) renderFrame() {
	if c.lastPrimary != nil {
		drawScaled(c.surface, c.surface.Rect, c.lastPrimary.Image)
	}
	if c.lastSecondary != nil {
		pip := c.PIPPosition()
		rect := pip.placement(c.config.Width, c.config.Height,
			c.lastSecondary.Width(), c.lastSecondary.Height())
		drawOverlay(c.surface, rect, c.lastSecondary.Image)
	}
	c.framesDrawn.Add(1)
	metrics.CompositorFramesDrawn.Inc()
}

// publishSurface snapshots the surface into the capture channel.
func (c *Compositor) publishSurface() {
	snapshot := image.NewRGBA(c.surface.Rect)
	copy(snapshot.Pix, c.surface.Pix)
	frame := &media.VideoFrame{Image: snapshot, Timestamp: time.Since(c.start)}
	select {
	case c.frameCh <- frame:
	default:
		c.framesDropped.Add(1)
		metrics.CompositorFramesDropped.Inc()
	}
}

// captureTrack exposes the render surface as a media.VideoSource.
func (c *Compositor) captureTrack() media.VideoSource {
	return &surfaceTrack{c: c}
}

type surfaceTrack struct {
	c *Compositor
}

func (t *surfaceTrack) Start(ctx context.Context) error { return nil }

func (t *surfaceTrack) Stop() error {
	t.c.Stop()
	return nil
}

func (t *surfaceTrack) Done() <-chan struct{} { return t.c.done }

func (t *surfaceTrack) Config() media.VideoConfig {
	return media.VideoConfig{
		Width:  t.c.config.Width,
		Height: t.c.config.Height,
		FPS:    t.c.config.FPS,
	}
}

func (t *surfaceTrack) ReadFrame(ctx context.Context) (*media.VideoFrame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.c.done:
		return nil, media.ErrSourceEnded
	case frame := <-t.c.frameCh:
		return frame, nil
	}
}
