package media

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TestPatternSource is a synthetic video source rendering SMPTE-style color
// bars with a moving block, used by tests and the CLI test mode.
type TestPatternSource struct {
	config VideoConfig

	running atomic.Bool
	cancel  context.CancelFunc
	frameCh chan *VideoFrame
	done    chan struct{}
	doneMu  sync.Once
	start   time.Time
}

var barColors = []color.RGBA{
	{R: 192, G: 192, B: 192, A: 255}, // white
	{R: 192, G: 192, B: 0, A: 255},   // yellow
	{R: 0, G: 192, B: 192, A: 255},   // cyan
	{R: 0, G: 192, B: 0, A: 255},     // green
	{R: 192, G: 0, B: 192, A: 255},   // magenta
	{R: 192, G: 0, B: 0, A: 255},     // red
	{R: 0, G: 0, B: 192, A: 255},     // blue
}

// NewTestPatternSource creates a test pattern source.
// Zero or negative dimensions fall back to 1280x720@30.
func NewTestPatternSource(config VideoConfig) *TestPatternSource {
	if config.Width <= 0 {
		config.Width = 1280
	}
	if config.Height <= 0 {
		config.Height = 720
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}
	return &TestPatternSource{
		config:  config,
		frameCh: make(chan *VideoFrame, 3),
		done:    make(chan struct{}),
	}
}

// Start begins generating frames.
func (s *TestPatternSource) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.start = time.Now()
	go s.generate(ctx)
	return nil
}

// Stop halts frame generation and ends the track.
func (s *TestPatternSource) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.signalDone()
	return nil
}

func (s *TestPatternSource) signalDone() {
	s.doneMu.Do(func() { close(s.done) })
}

// Done reports source termination.
func (s *TestPatternSource) Done() <-chan struct{} { return s.done }

// Config returns the source configuration.
func (s *TestPatternSource) Config() VideoConfig { return s.config }

// ReadFrame returns the next generated frame.
func (s *TestPatternSource) ReadFrame(ctx context.Context) (*VideoFrame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrSourceEnded
	case frame := <-s.frameCh:
		return frame, nil
	}
}

func (s *TestPatternSource) generate(ctx context.Context) {
	defer s.signalDone()

	interval := time.Second / time.Duration(s.config.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var n int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := s.render(n)
			n++
			select {
			case s.frameCh <- frame:
			default:
				// Drop frame if the consumer is behind.
			}
		}
	}
}

func (s *TestPatternSource) render(n int) *VideoFrame {
	w, h := s.config.Width, s.config.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	barWidth := w / len(barColors)
	for i, c := range barColors {
		x0 := i * barWidth
		x1 := x0 + barWidth
		if i == len(barColors)-1 {
			x1 = w
		}
		for y := 0; y < h; y++ {
			for x := x0; x < x1; x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}

	// Moving block so successive frames differ.
	block := h / 8
	bx := (n * 4) % (w - block)
	for y := h - block; y < h; y++ {
		for x := bx; x < bx+block; x++ {
			img.SetRGBA(x, y, color.RGBA{A: 255})
		}
	}

	return &VideoFrame{
		Image:     img,
		Timestamp: time.Duration(n) * time.Second / time.Duration(s.config.FPS),
	}
}

// ToneSource is a synthetic audio source generating a sine tone.
type ToneSource struct {
	sampleRate int
	channels   int
	frequency  float64

	running atomic.Bool
	cancel  context.CancelFunc
	chunkCh chan *AudioChunk
	done    chan struct{}
	doneMu  sync.Once
}

// NewToneSource creates a sine tone source. Defaults: 48kHz stereo 440Hz.
func NewToneSource(sampleRate, channels int, frequency float64) *ToneSource {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	if channels <= 0 {
		channels = 2
	}
	if frequency <= 0 {
		frequency = 440
	}
	return &ToneSource{
		sampleRate: sampleRate,
		channels:   channels,
		frequency:  frequency,
		chunkCh:    make(chan *AudioChunk, 4),
		done:       make(chan struct{}),
	}
}

// Start begins generating audio chunks.
func (s *ToneSource) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go s.generate(ctx)
	return nil
}

// Stop halts generation and ends the track.
func (s *ToneSource) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.doneMu.Do(func() { close(s.done) })
	return nil
}

// Done reports source termination.
func (s *ToneSource) Done() <-chan struct{} { return s.done }

// SampleRate returns the sample rate.
func (s *ToneSource) SampleRate() int { return s.sampleRate }

// Channels returns the channel count.
func (s *ToneSource) Channels() int { return s.channels }

// ReadChunk returns the next generated chunk.
func (s *ToneSource) ReadChunk(ctx context.Context) (*AudioChunk, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrSourceEnded
	case chunk := <-s.chunkCh:
		return chunk, nil
	}
}

func (s *ToneSource) generate(ctx context.Context) {
	defer s.doneMu.Do(func() { close(s.done) })

	const chunkMs = 20
	frames := s.sampleRate * chunkMs / 1000
	ticker := time.NewTicker(chunkMs * time.Millisecond)
	defer ticker.Stop()

	var offset int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			samples := make([]int16, frames*s.channels)
			for i := 0; i < frames; i++ {
				v := int16(10000 * math.Sin(2*math.Pi*s.frequency*float64(offset+i)/float64(s.sampleRate)))
				for ch := 0; ch < s.channels; ch++ {
					samples[i*s.channels+ch] = v
				}
			}
			chunk := &AudioChunk{
				Samples:    samples,
				SampleRate: s.sampleRate,
				Channels:   s.channels,
				Timestamp:  time.Duration(offset) * time.Second / time.Duration(s.sampleRate),
			}
			offset += frames
			select {
			case s.chunkCh <- chunk:
			default:
			}
		}
	}
}
