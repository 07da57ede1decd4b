package compositor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/media"
)

// fakeSource delivers frames pushed through a channel, simulating a live
// capture track the test controls.
type fakeSource struct {
	cfg     media.VideoConfig
	frameCh chan *media.VideoFrame
	done    chan struct{}
}

func newFakeSource(w, h int) *fakeSource {
	return &fakeSource{
		cfg:     media.VideoConfig{Width: w, Height: h, FPS: 30},
		frameCh: make(chan *media.VideoFrame, 8),
		done:    make(chan struct{}),
	}
}

func (s *fakeSource) push(c color.RGBA) {
	img := image.NewRGBA(image.Rect(0, 0, s.cfg.Width, s.cfg.Height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	s.frameCh <- &media.VideoFrame{Image: img}
}

func (s *fakeSource) Start(ctx context.Context) error { return nil }
func (s *fakeSource) Stop() error                     { return nil }
func (s *fakeSource) Done() <-chan struct{}           { return s.done }
func (s *fakeSource) Config() media.VideoConfig       { return s.cfg }

func (s *fakeSource) ReadFrame(ctx context.Context) (*media.VideoFrame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, media.ErrSourceEnded
	case f := <-s.frameCh:
		return f, nil
	}
}

func testConfig() Config {
	return Config{Width: 320, Height: 180, FPS: 30, ReadyTimeout: time.Second}
}

func TestStartDrawsBeforeReturning(t *testing.T) {
	primary := newFakeSource(320, 180)
	primary.push(color.RGBA{R: 200, A: 255})

	c := New(testConfig(), logging.GetLogger("test"))
	stream, err := c.Start(context.Background(), primary, nil, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	// The surface must be non-empty the moment Start returns.
	if c.surface.Pix[3] == 0 {
		t.Error("surface alpha is zero after Start, first frame was not drawn")
	}
	if got := c.Stats().FramesDrawn; got == 0 {
		t.Error("no frames drawn after Start")
	}

	if !stream.LiveVideo() {
		t.Error("combined stream reports no live video track")
	}
	cfg := stream.Video[0].Config()
	if cfg.Width != 320 || cfg.Height != 180 {
		t.Errorf("captured track has dimensions %dx%d", cfg.Width, cfg.Height)
	}
}

func TestStartFailsWhenPrimaryNeverReady(t *testing.T) {
	primary := newFakeSource(320, 180) // never pushes a frame

	cfg := testConfig()
	cfg.ReadyTimeout = 50 * time.Millisecond
	c := New(cfg, logging.GetLogger("test"))

	_, err := c.Start(context.Background(), primary, nil, nil)
	if err == nil {
		t.Fatal("expected readiness error")
	}
	if !errors.Is(err, ErrPrimaryNotReady) {
		t.Errorf("expected ErrPrimaryNotReady, got %v", err)
	}
}

func TestCapturedFrames(t *testing.T) {
	primary := newFakeSource(320, 180)
	primary.push(color.RGBA{G: 255, A: 255})

	c := New(testConfig(), logging.GetLogger("test"))
	stream, err := c.Start(context.Background(), primary, nil, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	frame, err := stream.Video[0].ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if frame.Width() != 320 || frame.Height() != 180 {
		t.Errorf("unexpected frame dimensions %dx%d", frame.Width(), frame.Height())
	}
	// Green fill from the primary must be present.
	if frame.Image.Pix[1] == 0 {
		t.Error("captured frame does not contain primary content")
	}
}

func TestPIPOverlayDrawn(t *testing.T) {
	primary := newFakeSource(320, 180)
	primary.push(color.RGBA{A: 255}) // black primary
	secondary := newFakeSource(64, 36)
	secondary.push(color.RGBA{R: 255, A: 255}) // red camera

	c := New(testConfig(), logging.GetLogger("test"))
	c.SetPIPPosition(PIPConfig{Position: PositionBottomRight, Size: 0.2})

	_, err := c.Start(context.Background(), primary, secondary, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	// Let the loop pick up the secondary frame.
	deadline := time.Now().Add(2 * time.Second)
	rect := c.PIPPosition().placement(320, 180, 64, 36)
	mid := image.Pt(rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2)
	for time.Now().Before(deadline) {
		r, _, _, _ := c.surface.At(mid.X, mid.Y).RGBA()
		if r > 0x8000 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("PIP overlay never appeared on the surface")
}

func TestPauseKeepsTrackLive(t *testing.T) {
	primary := newFakeSource(320, 180)
	primary.push(color.RGBA{B: 255, A: 255})

	c := New(testConfig(), logging.GetLogger("test"))
	stream, err := c.Start(context.Background(), primary, nil, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	c.Pause()
	time.Sleep(50 * time.Millisecond) // let any in-flight tick finish
	drawnAtPause := c.Stats().FramesDrawn

	// While paused the surface is frozen but frames keep flowing.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := stream.Video[0].ReadFrame(ctx); err != nil {
		t.Fatalf("no frames while paused: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := c.Stats().FramesDrawn; got != drawnAtPause {
		t.Errorf("draw count advanced while paused: %d -> %d", drawnAtPause, got)
	}

	c.Resume()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Stats().FramesDrawn > drawnAtPause {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("draw count did not advance after Resume")
}

func TestFirstCapturedFrameTimestamp(t *testing.T) {
	primary := newFakeSource(320, 180)
	primary.push(color.RGBA{R: 255, A: 255})

	c := New(testConfig(), logging.GetLogger("test"))
	stream, err := c.Start(context.Background(), primary, nil, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	frame, err := stream.Video[0].ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	// The synchronous first publish must carry a timestamp measured from the
	// session start, not from the zero time.
	if frame.Timestamp < 0 || frame.Timestamp > time.Minute {
		t.Errorf("first frame timestamp = %v", frame.Timestamp)
	}
}

func TestStopWhileCapturing(t *testing.T) {
	// Stopping a live camera session must not race the draw loop's source
	// reads. Exercised repeatedly so the race detector gets a fair shot.
	for i := 0; i < 10; i++ {
		primary := newFakeSource(320, 180)
		primary.push(color.RGBA{A: 255})
		secondary := newFakeSource(64, 36)
		secondary.push(color.RGBA{R: 255, A: 255})

		c := New(testConfig(), logging.GetLogger("test"))
		stream, err := c.Start(context.Background(), primary, secondary, nil)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		readerDone := make(chan struct{})
		go func() {
			defer close(readerDone)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			for {
				if _, err := stream.Video[0].ReadFrame(ctx); err != nil {
					return
				}
			}
		}()

		time.Sleep(10 * time.Millisecond)
		c.Stop()
		<-readerDone
	}
}

func TestStopIdempotent(t *testing.T) {
	primary := newFakeSource(320, 180)
	primary.push(color.RGBA{A: 255})

	c := New(testConfig(), logging.GetLogger("test"))
	if _, err := c.Start(context.Background(), primary, nil, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	c.Stop()
	c.Stop()

	select {
	case <-c.done:
	default:
		t.Error("done not closed after Stop")
	}
}
