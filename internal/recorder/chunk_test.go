package recorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/media"
)

func liveStream(t *testing.T, ctx context.Context) *media.Stream {
	t.Helper()
	src := media.NewTestPatternSource(media.VideoConfig{Width: 160, Height: 90, FPS: 60})
	if err := src.Start(ctx); err != nil {
		t.Fatalf("starting source: %v", err)
	}
	t.Cleanup(func() { src.Stop() })
	return &media.Stream{Video: []media.VideoSource{src}}
}

func TestStartRejectsDeadStream(t *testing.T) {
	r := NewChunkRecorder(2_000_000, logging.GetLogger("test"))

	if err := r.Start(context.Background(), &media.Stream{}); err != ErrNoLiveVideo {
		t.Fatalf("expected ErrNoLiveVideo for empty stream, got %v", err)
	}

	ended := media.NewTestPatternSource(media.VideoConfig{})
	ended.Stop()
	stream := &media.Stream{Video: []media.VideoSource{ended}}
	if err := r.Start(context.Background(), stream); err != ErrNoLiveVideo {
		t.Fatalf("expected ErrNoLiveVideo for ended track, got %v", err)
	}
}

func TestRecorderEmitsChunks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := NewChunkRecorder(2_000_000, logging.GetLogger("test"))
	if err := r.Start(ctx, liveStream(t, ctx)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case chunk := <-r.Chunks():
		if len(chunk.Data) == 0 {
			t.Error("received empty chunk")
		}
		if chunk.Data[0] != recordVideo {
			t.Errorf("expected video record marker, got %q", chunk.Data[0])
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no chunk emitted")
	}

	r.Stop()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Stop")
	}
}

func TestRequestDataFlushesEarly(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := NewChunkRecorder(2_000_000, logging.GetLogger("test"))
	r.timeslice = time.Hour // never flush on the ticker
	if err := r.Start(ctx, liveStream(t, ctx)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop()

	// Wait for at least one frame to land in the working buffer.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		n := len(r.buf)
		r.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	r.RequestData()
	select {
	case <-r.Chunks():
	case <-time.After(time.Second):
		t.Fatal("RequestData did not flush buffered data")
	}
}

func TestStopIdempotentSingleTerminalNotification(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := NewChunkRecorder(2_000_000, logging.GetLogger("test"))
	if err := r.Start(ctx, liveStream(t, ctx)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	r.Stop()
	r.Stop() // must not panic on double close

	// The chunks channel must be closed exactly once and drain cleanly.
	for range r.Chunks() {
	}
}

func TestStopConcurrentWithFlushRequests(t *testing.T) {
	// Stop must never race a flush in flight; the emit loop is the only
	// goroutine that sends on or closes the chunk channel.
	for i := 0; i < 25; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		r := NewChunkRecorder(2_000_000, logging.GetLogger("test"))
		if err := r.Start(ctx, liveStream(t, ctx)); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r.RequestData()
			}
		}()
		r.Stop()
		wg.Wait()

		for range r.Chunks() {
		}
		select {
		case <-r.Done():
		case <-time.After(time.Second):
			t.Fatal("Done not closed after Stop")
		}
		cancel()
	}
}

func TestPauseDiscardsMedia(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := NewChunkRecorder(2_000_000, logging.GetLogger("test"))
	r.Pause()
	if err := r.Start(ctx, liveStream(t, ctx)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop()

	time.Sleep(300 * time.Millisecond)
	r.mu.Lock()
	buffered := len(r.buf)
	r.mu.Unlock()
	if buffered != 0 {
		t.Errorf("recorder buffered %d bytes while paused", buffered)
	}

	r.Resume()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		n := len(r.buf)
		r.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("no media buffered after Resume")
}
