package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/recnode/recnode/internal/capture"
	"github.com/recnode/recnode/internal/events"
	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/media"
	"github.com/recnode/recnode/internal/recorder"
)

// fakeRecorder emits one canned chunk at start and records the stream it was
// given, so tests can assert pipeline wiring without real media timing.
type fakeRecorder struct {
	payload []byte

	mu       sync.Mutex
	stream   *media.Stream
	chunks   chan recorder.Chunk
	done     chan struct{}
	stopOnce sync.Once
	stops    atomic.Int32
}

func newFakeRecorder(payload []byte) *fakeRecorder {
	return &fakeRecorder{
		payload: payload,
		chunks:  make(chan recorder.Chunk, 4),
		done:    make(chan struct{}),
	}
}

func (f *fakeRecorder) Start(ctx context.Context, stream *media.Stream) error {
	if stream == nil || !stream.LiveVideo() {
		return recorder.ErrNoLiveVideo
	}
	f.mu.Lock()
	f.stream = stream
	f.mu.Unlock()
	if len(f.payload) > 0 {
		f.chunks <- recorder.Chunk{Data: f.payload}
	}
	return nil
}

func (f *fakeRecorder) Pause()       {}
func (f *fakeRecorder) Resume()      {}
func (f *fakeRecorder) RequestData() {}

func (f *fakeRecorder) Stop() {
	f.stops.Add(1)
	f.stopOnce.Do(func() {
		close(f.chunks)
		close(f.done)
	})
}

func (f *fakeRecorder) Chunks() <-chan recorder.Chunk { return f.chunks }
func (f *fakeRecorder) Done() <-chan struct{}         { return f.done }

func (f *fakeRecorder) capturedStream() *media.Stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stream
}

func fastOptions() Options {
	return Options{FlushGrace: 10 * time.Millisecond}
}

func testManager(engine capture.Engine, rec *fakeRecorder) (*Manager, *events.Bus) {
	bus := events.New()
	m := NewManager(engine, bus, logging.GetLogger("test"))
	if rec != nil {
		m.newRecorder = func(int) recorder.Recorder { return rec }
	}
	return m, bus
}

func TestStartScreenOnly(t *testing.T) {
	rec := newFakeRecorder([]byte("blob"))
	m, _ := testManager(capture.NewTestEngine(), rec)

	s, err := m.Start(context.Background(), fastOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.Mode() != ModeScreenOnly {
		t.Errorf("mode = %q, want %q", s.Mode(), ModeScreenOnly)
	}
	if s.State() != StateActive {
		t.Errorf("state = %q, want %q", s.State(), StateActive)
	}

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if string(result.Blob) != "blob" {
		t.Errorf("blob = %q", result.Blob)
	}
	if result.Duration <= 0 {
		t.Errorf("duration = %v, want > 0", result.Duration)
	}
	if s.State() != StateIdle {
		t.Errorf("terminal state = %q, want %q", s.State(), StateIdle)
	}
}

func TestSecondSessionRejectedWhileActive(t *testing.T) {
	rec := newFakeRecorder([]byte("x"))
	m, _ := testManager(capture.NewTestEngine(), rec)

	s, err := m.Start(context.Background(), fastOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		s.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Wait(ctx)
	}()

	if _, err := m.Start(context.Background(), fastOptions()); err == nil {
		t.Fatal("second Start succeeded while a session was active")
	} else if se, ok := err.(*Error); !ok || se.Code != ErrCodeSessionBusy {
		t.Errorf("expected %s, got %v", ErrCodeSessionBusy, err)
	}
}

func TestAcquisitionFailureLeavesNothingRunning(t *testing.T) {
	engine := capture.NewTestEngine()
	engine.DenyDisplay = true
	m, _ := testManager(engine, newFakeRecorder(nil))

	_, err := m.Start(context.Background(), fastOptions())
	if err == nil {
		t.Fatal("Start succeeded despite denied display capture")
	}
	if !capture.IsPermissionDenied(err) {
		t.Errorf("expected permission-denied cause, got %v", err)
	}
	if m.Current() != nil {
		t.Error("failed start left a current session behind")
	}

	// A later attempt with permission granted must work.
	engine.DenyDisplay = false
	rec := newFakeRecorder([]byte("x"))
	m.newRecorder = func(int) recorder.Recorder { return rec }
	s, err := m.Start(context.Background(), fastOptions())
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	s.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Wait(ctx)
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		camera, mic bool
		want        Mode
	}{
		{false, false, ModeScreenOnly},
		{false, true, ModeScreenPlusMic},
		{true, false, ModeScreenPlusCam},
		{true, true, ModeScreenPlusCamMic},
	}
	for _, tt := range tests {
		if got := resolveMode(tt.camera, tt.mic); got != tt.want {
			t.Errorf("resolveMode(%v, %v) = %q, want %q", tt.camera, tt.mic, got, tt.want)
		}
	}
}

func TestScreenOnlyCarriesNoAudioTrack(t *testing.T) {
	rec := newFakeRecorder([]byte("x"))
	m, _ := testManager(capture.NewTestEngine(), rec)

	s, err := m.Start(context.Background(), fastOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer waitStopped(t, s)

	stream := rec.capturedStream()
	if stream == nil {
		t.Fatal("recorder never received a stream")
	}
	if len(stream.Audio) != 0 {
		t.Errorf("screen-only stream has %d audio tracks, want 0", len(stream.Audio))
	}
}

func TestMicSessionCarriesMixedAudio(t *testing.T) {
	rec := newFakeRecorder([]byte("x"))
	m, _ := testManager(capture.NewTestEngine(), rec)

	opts := fastOptions()
	opts.Mic = true
	s, err := m.Start(context.Background(), opts)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer waitStopped(t, s)

	if s.Mode() != ModeScreenPlusMic {
		t.Errorf("mode = %q, want %q", s.Mode(), ModeScreenPlusMic)
	}
	stream := rec.capturedStream()
	if len(stream.Audio) != 1 {
		t.Fatalf("stream has %d audio tracks, want 1 mixed track", len(stream.Audio))
	}
	if stream.Audio[0].Channels() != 2 {
		t.Errorf("mixed track channels = %d, want 2", stream.Audio[0].Channels())
	}
}

func TestFinalizeRunsExactlyOnce(t *testing.T) {
	rec := newFakeRecorder([]byte("x"))
	m, bus := testManager(capture.NewTestEngine(), rec)

	var finalizing atomic.Int32
	unsub := bus.Subscribe(func(e events.SessionStateEvent) {
		if e.State == string(StateFinalizing) {
			finalizing.Add(1)
		}
	})
	defer unsub()

	var saved atomic.Int32
	unsubSaved := bus.Subscribe(func(events.RecordingSavedEvent) { saved.Add(1) })
	defer unsubSaved()

	s, err := m.Start(context.Background(), fastOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	// Event delivery is asynchronous, give the dispatcher a beat.
	time.Sleep(100 * time.Millisecond)
	if n := finalizing.Load(); n != 1 {
		t.Errorf("finalizing transitions = %d, want 1", n)
	}
	if n := saved.Load(); n != 1 {
		t.Errorf("saved notifications = %d, want 1", n)
	}
	if n := rec.stops.Load(); n != 1 {
		t.Errorf("recorder Stop calls = %d, want 1", n)
	}
}

func TestPausedTimeExcludedFromDuration(t *testing.T) {
	rec := newFakeRecorder([]byte("x"))
	m, _ := testManager(capture.NewTestEngine(), rec)

	s, err := m.Start(context.Background(), fastOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if err := s.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if s.State() != StatePaused {
		t.Errorf("state = %q, want %q", s.State(), StatePaused)
	}
	time.Sleep(300 * time.Millisecond)
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	// Roughly 200ms of active time; the 300ms pause must not count.
	if result.Duration < 150*time.Millisecond || result.Duration > 400*time.Millisecond {
		t.Errorf("duration = %v, want ~200ms with pause excluded", result.Duration)
	}
}

func TestPauseRequiresActiveState(t *testing.T) {
	rec := newFakeRecorder([]byte("x"))
	m, _ := testManager(capture.NewTestEngine(), rec)

	s, err := m.Start(context.Background(), fastOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer waitStopped(t, s)

	if err := s.Resume(); err == nil {
		t.Error("Resume succeeded on an active session")
	}
	if err := s.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if err := s.Pause(); err == nil {
		t.Error("second Pause succeeded on a paused session")
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
}

func TestEmptyRecordingReported(t *testing.T) {
	rec := newFakeRecorder(nil) // recorder that never produces data
	m, _ := testManager(capture.NewTestEngine(), rec)

	s, err := m.Start(context.Background(), fastOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = s.Wait(ctx)
	if se, ok := err.(*Error); !ok || se.Code != ErrCodeEmptyRecording {
		t.Errorf("expected %s, got %v", ErrCodeEmptyRecording, err)
	}
}

// trackingEngine exposes the display source it handed out so tests can end
// the track out-of-band, like a user stopping the share from OS chrome.
type trackingEngine struct {
	*capture.TestEngine
	mu     sync.Mutex
	screen media.VideoSource
}

func (e *trackingEngine) Display(ctx context.Context) (media.VideoSource, media.AudioSource, error) {
	v, a, err := e.TestEngine.Display(ctx)
	e.mu.Lock()
	e.screen = v
	e.mu.Unlock()
	return v, a, err
}

func TestDisplayTrackEndFinalizesSession(t *testing.T) {
	engine := &trackingEngine{TestEngine: capture.NewTestEngine()}
	rec := newFakeRecorder([]byte("x"))
	m, _ := testManager(engine, rec)

	s, err := m.Start(context.Background(), fastOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	engine.mu.Lock()
	screen := engine.screen
	engine.mu.Unlock()
	screen.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.Wait(ctx); err != nil {
		t.Fatalf("session did not finalize after track end: %v", err)
	}
}

func waitStopped(t *testing.T, s *Session) {
	t.Helper()
	s.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Wait(ctx)
}
