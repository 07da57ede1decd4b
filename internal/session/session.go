// Package session coordinates one capture session end to end: source
// acquisition through the capture engine, pipeline assembly (compositor,
// audio mixer, recorder) and the single finalize path that turns recorded
// chunks into a blob.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recnode/recnode/internal/audiomix"
	"github.com/recnode/recnode/internal/capture"
	"github.com/recnode/recnode/internal/compositor"
	"github.com/recnode/recnode/internal/events"
	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/media"
	"github.com/recnode/recnode/internal/recorder"
)

const defaultFlushGrace = 500 * time.Millisecond

// Options selects the tracks and pipeline parameters for one session.
type Options struct {
	Mic    bool
	Camera bool

	// PIP places the camera overlay; zero value means the default corner.
	PIP compositor.PIPConfig

	// Canvas configures the compositor surface when a camera is present.
	Canvas compositor.Config

	// Bitrate is the suggested recording bitrate in bits/s.
	Bitrate int

	// FlushGrace bounds how long finalize waits for the recorder to deliver
	// buffered data after the stop request.
	FlushGrace time.Duration
}

// Result is the outcome of a finalized session.
type Result struct {
	ID       string
	Mode     Mode
	Blob     []byte
	Duration time.Duration
}

// Session is a single capture session. Sessions are created by a Manager
// and move through idle, preparing, active, paused, finalizing.
type Session struct {
	ID   string
	mode Mode
	opts Options

	engine      capture.Engine
	bus         *events.Bus
	logger      logging.Logger
	newRecorder func() recorder.Recorder

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc

	screen   media.VideoSource
	sysAudio media.AudioSource
	mic      media.AudioSource
	cam      media.VideoSource
	comp     *compositor.Compositor
	mixer    *audiomix.Mixer // session-owned only when no compositor exists
	rec      recorder.Recorder

	startedAt   time.Time
	lastResume  time.Time
	activeAccum time.Duration
	pausedAt    time.Time
	pausedTotal time.Duration

	chunks      [][]byte
	collectDone chan struct{}

	finalizeOnce sync.Once
	done         chan struct{}
	result       Result
	err          error
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode returns the resolved session mode.
func (s *Session) Mode() Mode { return s.mode }

// Elapsed returns the recorded time so far, paused periods excluded.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := s.activeAccum
	if s.state == StateActive {
		elapsed += time.Since(s.lastResume)
	}
	return elapsed
}

// SetPIPPosition live-updates camera overlay placement. No-op for sessions
// without a camera.
func (s *Session) SetPIPPosition(cfg compositor.PIPConfig) {
	s.mu.Lock()
	comp := s.comp
	s.mu.Unlock()
	if comp != nil {
		comp.SetPIPPosition(cfg)
	}
}

// Pause suspends capture. In camera mode the compositor freezes the surface
// and suspends its mixer; otherwise the recorder and mixer pause directly.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return NewError(ErrCodeInvalidState, "pause requires an active session", nil)
	}
	s.activeAccum += time.Since(s.lastResume)
	s.pausedAt = time.Now()
	if s.comp != nil {
		s.comp.Pause()
	} else {
		s.rec.Pause()
		if s.mixer != nil {
			s.mixer.Suspend()
		}
	}
	s.toStateLocked(StatePaused)
	return nil
}

// Resume reverses Pause.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return NewError(ErrCodeInvalidState, "resume requires a paused session", nil)
	}
	s.pausedTotal += time.Since(s.pausedAt)
	s.lastResume = time.Now()
	if s.comp != nil {
		s.comp.Resume()
	} else {
		s.rec.Resume()
		if s.mixer != nil {
			s.mixer.Resume()
		}
	}
	s.toStateLocked(StateActive)
	return nil
}

// Stop finalizes the session. The first caller wins; later calls and the
// track-ended path fall through to the same one-shot finalize.
func (s *Session) Stop() {
	s.finalize("stop requested")
}

// Wait blocks until the session has finalized and returns its result.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.result, s.err
	}
}

// Done is closed once the session has finalized.
func (s *Session) Done() <-chan struct{} { return s.done }

// prepare acquires sources and assembles the pipeline. Called by the Manager
// with the session still unpublished, so failures leave no half-built state
// visible to anyone.
func (s *Session) prepare(ctx context.Context) error {
	s.toState(StatePreparing)

	screen, sysAudio, err := s.engine.Display(ctx)
	if err != nil {
		return NewError(ErrCodeAcquisition, "acquiring display", err)
	}
	s.screen, s.sysAudio = screen, sysAudio

	if s.opts.Mic {
		mic, err := s.engine.Microphone(ctx)
		if err != nil {
			s.releaseSources()
			return NewError(ErrCodeAcquisition, "acquiring microphone", err)
		}
		s.mic = mic
	}
	if s.opts.Camera {
		cam, err := s.engine.Camera(ctx)
		if err != nil {
			s.releaseSources()
			return NewError(ErrCodeAcquisition, "acquiring camera", err)
		}
		s.cam = cam
	}
	s.mode = resolveMode(s.cam != nil, s.mic != nil)

	// The session outlives the request that started it.
	sessCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	stream, err := s.assemble(sessCtx)
	if err != nil {
		s.teardownPipeline()
		return err
	}

	s.rec = s.newRecorder()
	if err := s.rec.Start(sessCtx, stream); err != nil {
		s.teardownPipeline()
		return NewError(ErrCodeAcquisition, "starting recorder", err)
	}

	go s.collect()
	go s.watchTracks(sessCtx)

	now := time.Now()
	s.mu.Lock()
	s.startedAt = now
	s.lastResume = now
	s.mu.Unlock()
	s.toState(StateActive)

	s.logger.Info("Session started", "id", s.ID, "mode", string(s.mode))
	return nil
}

// assemble builds the combined stream for the resolved mode. An audio track
// exists only when at least one audio source was acquired; screen-only
// sessions carry pure video.
func (s *Session) assemble(ctx context.Context) (*media.Stream, error) {
	var audio []media.AudioSource
	if s.sysAudio != nil {
		audio = append(audio, s.sysAudio)
	}
	if s.mic != nil {
		audio = append(audio, s.mic)
	}

	var mixer *audiomix.Mixer
	if len(audio) > 0 {
		var err error
		mixer, err = audiomix.New(audio, logging.GetLogger("audiomix"))
		if err != nil {
			return nil, NewError(ErrCodeAcquisition, "building audio mixer", err)
		}
	}

	if s.cam != nil {
		comp := compositor.New(s.opts.Canvas, logging.GetLogger("compositor"))
		if s.opts.PIP != (compositor.PIPConfig{}) {
			comp.SetPIPPosition(s.opts.PIP)
		}
		stream, err := comp.Start(ctx, s.screen, s.cam, mixer)
		if err != nil {
			return nil, NewError(ErrCodeAcquisition, "starting compositor", err)
		}
		s.comp = comp
		return stream, nil
	}

	if err := s.screen.Start(ctx); err != nil {
		return nil, NewError(ErrCodeAcquisition, "starting display source", err)
	}
	stream := &media.Stream{Video: []media.VideoSource{s.screen}}
	if mixer != nil {
		if err := mixer.Start(ctx); err != nil {
			return nil, NewError(ErrCodeAcquisition, "starting audio mixer", err)
		}
		s.mixer = mixer
		stream.Audio = append(stream.Audio, mixer)
	}
	return stream, nil
}

// collect accumulates recorder chunks until the chunk channel closes.
func (s *Session) collect() {
	for chunk := range s.rec.Chunks() {
		s.mu.Lock()
		s.chunks = append(s.chunks, chunk.Data)
		s.mu.Unlock()
	}
	close(s.collectDone)
}

// watchTracks ends the session when the display track dies, mirroring a user
// stopping the share through native OS chrome instead of the app controls.
func (s *Session) watchTracks(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.screen.Done():
		s.logger.Info("Display track ended, finalizing session", "id", s.ID)
		s.finalize("display track ended")
	}
}

// finalize is the single stop path. Exactly one pass runs regardless of how
// many triggers fire: explicit stop, track death or repeated Stop calls.
func (s *Session) finalize(reason string) {
	s.finalizeOnce.Do(func() {
		s.mu.Lock()
		prior := s.state
		s.toStateLocked(StateFinalizing)
		switch prior {
		case StateActive:
			s.activeAccum += time.Since(s.lastResume)
		case StatePaused:
			s.pausedTotal += time.Since(s.pausedAt)
		}
		wall := time.Duration(0)
		if !s.startedAt.IsZero() {
			wall = time.Since(s.startedAt) - s.pausedTotal
		}
		timer := s.activeAccum
		grace := s.opts.FlushGrace
		s.mu.Unlock()

		if grace <= 0 {
			grace = defaultFlushGrace
		}

		// Ask for buffered data, give the recorder a bounded window to
		// deliver it, then force the terminal stop.
		s.rec.RequestData()
		select {
		case <-time.After(grace):
		case <-s.rec.Done():
		}
		s.rec.Stop()
		<-s.collectDone

		s.teardownPipeline()

		blob, duration := s.assembleResult(wall, timer)

		s.mu.Lock()
		switch {
		case len(blob) == 0:
			s.err = NewError(ErrCodeEmptyRecording, "recording produced no data", nil)
		case duration <= 0:
			s.err = NewError(ErrCodeDurationUnknown, "no finite duration for recording", nil)
		default:
			s.result = Result{ID: s.ID, Mode: s.mode, Blob: blob, Duration: duration}
		}
		err := s.err
		s.mu.Unlock()

		if err == nil {
			s.bus.Publish(events.RecordingSavedEvent{
				SessionID: s.ID,
				Bytes:     len(blob),
				Duration:  duration.Seconds(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			s.logger.Info("Session finalized", "id", s.ID, "reason", reason,
				"bytes", len(blob), "duration", duration)
		} else {
			s.logger.Warn("Session finalized with error", "id", s.ID,
				"reason", reason, "error", err)
		}

		s.toState(StateIdle)
		close(s.done)
	})
}

// assembleResult concatenates collected chunks and picks the best duration
// estimate: wall clock minus paused time, falling back to the accumulated
// active timer, never negative.
func (s *Session) assembleResult(wall, timer time.Duration) ([]byte, time.Duration) {
	s.mu.Lock()
	total := 0
	for _, c := range s.chunks {
		total += len(c)
	}
	blob := make([]byte, 0, total)
	for _, c := range s.chunks {
		blob = append(blob, c...)
	}
	s.chunks = nil
	s.mu.Unlock()

	duration := wall
	if timer > duration {
		duration = timer
	}
	if duration < 0 {
		duration = 0
	}
	return blob, duration
}

// teardownPipeline stops the compositor, mixer and every acquired source.
// Safe to call with a partially built pipeline.
func (s *Session) teardownPipeline() {
	if s.comp != nil {
		s.comp.Stop() // closes the compositor-owned mixer
	}
	if s.mixer != nil {
		_ = s.mixer.Close()
	}
	s.releaseSources()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) releaseSources() {
	if s.screen != nil {
		_ = s.screen.Stop()
	}
	if s.cam != nil {
		_ = s.cam.Stop()
	}
	if s.mic != nil {
		_ = s.mic.Stop()
	}
	if s.sysAudio != nil {
		_ = s.sysAudio.Stop()
	}
}

func (s *Session) toState(next State) {
	s.mu.Lock()
	s.toStateLocked(next)
	s.mu.Unlock()
}

func (s *Session) toStateLocked(next State) {
	s.state = next
	s.bus.Publish(events.SessionStateEvent{
		SessionID: s.ID,
		State:     string(next),
		Mode:      string(s.mode),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func newSession(engine capture.Engine, bus *events.Bus, logger logging.Logger, opts Options) *Session {
	return &Session{
		ID:          uuid.NewString(),
		opts:        opts,
		engine:      engine,
		bus:         bus,
		logger:      logger,
		state:       StateIdle,
		collectDone: make(chan struct{}),
		done:        make(chan struct{}),
	}
}
