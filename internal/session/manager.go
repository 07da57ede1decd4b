package session

import (
	"context"
	"sync"

	"github.com/recnode/recnode/internal/capture"
	"github.com/recnode/recnode/internal/events"
	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/recorder"
)

// Manager owns session lifecycle and enforces the single-active-session
// rule: at most one session exists between preparing and finalizing.
type Manager struct {
	engine capture.Engine
	bus    *events.Bus
	logger logging.Logger

	// newRecorder builds the recorder for each session, overridable in tests.
	newRecorder func(bitrate int) recorder.Recorder

	mu      sync.Mutex
	current *Session
}

// NewManager creates a session manager over the given capture engine.
func NewManager(engine capture.Engine, bus *events.Bus, logger logging.Logger) *Manager {
	return &Manager{
		engine: engine,
		bus:    bus,
		logger: logger,
		newRecorder: func(bitrate int) recorder.Recorder {
			return recorder.NewChunkRecorder(bitrate, logging.GetLogger("recorder"))
		},
	}
}

// Start acquires sources and brings a new session to the active state.
// Acquisition failures return a typed error and leave nothing running.
func (m *Manager) Start(ctx context.Context, opts Options) (*Session, error) {
	m.mu.Lock()
	if m.current != nil {
		select {
		case <-m.current.Done():
			m.current = nil
		default:
			m.mu.Unlock()
			return nil, NewError(ErrCodeSessionBusy, "a session is already running", nil)
		}
	}
	m.mu.Unlock()

	s := newSession(m.engine, m.bus, m.logger, opts)
	s.newRecorder = func() recorder.Recorder { return m.newRecorder(opts.Bitrate) }

	if err := s.prepare(ctx); err != nil {
		s.toState(StateFailed)
		s.toState(StateIdle)
		m.logger.Error("Session start failed", "error", err)
		return nil, err
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return s, nil
}

// Current returns the live session, or nil when none is running.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	select {
	case <-m.current.Done():
		return m.current // finalized but still inspectable until replaced
	default:
		return m.current
	}
}

// Get returns the session with the given ID, if it is the current one.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.ID == id {
		return m.current, true
	}
	return nil, false
}

// Shutdown stops any live session and waits for it to finalize.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s == nil {
		return
	}
	select {
	case <-s.Done():
		return
	default:
	}
	s.Stop()
	_, _ = s.Wait(ctx)
}
