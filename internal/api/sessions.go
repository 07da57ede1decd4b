package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recnode/recnode/internal/capture"
	"github.com/recnode/recnode/internal/compositor"
	"github.com/recnode/recnode/internal/metrics"
	"github.com/recnode/recnode/internal/session"
)

// SessionStartInput selects the tracks for a new capture session.
type SessionStartInput struct {
	Body struct {
		Mic     bool    `json:"mic,omitempty" doc:"Capture the microphone"`
		Camera  bool    `json:"camera,omitempty" doc:"Capture the camera as a PIP overlay"`
		Bitrate int     `json:"bitrate,omitempty" doc:"Suggested recording bitrate in bits/s"`
		PIP     *PIPDTO `json:"pip,omitempty" doc:"Initial camera overlay placement"`
	}
}

// PIPDTO is the wire shape of a camera overlay placement.
type PIPDTO struct {
	Position string  `json:"position" enum:"top-left,top-right,bottom-left,bottom-right,custom" doc:"Overlay corner, or custom"`
	X        float64 `json:"x,omitempty" minimum:"0" maximum:"1" doc:"Relative X for custom placement"`
	Y        float64 `json:"y,omitempty" minimum:"0" maximum:"1" doc:"Relative Y for custom placement"`
	Size     float64 `json:"size,omitempty" minimum:"0" maximum:"1" doc:"Overlay width relative to the canvas"`
}

func (p *PIPDTO) toConfig() compositor.PIPConfig {
	if p == nil {
		return compositor.DefaultPIPConfig()
	}
	return compositor.PIPConfig{
		Position: compositor.Position(p.Position),
		X:        p.X,
		Y:        p.Y,
		Size:     p.Size,
	}
}

// SessionStatus describes the current session over the wire.
type SessionStatus struct {
	SessionID      string  `json:"session_id,omitempty" doc:"Capture session identifier"`
	State          string  `json:"state" example:"active" doc:"Lifecycle state"`
	Mode           string  `json:"mode,omitempty" example:"screen+mic" doc:"Resolved track mode"`
	ElapsedSeconds float64 `json:"elapsed_seconds" doc:"Recorded time so far, paused periods excluded"`
}

// SessionResponse wraps a session status body.
type SessionResponse struct {
	Body SessionStatus
}

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "start-session",
		Method:      http.MethodPost,
		Path:        "/api/session",
		Summary:     "Start Session",
		Description: "Acquire capture sources and start recording",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 403, 409, 502},
	}, func(ctx context.Context, input *SessionStartInput) (*SessionResponse, error) {
		sess, err := s.sessions.Start(ctx, session.Options{
			Mic:     input.Body.Mic,
			Camera:  input.Body.Camera,
			PIP:     input.Body.PIP.toConfig(),
			Canvas:  compositor.DefaultConfig(),
			Bitrate: input.Body.Bitrate,
		})
		if err != nil {
			metrics.SessionsFailedTotal.Inc()
			return nil, sessionHTTPError(err)
		}

		metrics.SessionsStartedTotal.WithLabelValues(string(sess.Mode())).Inc()
		return sessionResponse(sess), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/session",
		Summary:     "Session Status",
		Description: "Current session state, mode and elapsed recording time",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*SessionResponse, error) {
		sess := s.sessions.Current()
		if sess == nil {
			resp := &SessionResponse{}
			resp.Body.State = string(session.StateIdle)
			return resp, nil
		}
		return sessionResponse(sess), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "pause-session",
		Method:      http.MethodPost,
		Path:        "/api/session/pause",
		Summary:     "Pause Session",
		Description: "Pause recording; paused time is excluded from the recorded duration",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(ctx context.Context, input *struct{}) (*SessionResponse, error) {
		sess, err := s.liveSession()
		if err != nil {
			return nil, err
		}
		if err := sess.Pause(); err != nil {
			return nil, sessionHTTPError(err)
		}
		return sessionResponse(sess), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "resume-session",
		Method:      http.MethodPost,
		Path:        "/api/session/resume",
		Summary:     "Resume Session",
		Description: "Resume a paused recording",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(ctx context.Context, input *struct{}) (*SessionResponse, error) {
		sess, err := s.liveSession()
		if err != nil {
			return nil, err
		}
		if err := sess.Resume(); err != nil {
			return nil, sessionHTTPError(err)
		}
		return sessionResponse(sess), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-session-pip",
		Method:      http.MethodPut,
		Path:        "/api/session/pip",
		Summary:     "Move Overlay",
		Description: "Reposition the camera overlay without interrupting recording",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *struct {
		Body PIPDTO
	}) (*SessionResponse, error) {
		sess, err := s.liveSession()
		if err != nil {
			return nil, err
		}
		sess.SetPIPPosition(input.Body.toConfig())
		return sessionResponse(sess), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-session",
		Method:      http.MethodPost,
		Path:        "/api/session/stop",
		Summary:     "Stop Session",
		Description: "Stop recording, finalize the blob and load it into the library",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 422},
	}, func(ctx context.Context, input *struct{}) (*SessionResponse, error) {
		sess, err := s.liveSession()
		if err != nil {
			return nil, err
		}

		sess.Stop()
		result, err := sess.Wait(ctx)
		if err != nil {
			return nil, sessionHTTPError(err)
		}

		if err := s.library.SetRecording(ctx, result.Blob, result.Duration.Seconds()); err != nil {
			return nil, huma.Error500InternalServerError("persisting recording failed", err)
		}
		return sessionResponse(sess), nil
	})
}

// liveSession returns the current unfinalized session or a 404.
func (s *Server) liveSession() (*session.Session, error) {
	sess := s.sessions.Current()
	if sess == nil {
		return nil, huma.Error404NotFound("no session running")
	}
	select {
	case <-sess.Done():
		return nil, huma.Error404NotFound("no session running")
	default:
		return sess, nil
	}
}

func sessionResponse(sess *session.Session) *SessionResponse {
	resp := &SessionResponse{}
	resp.Body = SessionStatus{
		SessionID:      sess.ID,
		State:          string(sess.State()),
		Mode:           string(sess.Mode()),
		ElapsedSeconds: sess.Elapsed().Seconds(),
	}
	return resp
}

// sessionHTTPError maps typed session errors onto HTTP status codes.
func sessionHTTPError(err error) error {
	var se *session.Error
	if !errors.As(err, &se) {
		return huma.Error500InternalServerError("session operation failed", err)
	}
	switch se.Code {
	case session.ErrCodeSessionBusy:
		return huma.Error409Conflict(se.Message, err)
	case session.ErrCodeInvalidState:
		return huma.Error409Conflict(se.Message, err)
	case session.ErrCodeAcquisition:
		if capture.IsPermissionDenied(err) {
			return huma.Error403Forbidden(se.Message, err)
		}
		return huma.Error502BadGateway(se.Message, err)
	case session.ErrCodeEmptyRecording, session.ErrCodeDurationUnknown:
		return huma.Error422UnprocessableEntity(se.Message, err)
	default:
		return huma.Error500InternalServerError(se.Message, err)
	}
}
