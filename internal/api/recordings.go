package api

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recnode/recnode/internal/library"
)

// RecordingInfoResponse describes the loaded recording.
type RecordingInfoResponse struct {
	Body struct {
		Bytes    int     `json:"bytes" doc:"Size of the recording blob"`
		Duration float64 `json:"duration" doc:"Recording duration in seconds"`
	}
}

// RecordingDownloadResponse streams the raw recording blob.
type RecordingDownloadResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// ProbeResponse carries probed recording metadata.
type ProbeResponse struct {
	Body struct {
		HasAudio bool    `json:"has_audio" doc:"Whether the recording carries an audio stream"`
		HasVideo bool    `json:"has_video" doc:"Whether the recording carries a video stream"`
		Duration float64 `json:"duration" doc:"Probed duration in seconds"`
		Width    int     `json:"width,omitempty" doc:"Video width in pixels"`
		Height   int     `json:"height,omitempty" doc:"Video height in pixels"`
		Synced   bool    `json:"synced" doc:"Whether the editor timeline was resynced to the probed duration"`
	}
}

// FilmstripResponse is a PNG preview strip of the recording.
type FilmstripResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func (s *Server) registerRecordingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-recording-info",
		Method:      http.MethodGet,
		Path:        "/api/recording",
		Summary:     "Recording Info",
		Description: "Size and duration of the loaded recording",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *struct{}) (*RecordingInfoResponse, error) {
		blob, duration, err := s.library.Recording()
		if err != nil {
			return nil, recordingHTTPError(err)
		}
		resp := &RecordingInfoResponse{}
		resp.Body.Bytes = len(blob)
		resp.Body.Duration = duration
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "download-recording",
		Method:      http.MethodGet,
		Path:        "/api/recording/download",
		Summary:     "Download Recording",
		Description: "Download the raw recording blob",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *struct{}) (*RecordingDownloadResponse, error) {
		blob, _, err := s.library.Recording()
		if err != nil {
			return nil, recordingHTTPError(err)
		}
		return &RecordingDownloadResponse{
			ContentType: "application/octet-stream",
			Body:        blob,
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-recording",
		Method:      http.MethodDelete,
		Path:        "/api/recording",
		Summary:     "Delete Recording",
		Description: "Discard the loaded recording and its edit state",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *struct{}) (*struct{}, error) {
		if err := s.library.Delete(ctx); err != nil {
			return nil, huma.Error500InternalServerError("deleting recording failed", err)
		}
		return nil, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "probe-recording",
		Method:      http.MethodPost,
		Path:        "/api/recording/probe",
		Summary:     "Probe Recording",
		Description: "Analyze the recording with the transcoding engine; resyncs an untouched editor timeline to the probed duration",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 502},
	}, func(ctx context.Context, input *struct{}) (*ProbeResponse, error) {
		result, synced, err := s.library.Probe(ctx)
		if err != nil {
			if errors.Is(err, library.ErrNoRecording) {
				return nil, recordingHTTPError(err)
			}
			return nil, huma.Error502BadGateway("probe failed", err)
		}
		resp := &ProbeResponse{}
		resp.Body.HasAudio = result.HasAudio
		resp.Body.HasVideo = result.HasVideo
		resp.Body.Duration = result.Duration
		resp.Body.Width = result.Width
		resp.Body.Height = result.Height
		resp.Body.Synced = synced
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-recording-filmstrip",
		Method:      http.MethodGet,
		Path:        "/api/recording/filmstrip",
		Summary:     "Filmstrip",
		Description: "PNG preview strip of frames sampled across the recording",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(ctx context.Context, input *struct{}) (*FilmstripResponse, error) {
		strip, err := s.library.Filmstrip()
		if err != nil {
			return nil, recordingHTTPError(err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, strip); err != nil {
			return nil, huma.Error500InternalServerError("encoding filmstrip failed", err)
		}
		return &FilmstripResponse{
			ContentType: "image/png",
			Body:        buf.Bytes(),
		}, nil
	})
}

func recordingHTTPError(err error) error {
	if errors.Is(err, library.ErrNoRecording) {
		return huma.Error404NotFound("no recording loaded")
	}
	return huma.Error500InternalServerError("recording operation failed", err)
}
