package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recnode/recnode/internal/export"
	"github.com/recnode/recnode/internal/metrics"
)

// ExportInput selects the output container, quality and frame geometry.
type ExportInput struct {
	Body struct {
		Format string `json:"format" enum:"mp4,webm" doc:"Output container"`
		Preset string `json:"preset" example:"medium" doc:"Quality preset name"`
		CRF    *int   `json:"crf,omitempty" minimum:"0" maximum:"51" doc:"Rate factor override, clamped to the supported range"`
		Width  int    `json:"width,omitempty" doc:"Output width; zero keeps the source size"`
		Height int    `json:"height,omitempty" doc:"Output height; zero keeps the source size"`
		FPS    int    `json:"fps,omitempty" doc:"Output frame rate; zero means 30"`
	}
}

// ExportResponse streams the exported file.
type ExportResponse struct {
	ContentType string `header:"Content-Type"`
	JobID       string `header:"X-Export-Job"`
	Body        []byte
}

// PresetsResponse lists the active quality table.
type PresetsResponse struct {
	Body struct {
		Presets []export.Preset `json:"presets"`
	}
}

// ExportErrorResponse is the sticky error of the last failed export.
type ExportErrorResponse struct {
	Body struct {
		Code    string `json:"code" example:"ENGINE_FAILED" doc:"Export error code"`
		Message string `json:"message" doc:"Human-readable description"`
	}
}

func (s *Server) registerExportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "run-export",
		Method:      http.MethodPost,
		Path:        "/api/export",
		Summary:     "Export",
		Description: "Transcode the kept segments into a downloadable file. Progress streams over /api/events while the request is in flight.",
		Tags:        []string{"export"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 422, 502},
	}, func(ctx context.Context, input *ExportInput) (*ExportResponse, error) {
		blob, duration, err := s.library.Recording()
		if err != nil {
			return nil, recordingHTTPError(err)
		}
		ed := s.library.Editor()
		if ed == nil {
			return nil, huma.Error404NotFound("no recording loaded")
		}

		settings := export.Settings{
			Format: input.Body.Format,
			Preset: input.Body.Preset,
			CRF:    input.Body.CRF,
			Width:  input.Body.Width,
			Height: input.Body.Height,
			FPS:    input.Body.FPS,
		}

		started := time.Now()
		result, err := s.exporter.Export(ctx, blob, duration, ed.Segments(), settings)
		if err != nil {
			metrics.ExportsTotal.WithLabelValues(input.Body.Format, "error").Inc()
			return nil, exportHTTPError(err)
		}

		metrics.ExportsTotal.WithLabelValues(input.Body.Format, "ok").Inc()
		metrics.ExportDurationSeconds.Observe(time.Since(started).Seconds())
		metrics.ExportOutputBytes.Observe(float64(len(result.Data)))

		return &ExportResponse{
			ContentType: result.MimeType,
			JobID:       result.JobID,
			Body:        result.Data,
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-export-presets",
		Method:      http.MethodGet,
		Path:        "/api/export/presets",
		Summary:     "Presets",
		Description: "Active export quality presets",
		Tags:        []string{"export"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*PresetsResponse, error) {
		resp := &PresetsResponse{}
		resp.Body.Presets = s.exporter.Presets().All()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-export-error",
		Method:      http.MethodGet,
		Path:        "/api/export/error",
		Summary:     "Last Export Error",
		Description: "Sticky error from the most recent failed export, if any",
		Tags:        []string{"export"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *struct{}) (*ExportErrorResponse, error) {
		lastErr := s.exporter.LastError()
		if lastErr == nil {
			return nil, huma.Error404NotFound("no export error")
		}
		resp := &ExportErrorResponse{}
		resp.Body.Code = lastErr.Code
		resp.Body.Message = lastErr.Message
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "dismiss-export-error",
		Method:      http.MethodDelete,
		Path:        "/api/export/error",
		Summary:     "Dismiss Export Error",
		Description: "Clear the sticky export error",
		Tags:        []string{"export"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*struct{}, error) {
		s.exporter.ClearError()
		return nil, nil
	})
}

// exportHTTPError maps typed export errors onto HTTP status codes.
func exportHTTPError(err error) error {
	var xe *export.Error
	if !errors.As(err, &xe) {
		return huma.Error500InternalServerError("export failed", err)
	}
	switch xe.Code {
	case export.ErrCodeBusy:
		return huma.Error409Conflict(xe.Message, err)
	case export.ErrCodeNoSegments, export.ErrCodeBadSettings, export.ErrCodeUnknownDuration:
		return huma.Error422UnprocessableEntity(xe.Message, err)
	case export.ErrCodeEngineFailed:
		return huma.Error502BadGateway(xe.Message, err)
	default:
		return huma.Error500InternalServerError(xe.Message, err)
	}
}
