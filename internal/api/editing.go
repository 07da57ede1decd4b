package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recnode/recnode/internal/editor"
)

// TimelineResponse is the edit state snapshot returned by every edit
// operation so clients never need a follow-up read.
type TimelineResponse struct {
	Body struct {
		Duration float64          `json:"duration" doc:"Timeline duration in seconds"`
		Selected int              `json:"selected" doc:"Index of the selected segment"`
		Segments []editor.Segment `json:"segments" doc:"Kept segments, sorted and disjoint"`
	}
}

// SplitInput is a split point on the timeline.
type SplitInput struct {
	Body struct {
		At float64 `json:"at" minimum:"0" doc:"Split position in seconds"`
	}
}

// IntervalInput is a timeline interval.
type IntervalInput struct {
	Body struct {
		Start float64 `json:"start" minimum:"0" doc:"Interval start in seconds"`
		End   float64 `json:"end" minimum:"0" doc:"Interval end in seconds"`
	}
}

// SelectInput picks a segment by index.
type SelectInput struct {
	Body struct {
		Index int `json:"index" minimum:"0" doc:"Segment index to select"`
	}
}

func (s *Server) registerEditRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-timeline",
		Method:      http.MethodGet,
		Path:        "/api/edit/timeline",
		Summary:     "Timeline",
		Description: "Current segments and selection for the loaded recording",
		Tags:        []string{"edit"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *struct{}) (*TimelineResponse, error) {
		ed, err := s.editorOr404()
		if err != nil {
			return nil, err
		}
		return timelineResponse(ed), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "split-segment",
		Method:      http.MethodPost,
		Path:        "/api/edit/split",
		Summary:     "Split",
		Description: "Split the selected segment at a timeline position; the later half becomes selected",
		Tags:        []string{"edit"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 422},
	}, func(ctx context.Context, input *SplitInput) (*TimelineResponse, error) {
		ed, err := s.editorOr404()
		if err != nil {
			return nil, err
		}
		if !ed.Split(input.Body.At) {
			return nil, huma.Error422UnprocessableEntity("split point too close to a segment edge or outside the selected segment")
		}
		return timelineResponse(ed), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "select-segment",
		Method:      http.MethodPost,
		Path:        "/api/edit/select",
		Summary:     "Select",
		Description: "Select a segment by index",
		Tags:        []string{"edit"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *SelectInput) (*TimelineResponse, error) {
		ed, err := s.editorOr404()
		if err != nil {
			return nil, err
		}
		ed.Select(input.Body.Index)
		return timelineResponse(ed), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-segment",
		Method:      http.MethodPost,
		Path:        "/api/edit/delete",
		Summary:     "Delete Segment",
		Description: "Delete the selected segment; deleting the last one resets the timeline to the full recording",
		Tags:        []string{"edit"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *struct{}) (*TimelineResponse, error) {
		ed, err := s.editorOr404()
		if err != nil {
			return nil, err
		}
		ed.DeleteSelected()
		return timelineResponse(ed), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "remove-interval",
		Method:      http.MethodPost,
		Path:        "/api/edit/remove",
		Summary:     "Remove Interval",
		Description: "Cut a time interval out of every kept segment it overlaps",
		Tags:        []string{"edit"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 422},
	}, func(ctx context.Context, input *IntervalInput) (*TimelineResponse, error) {
		ed, err := s.editorOr404()
		if err != nil {
			return nil, err
		}
		if !ed.RemoveInterval(input.Body.Start, input.Body.End) {
			return nil, huma.Error422UnprocessableEntity("interval removes nothing or would empty the timeline")
		}
		return timelineResponse(ed), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-segment",
		Method:      http.MethodPost,
		Path:        "/api/edit/update",
		Summary:     "Trim Segment",
		Description: "Move the selected segment's boundaries; clamped to the gap between neighbors",
		Tags:        []string{"edit"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 422},
	}, func(ctx context.Context, input *IntervalInput) (*TimelineResponse, error) {
		ed, err := s.editorOr404()
		if err != nil {
			return nil, err
		}
		if !ed.UpdateSelectedSegment(input.Body.Start, input.Body.End) {
			return nil, huma.Error422UnprocessableEntity("updated boundaries rejected")
		}
		return timelineResponse(ed), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "undo-edit",
		Method:      http.MethodPost,
		Path:        "/api/edit/undo",
		Summary:     "Undo",
		Description: "Revert the most recent edit operation",
		Tags:        []string{"edit"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 422},
	}, func(ctx context.Context, input *struct{}) (*TimelineResponse, error) {
		ed, err := s.editorOr404()
		if err != nil {
			return nil, err
		}
		if !ed.Undo() {
			return nil, huma.Error422UnprocessableEntity("nothing to undo")
		}
		return timelineResponse(ed), nil
	})
}

// editorOr404 returns the editor for the loaded recording or a 404.
func (s *Server) editorOr404() (*editor.Editor, error) {
	ed := s.library.Editor()
	if ed == nil {
		return nil, huma.Error404NotFound("no recording loaded")
	}
	return ed, nil
}

func timelineResponse(ed *editor.Editor) *TimelineResponse {
	resp := &TimelineResponse{}
	resp.Body.Duration = ed.Duration()
	resp.Body.Selected = ed.Selected()
	resp.Body.Segments = ed.Segments()
	return resp
}
