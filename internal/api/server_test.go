package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recnode/recnode/internal/capture"
	"github.com/recnode/recnode/internal/editor"
	"github.com/recnode/recnode/internal/engine"
	"github.com/recnode/recnode/internal/events"
	"github.com/recnode/recnode/internal/export"
	"github.com/recnode/recnode/internal/library"
	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/session"
	"github.com/recnode/recnode/internal/store"
)

type stubEngine struct {
	probe  *engine.ProbeResult
	output []byte
	runErr error
}

func (e *stubEngine) Run(ctx context.Context, job engine.Job, progress engine.ProgressFunc) ([]byte, error) {
	if e.runErr != nil {
		return nil, e.runErr
	}
	if progress != nil {
		progress(1)
	}
	return e.output, nil
}

func (e *stubEngine) Probe(ctx context.Context, input []byte) (*engine.ProbeResult, error) {
	if e.probe == nil {
		return nil, errors.New("no probe result")
	}
	return e.probe, nil
}

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	logger := logging.GetLogger("test")
	bus := events.New()

	st, err := store.Open(filepath.Join(t.TempDir(), "recnode.db"), logger)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	eng := &stubEngine{
		probe:  &engine.ProbeResult{HasVideo: true, HasAudio: true, Duration: 10},
		output: []byte("encoded"),
	}

	opts.Sessions = session.NewManager(capture.NewTestEngine(), bus, logger)
	opts.Library = library.New(st, eng, editor.DefaultPolicy(), logger)
	opts.Exporter = export.New(eng, export.DefaultPresets(), bus, logger)
	opts.EventBus = bus

	srv := NewServer(&opts)
	ts := httptest.NewServer(srv.mux)
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeTimeline(t *testing.T, resp *http.Response) (duration float64, segments []editor.Segment) {
	t.Helper()
	defer resp.Body.Close()
	var body struct {
		Duration float64          `json:"duration"`
		Segments []editor.Segment `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding timeline: %v", err)
	}
	return body.Duration, body.Segments
}

func TestHealthRoute(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestTimelineRequiresRecording(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/api/edit/timeline")
	if err != nil {
		t.Fatalf("GET timeline: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("timeline status = %d, want 404 without a recording", resp.StatusCode)
	}
}

func TestEditFlowOverHTTP(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	if err := srv.library.SetRecording(context.Background(), []byte("blob"), 10); err != nil {
		t.Fatalf("SetRecording failed: %v", err)
	}

	resp := postJSON(t, ts.URL+"/api/edit/split", `{"at": 4}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("split status = %d, want 200", resp.StatusCode)
	}
	_, segments := decodeTimeline(t, resp)
	if len(segments) != 2 {
		t.Fatalf("segments after split = %v, want 2", segments)
	}

	// Rejected split maps to 422 and leaves the timeline unchanged.
	resp = postJSON(t, ts.URL+"/api/edit/split", `{"at": 4.05}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("near-edge split status = %d, want 422", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/edit/undo", `{}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("undo status = %d, want 200", resp.StatusCode)
	}
	_, segments = decodeTimeline(t, resp)
	if len(segments) != 1 {
		t.Errorf("segments after undo = %v, want 1", segments)
	}

	resp = postJSON(t, ts.URL+"/api/edit/remove", `{"start": 100, "end": 101}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("no-op remove status = %d, want 422", resp.StatusCode)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp := postJSON(t, ts.URL+"/api/session", `{"mic": true}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, want 200", resp.StatusCode)
	}
	var status SessionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if status.State != "active" || status.Mode != "screen+mic" {
		t.Errorf("status = %+v, want active screen+mic", status)
	}

	// Second start is rejected while one runs.
	resp = postJSON(t, ts.URL+"/api/session", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", resp.StatusCode)
	}

	// Let the recorder accumulate at least one timeslice.
	time.Sleep(700 * time.Millisecond)

	resp = postJSON(t, ts.URL+"/api/session/stop", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d, want 200", resp.StatusCode)
	}

	// The finalized recording landed in the library.
	info, err := http.Get(ts.URL + "/api/recording")
	if err != nil {
		t.Fatalf("GET recording: %v", err)
	}
	defer info.Body.Close()
	if info.StatusCode != http.StatusOK {
		t.Errorf("recording info status = %d, want 200", info.StatusCode)
	}
}

func TestExportOverHTTP(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	if err := srv.library.SetRecording(context.Background(), []byte("blob"), 10); err != nil {
		t.Fatalf("SetRecording failed: %v", err)
	}

	resp := postJSON(t, ts.URL+"/api/export", `{"format": "mp4", "preset": "medium"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", ct)
	}

	// Unknown preset maps to 422 and sticks as the last error.
	resp = postJSON(t, ts.URL+"/api/export", `{"format": "mp4", "preset": "imaginary"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad preset status = %d, want 422", resp.StatusCode)
	}

	errResp, err := http.Get(ts.URL + "/api/export/error")
	if err != nil {
		t.Fatalf("GET export error: %v", err)
	}
	errResp.Body.Close()
	if errResp.StatusCode != http.StatusOK {
		t.Errorf("export error status = %d, want 200 for sticky error", errResp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/export/error", nil)
	dismiss, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE export error: %v", err)
	}
	dismiss.Body.Close()

	cleared, err := http.Get(ts.URL + "/api/export/error")
	if err != nil {
		t.Fatalf("GET export error: %v", err)
	}
	cleared.Body.Close()
	if cleared.StatusCode != http.StatusNotFound {
		t.Errorf("dismissed error status = %d, want 404", cleared.StatusCode)
	}
}

func TestBasicAuth(t *testing.T) {
	_, ts := newTestServer(t, Options{AuthUsername: "op", AuthPassword: "secret"})

	// Health is open.
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200 without auth", resp.StatusCode)
	}

	// Protected routes demand credentials.
	resp, err = http.Get(ts.URL + "/api/session")
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/session", nil)
	req.SetBasicAuth("op", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET session with auth: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", resp.StatusCode)
	}
}

func TestSessionErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"busy", session.NewError(session.ErrCodeSessionBusy, "busy", nil), 409},
		{"invalid state", session.NewError(session.ErrCodeInvalidState, "bad", nil), 409},
		{"acquisition", session.NewError(session.ErrCodeAcquisition, "denied", nil), 502},
		{"permission denied", session.NewError(session.ErrCodeAcquisition, "denied",
			&capture.Error{Code: capture.ErrCodePermissionDenied}), 403},
		{"empty recording", session.NewError(session.ErrCodeEmptyRecording, "empty", nil), 422},
		{"untyped", errors.New("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var se huma.StatusError
			if !errors.As(sessionHTTPError(tt.err), &se) {
				t.Fatal("mapped error is not a status error")
			}
			if se.GetStatus() != tt.want {
				t.Errorf("status = %d, want %d", se.GetStatus(), tt.want)
			}
		})
	}
}

func TestExportErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"busy", export.NewError(export.ErrCodeBusy, "busy", nil), 409},
		{"no segments", export.NewError(export.ErrCodeNoSegments, "none", nil), 422},
		{"engine failed", export.NewError(export.ErrCodeEngineFailed, "boom", nil), 502},
		{"untyped", errors.New("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var se huma.StatusError
			if !errors.As(exportHTTPError(tt.err), &se) {
				t.Fatal("mapped error is not a status error")
			}
			if se.GetStatus() != tt.want {
				t.Errorf("status = %d, want %d", se.GetStatus(), tt.want)
			}
		})
	}
}
