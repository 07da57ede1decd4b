package events

// Event type constants for kelindar/event.
const (
	TypeSessionState uint32 = iota + 1
	TypeRecordingSaved
	TypeExportProgress
	TypeExportDone
	TypeExportError
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStateEvent is published on every session state transition.
type SessionStateEvent struct {
	SessionID string `json:"session_id" doc:"Capture session identifier"`
	State     string `json:"state" example:"active" doc:"New session state"`
	Mode      string `json:"mode" example:"screen+mic" doc:"Resolved session mode"`
	Timestamp string `json:"timestamp" example:"2025-06-01T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for SessionStateEvent.
func (e SessionStateEvent) Type() uint32 { return TypeSessionState }

// RecordingSavedEvent is published when a finalized recording is available.
type RecordingSavedEvent struct {
	SessionID string  `json:"session_id" doc:"Capture session identifier"`
	Bytes     int     `json:"bytes" doc:"Size of the recorded blob"`
	Duration  float64 `json:"duration" doc:"Recorded duration in seconds, paused time excluded"`
	Timestamp string  `json:"timestamp" doc:"Finalize timestamp"`
}

// Type returns the event type identifier for RecordingSavedEvent.
func (e RecordingSavedEvent) Type() uint32 { return TypeRecordingSaved }

// ExportProgressEvent carries transcode progress for one export job.
type ExportProgressEvent struct {
	JobID      string  `json:"job_id" doc:"Export job identifier"`
	Ratio      float64 `json:"ratio" example:"0.42" doc:"Progress ratio in [0,1]"`
	ETASeconds float64 `json:"eta_seconds" doc:"Estimated seconds remaining, -1 while estimating"`
}

// Type returns the event type identifier for ExportProgressEvent.
func (e ExportProgressEvent) Type() uint32 { return TypeExportProgress }

// ExportDoneEvent is published when an export job completes.
type ExportDoneEvent struct {
	JobID     string `json:"job_id" doc:"Export job identifier"`
	Bytes     int    `json:"bytes" doc:"Size of the exported blob"`
	MimeType  string `json:"mime_type" example:"video/mp4" doc:"Output MIME type"`
	Timestamp string `json:"timestamp" doc:"Completion timestamp"`
}

// Type returns the event type identifier for ExportDoneEvent.
func (e ExportDoneEvent) Type() uint32 { return TypeExportDone }

// ExportErrorEvent is published when an export job fails.
type ExportErrorEvent struct {
	JobID     string `json:"job_id" doc:"Export job identifier"`
	Code      string `json:"code" example:"ENGINE_FAILED" doc:"Export error code"`
	Message   string `json:"message" doc:"Human-readable error description"`
	Timestamp string `json:"timestamp" doc:"Failure timestamp"`
}

// Type returns the event type identifier for ExportErrorEvent.
func (e ExportErrorEvent) Type() uint32 { return TypeExportError }

// LogEntryEvent carries one structured log line for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"session" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
