package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/process"
)

// ExecEngine runs ffmpeg/ffprobe subprocesses through the managed process
// runner. Each job gets its own scratch directory; input and output travel
// through files, progress through `-progress pipe:1` key/value lines.
type ExecEngine struct {
	// FFmpegPath and FFprobePath override the binaries, empty means PATH
	// lookup of the standard names.
	FFmpegPath  string
	FFprobePath string

	logger logging.Logger
}

// NewExecEngine creates an engine shelling out to ffmpeg and ffprobe.
func NewExecEngine(logger logging.Logger) *ExecEngine {
	return &ExecEngine{logger: logger}
}

func (e *ExecEngine) ffmpeg() string {
	if e.FFmpegPath != "" {
		return e.FFmpegPath
	}
	return "ffmpeg"
}

func (e *ExecEngine) ffprobe() string {
	if e.FFprobePath != "" {
		return e.FFprobePath
	}
	return "ffprobe"
}

// Run executes one transcode job.
func (e *ExecEngine) Run(ctx context.Context, job Job, progress ProgressFunc) ([]byte, error) {
	if len(job.Input) == 0 {
		return nil, NewError(ErrCodeBadInput, "empty input", nil)
	}
	if job.OutputExt == "" {
		return nil, NewError(ErrCodeBadInput, "missing output extension", nil)
	}

	dir, err := os.MkdirTemp("", "recnode-export-")
	if err != nil {
		return nil, NewError(ErrCodeEngineFailed, "creating scratch dir", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.bin")
	out := filepath.Join(dir, "output."+job.OutputExt)
	if err := os.WriteFile(in, job.Input, 0o600); err != nil {
		return nil, NewError(ErrCodeEngineFailed, "writing input", err)
	}

	args := []string{e.ffmpeg(), "-hide_banner", "-loglevel", "level+info",
		"-y", "-progress", "pipe:1", "-nostats"}
	args = append(args, job.InputArgs...)
	args = append(args, "-i", in)
	args = append(args, job.Args...)
	args = append(args, out)

	proc := process.NewProcess("export", joinCommand(args), e.logger)
	proc.SetDir(dir)
	proc.SetLogParser(logging.GetLogger("ffmpeg"), ParseLogLevel)
	proc.SetOutputHandler(&progressHandler{duration: job.Duration, progress: progress})

	if code := proc.Run(ctx); code != 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewError(ErrCodeEngineFailed,
			fmt.Sprintf("engine exited with code %d", code), nil)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, NewError(ErrCodeEngineFailed, "reading output", err)
	}
	if progress != nil {
		progress(1)
	}
	return data, nil
}

// Probe inspects the input with ffprobe. Never mutates the input.
func (e *ExecEngine) Probe(ctx context.Context, input []byte) (*ProbeResult, error) {
	if len(input) == 0 {
		return nil, NewError(ErrCodeBadInput, "empty input", nil)
	}

	dir, err := os.MkdirTemp("", "recnode-probe-")
	if err != nil {
		return nil, NewError(ErrCodeProbeFailed, "creating scratch dir", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.bin")
	if err := os.WriteFile(in, input, 0o600); err != nil {
		return nil, NewError(ErrCodeProbeFailed, "writing input", err)
	}

	args := []string{e.ffprobe(), "-v", "quiet", "-print_format", "json",
		"-show_streams", "-show_format", in}

	var capture outputCapture
	proc := process.NewProcess("probe", joinCommand(args), e.logger)
	proc.SetDir(dir)
	proc.SetOutputHandler(&capture)

	if code := proc.Run(ctx); code != 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewError(ErrCodeProbeFailed,
			fmt.Sprintf("probe exited with code %d", code), nil)
	}
	return parseProbeOutput(capture.String())
}

// probeOutput matches the ffprobe JSON shape we care about.
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeOutput(raw string) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, NewError(ErrCodeProbeFailed, "parsing probe output", err)
	}

	result := &ProbeResult{}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "audio":
			result.HasAudio = true
		case "video":
			result.HasVideo = true
			if s.Width > 0 {
				result.Width = s.Width
				result.Height = s.Height
			}
		}
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && d > 0 {
		result.Duration = d
	}
	return result, nil
}

// progressHandler extracts progress ratios from `-progress pipe:1` output.
type progressHandler struct {
	duration float64
	progress ProgressFunc
}

func (h *progressHandler) HandleLine(_, line string) {
	if h.progress == nil {
		return
	}
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}
	switch key {
	case "out_time_us", "out_time_ms":
		// Both report microseconds.
		if h.duration <= 0 {
			return
		}
		if us, err := strconv.ParseFloat(val, 64); err == nil && us >= 0 {
			h.progress(us / 1e6 / h.duration)
		}
	case "progress":
		if val == "end" {
			h.progress(1)
		}
	}
}

// outputCapture accumulates stdout lines, for ffprobe JSON.
type outputCapture struct {
	mu    sync.Mutex
	lines []string
}

func (c *outputCapture) HandleLine(source, line string) {
	if source != "stdout" {
		return
	}
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *outputCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.lines, "\n")
}

// joinCommand renders an argument vector as a command string for the
// process runner, quoting arguments that contain spaces.
func joinCommand(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		if strings.ContainsAny(arg, " \t") {
			quoted[i] = `"` + arg + `"`
		} else {
			quoted[i] = arg
		}
	}
	return strings.Join(quoted, " ")
}
