// Package export turns trim state plus encode settings into transcoding
// engine jobs and tracks their progress. The planner emits one job per
// export: a plain two-point trim for a single kept segment, or a filter
// graph that trims each segment, concatenates, and post-processes the
// joined result exactly once.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/recnode/recnode/internal/editor"
	"github.com/recnode/recnode/internal/engine"
)

// Settings selects container, quality and output geometry for one export.
type Settings struct {
	// Format is the output container: "mp4" or "webm".
	Format string `json:"format"`

	// Preset names a row of the quality table.
	Preset string `json:"preset"`

	// CRF optionally overrides the preset quality, clamped into
	// [MinCRF, MaxCRF]. Ignored for the lossless preset.
	CRF *int `json:"crf,omitempty"`

	// Width and Height select the output box; zero keeps the source size.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// FPS is the output frame rate, normalized on every export. Zero
	// means 30.
	FPS int `json:"fps,omitempty"`
}

func (s Settings) fps() int {
	if s.FPS <= 0 {
		return 30
	}
	return s.FPS
}

// Plan is a fully resolved export job.
type Plan struct {
	Job          engine.Job
	MimeType     string
	MultiSegment bool
}

type formatSpec struct {
	ext        string
	mime       string
	videoArgs  func(crf int, effort string) []string
	audioCodec string
}

var formats = map[string]formatSpec{
	"mp4": {
		ext:  "mp4",
		mime: "video/mp4",
		videoArgs: func(crf int, effort string) []string {
			return []string{"-c:v", "libx264", "-preset", effort,
				"-crf", strconv.Itoa(crf), "-pix_fmt", "yuv420p",
				"-movflags", "+faststart"}
		},
		audioCodec: "aac",
	},
	"webm": {
		ext:  "webm",
		mime: "video/webm",
		videoArgs: func(crf int, effort string) []string {
			args := []string{"-c:v", "libvpx-vp9", "-b:v", "0",
				"-deadline", "good", "-cpu-used", vp9CPUUsed(effort)}
			if crf == LosslessCRF {
				return append(args, "-lossless", "1")
			}
			return append(args, "-crf", strconv.Itoa(crf))
		},
		audioCodec: "libopus",
	},
}

// vp9CPUUsed maps x264-style effort names onto the vp9 speed scale.
func vp9CPUUsed(effort string) string {
	switch effort {
	case "veryfast":
		return "5"
	case "fast":
		return "4"
	case "medium":
		return "2"
	default:
		return "1"
	}
}

// BuildPlan resolves trim state and settings into one engine job.
func BuildPlan(input []byte, segments []editor.Segment, settings Settings, presets *Presets, hasAudio bool) (*Plan, error) {
	if len(segments) == 0 {
		return nil, NewError(ErrCodeNoSegments, "nothing to export", nil)
	}
	total := 0.0
	for _, seg := range segments {
		if seg.End <= seg.Start {
			return nil, NewError(ErrCodeNoSegments,
				fmt.Sprintf("segment [%v, %v) has no length", seg.Start, seg.End), nil)
		}
		total += seg.Length()
	}

	spec, ok := formats[settings.Format]
	if !ok {
		return nil, NewError(ErrCodeBadSettings,
			fmt.Sprintf("unknown format %q", settings.Format), nil)
	}
	preset, err := presets.Lookup(settings.Preset)
	if err != nil {
		return nil, err
	}
	crf := effectiveCRF(preset, settings.CRF)

	var args []string
	multi := len(segments) > 1
	if multi {
		args = concatArgs(segments, settings, hasAudio)
	} else {
		args = trimArgs(segments[0], settings)
	}
	args = append(args, spec.videoArgs(crf, preset.Effort)...)
	if hasAudio {
		args = append(args, "-c:a", spec.audioCodec,
			"-b:a", fmt.Sprintf("%dk", preset.AudioBitrate/1000))
	} else if !multi {
		// The concat graph already maps video-only; plain trims need an
		// explicit audio drop.
		args = append(args, "-an")
	}

	return &Plan{
		Job: engine.Job{
			Input:     input,
			Args:      args,
			OutputExt: spec.ext,
			Duration:  total,
		},
		MimeType:     spec.mime,
		MultiSegment: multi,
	}, nil
}

// trimArgs builds the single-segment job: a two-point trim plus the output
// filter chain.
func trimArgs(seg editor.Segment, settings Settings) []string {
	return []string{
		"-ss", formatSeconds(seg.Start),
		"-to", formatSeconds(seg.End),
		"-vf", outputFilter(settings),
	}
}

// concatArgs builds the multi-segment filter graph: per-segment trims,
// in-order concatenation, then scale/pad/fps exactly once on the joined
// result so output cadence does not depend on segment count.
func concatArgs(segments []editor.Segment, settings Settings, hasAudio bool) []string {
	var graph strings.Builder

	for i, seg := range segments {
		fmt.Fprintf(&graph, "[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS[v%d];",
			formatSeconds(seg.Start), formatSeconds(seg.End), i)
		if hasAudio {
			fmt.Fprintf(&graph, "[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d];",
				formatSeconds(seg.Start), formatSeconds(seg.End), i)
		}
	}

	for i := range segments {
		fmt.Fprintf(&graph, "[v%d]", i)
		if hasAudio {
			fmt.Fprintf(&graph, "[a%d]", i)
		}
	}
	audioCount := 0
	if hasAudio {
		audioCount = 1
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=1:a=%d[vcat]", len(segments), audioCount)
	if hasAudio {
		graph.WriteString("[acat]")
	}
	fmt.Fprintf(&graph, ";[vcat]%s[vout]", outputFilter(settings))

	args := []string{"-filter_complex", graph.String(), "-map", "[vout]"}
	if hasAudio {
		args = append(args, "-map", "[acat]")
	}
	return args
}

// outputFilter builds the post-trim chain: scale to fit the target box
// preserving aspect, centered pad to fill it exactly, and frame-rate
// normalization. The fps stage applies even at source resolution so
// irregular source timebases never inflate output duration.
func outputFilter(settings Settings) string {
	var parts []string
	if settings.Width > 0 && settings.Height > 0 {
		parts = append(parts,
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease",
				settings.Width, settings.Height),
			fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
				settings.Width, settings.Height))
	}
	parts = append(parts, fmt.Sprintf("fps=%d", settings.fps()))
	return strings.Join(parts, ",")
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
