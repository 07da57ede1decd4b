package capture

import (
	"context"

	"github.com/recnode/recnode/internal/media"
)

// TestEngine is a capture engine backed by synthetic sources. Used by the
// `record --test` CLI path and by session tests; Deny* flags simulate the
// user rejecting the corresponding permission prompt.
type TestEngine struct {
	DisplayConfig media.VideoConfig
	CameraConfig  media.VideoConfig
	SystemAudio   bool

	DenyDisplay bool
	DenyMic     bool
	DenyCamera  bool
}

// NewTestEngine returns a test engine with 720p display and a small camera.
func NewTestEngine() *TestEngine {
	return &TestEngine{
		DisplayConfig: media.VideoConfig{Width: 1280, Height: 720, FPS: 30},
		CameraConfig:  media.VideoConfig{Width: 320, Height: 240, FPS: 30},
	}
}

// Display returns a synthetic screen track plus optional system audio.
func (e *TestEngine) Display(ctx context.Context) (media.VideoSource, media.AudioSource, error) {
	if e.DenyDisplay {
		return nil, nil, NewError(ErrCodePermissionDenied, "display capture rejected", nil)
	}
	video := media.NewTestPatternSource(e.DisplayConfig)
	var audio media.AudioSource
	if e.SystemAudio {
		audio = media.NewToneSource(48000, 2, 220)
	}
	return video, audio, nil
}

// Microphone returns a synthetic mic track.
func (e *TestEngine) Microphone(ctx context.Context) (media.AudioSource, error) {
	if e.DenyMic {
		return nil, NewError(ErrCodePermissionDenied, "microphone capture rejected", nil)
	}
	return media.NewToneSource(48000, 1, 440), nil
}

// Camera returns a synthetic camera track.
func (e *TestEngine) Camera(ctx context.Context) (media.VideoSource, error) {
	if e.DenyCamera {
		return nil, NewError(ErrCodePermissionDenied, "camera capture rejected", nil)
	}
	return media.NewTestPatternSource(e.CameraConfig), nil
}
