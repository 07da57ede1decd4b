package editor

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/recnode/recnode/internal/media"
)

// ErrNoFrames is returned when a filmstrip is requested with no input.
var ErrNoFrames = errors.New("editor: no frames for filmstrip")

// Thumbnailer renders filmstrip previews for the timeline: a fixed number
// of cells, each a center-cropped thumbnail of an evenly spaced frame.
type Thumbnailer struct {
	CellWidth  int
	CellHeight int
	Cells      int
}

// DefaultThumbnailer returns a 10-cell strip of 160x90 thumbnails.
func DefaultThumbnailer() Thumbnailer {
	return Thumbnailer{CellWidth: 160, CellHeight: 90, Cells: 10}
}

// Strip renders the filmstrip from decoded frames. Frames are sampled
// evenly; fewer frames than cells repeats the nearest frame.
func (t Thumbnailer) Strip(frames []*media.VideoFrame) (image.Image, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	cells := t.Cells
	if cells <= 0 {
		cells = 1
	}

	strip := imaging.New(t.CellWidth*cells, t.CellHeight, color.Transparent)
	for i := 0; i < cells; i++ {
		frame := frames[i*len(frames)/cells]
		cell := imaging.Fill(frame.Image, t.CellWidth, t.CellHeight,
			imaging.Center, imaging.Box)
		strip = imaging.Paste(strip, cell, image.Pt(i*t.CellWidth, 0))
	}
	return strip, nil
}
