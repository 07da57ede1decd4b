package compositor

import "image"

// Position selects where the picture-in-picture overlay sits on the canvas.
type Position string

// Corner presets plus free placement.
const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
	PositionCustom      Position = "custom"
)

const (
	pipPadding = 16 // px from canvas edge for corner presets

	minPIPSize = 0.05
	maxPIPSize = 0.5
)

// PIPConfig describes overlay placement. X and Y are normalized [0,1]
// offsets of the overlay's top-left corner and only meaningful for
// PositionCustom. Size is the fraction of canvas width the overlay occupies.
type PIPConfig struct {
	Position Position `json:"position"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Size     float64  `json:"size"`
}

// DefaultPIPConfig places the overlay bottom-right at 20% canvas width.
func DefaultPIPConfig() PIPConfig {
	return PIPConfig{Position: PositionBottomRight, Size: 0.2}
}

// normalize clamps Size into its sane range and coordinates into [0,1].
func (c PIPConfig) normalize() PIPConfig {
	if c.Position == "" {
		c.Position = PositionBottomRight
	}
	c.Size = clampF(c.Size, minPIPSize, maxPIPSize)
	c.X = clampF(c.X, 0, 1)
	c.Y = clampF(c.Y, 0, 1)
	return c
}

// placement resolves the overlay rectangle on a canvas. The overlay width is
// Size*canvasW; height follows the source aspect ratio. Corner presets get
// fixed padding; custom coordinates are clamped so the overlay stays fully
// on canvas.
func (c PIPConfig) placement(canvasW, canvasH, srcW, srcH int) image.Rectangle {
	c = c.normalize()
	if srcW <= 0 || srcH <= 0 {
		// A source reporting no dimensions still gets a well-formed box.
		srcW, srcH = 16, 9
	}

	w := int(float64(canvasW) * c.Size)
	if w < 2 {
		w = 2
	}
	h := w * srcH / srcW
	if h < 2 {
		h = 2
	}
	if h > canvasH {
		h = canvasH
		w = h * srcW / srcH
	}

	var x, y int
	switch c.Position {
	case PositionTopLeft:
		x, y = pipPadding, pipPadding
	case PositionTopRight:
		x, y = canvasW-w-pipPadding, pipPadding
	case PositionBottomLeft:
		x, y = pipPadding, canvasH-h-pipPadding
	case PositionCustom:
		x = int(c.X * float64(canvasW))
		y = int(c.Y * float64(canvasH))
	default: // bottom-right
		x, y = canvasW-w-pipPadding, canvasH-h-pipPadding
	}

	x = clampI(x, 0, canvasW-w)
	y = clampI(y, 0, canvasH-h)
	return image.Rect(x, y, x+w, y+h)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampI(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
