package compositor

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	xdraw "golang.org/x/image/draw"
)

const (
	pipCornerRadius = 10
	pipBorderWidth  = 2
	pipShadowOffset = 4
	pipShadowAlpha  = 90
)

var pipBorderColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// drawScaled scales src to fill dst's rect using bilinear filtering.
func drawScaled(dst *image.RGBA, rect image.Rectangle, src image.Image) {
	if src.Bounds().Eq(rect) {
		draw.Draw(dst, rect, src, src.Bounds().Min, draw.Src)
		return
	}
	xdraw.ApproxBiLinear.Scale(dst, rect, src, src.Bounds(), xdraw.Src, nil)
}

// drawOverlay renders the PIP image into rect with a drop shadow, a
// contrasting border and a rounded-rectangle clip so the overlay reads as
// distinct from the background.
func drawOverlay(dst *image.RGBA, rect image.Rectangle, src image.Image) {
	// Shadow behind and slightly offset from the overlay.
	shadowRect := rect.Add(image.Pt(pipShadowOffset, pipShadowOffset))
	shadow := image.NewUniform(color.RGBA{A: pipShadowAlpha})
	compositeMasked(dst, shadowRect, shadow, roundedMask(shadowRect.Dx(), shadowRect.Dy(), pipCornerRadius))

	// Border: a rounded rect slightly larger than the overlay.
	borderRect := rect.Inset(-pipBorderWidth)
	compositeMasked(dst, borderRect, image.NewUniform(pipBorderColor),
		roundedMask(borderRect.Dx(), borderRect.Dy(), pipCornerRadius+pipBorderWidth))

	// Scale the overlay into a temp raster, then composite through the
	// rounded clip mask.
	scaled := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Rect, src, src.Bounds(), xdraw.Src, nil)
	compositeMasked(dst, rect, scaled, roundedMask(rect.Dx(), rect.Dy(), pipCornerRadius))
}

// compositeMasked draws src through mask into rect, handling partial
// off-canvas rects by offsetting source and mask origins.
func compositeMasked(dst *image.RGBA, rect image.Rectangle, src image.Image, mask *image.Alpha) {
	r := rect.Intersect(dst.Rect)
	if r.Empty() {
		return
	}
	origin := r.Min.Sub(rect.Min)
	draw.DrawMask(dst, r, src, src.Bounds().Min.Add(origin), mask, origin, draw.Over)
}

var maskCache sync.Map // maskKey -> *image.Alpha

type maskKey struct {
	w, h, r int
}

// roundedMask returns an alpha mask for a w×h rounded rectangle.
// Masks are cached; overlay geometry rarely changes between ticks.
func roundedMask(w, h, r int) *image.Alpha {
	key := maskKey{w, h, r}
	if cached, ok := maskCache.Load(key); ok {
		return cached.(*image.Alpha)
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	if r > w/2 {
		r = w / 2
	}
	if r > h/2 {
		r = h / 2
	}
	r2 := r * r
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if insideRounded(x, y, w, h, r, r2) {
				mask.SetAlpha(x, y, color.Alpha{A: 255})
			}
		}
	}
	maskCache.Store(key, mask)
	return mask
}

// insideRounded reports whether (x, y) falls inside the rounded rect.
func insideRounded(x, y, w, h, r, r2 int) bool {
	cx, cy := -1, -1
	switch {
	case x < r && y < r:
		cx, cy = r, r
	case x >= w-r && y < r:
		cx, cy = w-r-1, r
	case x < r && y >= h-r:
		cx, cy = r, h-r-1
	case x >= w-r && y >= h-r:
		cx, cy = w-r-1, h-r-1
	default:
		return true
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r2
}
