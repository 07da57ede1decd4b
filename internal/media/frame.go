// Package media defines the raw frame and sample types shared by the
// capture, compositing, mixing and recording layers, plus the source
// interfaces that producers of live media implement.
package media

import (
	"image"
	"time"
)

// VideoFrame is one raw RGBA raster with a capture timestamp.
// The Image may be reused by the producer; callers that keep a frame
// beyond the next read must Clone it.
type VideoFrame struct {
	Image     *image.RGBA
	Timestamp time.Duration // offset from source start
}

// Width returns the frame width in pixels.
func (f *VideoFrame) Width() int {
	return f.Image.Rect.Dx()
}

// Height returns the frame height in pixels.
func (f *VideoFrame) Height() int {
	return f.Image.Rect.Dy()
}

// Clone creates a deep copy of the frame.
func (f *VideoFrame) Clone() *VideoFrame {
	img := image.NewRGBA(f.Image.Rect)
	copy(img.Pix, f.Image.Pix)
	return &VideoFrame{Image: img, Timestamp: f.Timestamp}
}

// AudioChunk is a block of interleaved signed 16-bit PCM samples.
type AudioChunk struct {
	Samples    []int16 // interleaved, len = frames * channels
	SampleRate int
	Channels   int
	Timestamp  time.Duration // offset from source start
}

// FrameCount returns the number of sample frames in the chunk.
func (c *AudioChunk) FrameCount() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the play time covered by the chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.FrameCount()) * time.Second / time.Duration(c.SampleRate)
}

// Clone creates a deep copy of the chunk.
func (c *AudioChunk) Clone() *AudioChunk {
	samples := make([]int16, len(c.Samples))
	copy(samples, c.Samples)
	return &AudioChunk{
		Samples:    samples,
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		Timestamp:  c.Timestamp,
	}
}
