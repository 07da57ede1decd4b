package recorder

import (
	"image"
	"testing"
	"time"

	"github.com/recnode/recnode/internal/media"
)

func encodeFrames(t *testing.T, videoFrames int, audioChunks int) []byte {
	t.Helper()
	r := NewChunkRecorder(0, nil)
	r.start = time.Now()
	for i := 0; i < videoFrames; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 4, 2))
		img.Pix[0] = byte(i + 1)
		r.appendVideo(&media.VideoFrame{
			Image:     img,
			Timestamp: time.Duration(i) * 100 * time.Millisecond,
		})
	}
	for i := 0; i < audioChunks; i++ {
		r.appendAudio(&media.AudioChunk{
			Samples:    make([]int16, 96),
			SampleRate: 48000,
			Channels:   2,
		})
	}
	return r.buf
}

func TestDecodeVideoFramesRoundTrip(t *testing.T) {
	data := encodeFrames(t, 3, 2)

	frames, err := DecodeVideoFrames(data, 0)
	if err != nil {
		t.Fatalf("DecodeVideoFrames failed: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("decoded %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if f.Width() != 4 || f.Height() != 2 {
			t.Errorf("frame %d size %dx%d, want 4x2", i, f.Width(), f.Height())
		}
		if f.Image.Pix[0] != byte(i+1) {
			t.Errorf("frame %d first pixel %d, want %d", i, f.Image.Pix[0], i+1)
		}
	}
	if frames[1].Timestamp != 100*time.Millisecond {
		t.Errorf("frame 1 timestamp %v, want 100ms", frames[1].Timestamp)
	}
}

func TestDecodeVideoFramesCap(t *testing.T) {
	data := encodeFrames(t, 5, 0)
	frames, err := DecodeVideoFrames(data, 2)
	if err != nil {
		t.Fatalf("DecodeVideoFrames failed: %v", err)
	}
	if len(frames) != 2 {
		t.Errorf("decoded %d frames, want capped 2", len(frames))
	}
}

func TestDecodeVideoFramesCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated header", []byte{recordVideo, 0, 0}},
		{"unknown record kind", append([]byte{'X'}, make([]byte, 20)...)},
		{"payload past end", encodeFrames(t, 1, 0)[:25]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeVideoFrames(tt.data, 0); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestSampleVideoFramesEvenSpread(t *testing.T) {
	data := encodeFrames(t, 10, 3)

	sampled, err := SampleVideoFrames(data, 4)
	if err != nil {
		t.Fatalf("SampleVideoFrames failed: %v", err)
	}
	if len(sampled) != 4 {
		t.Fatalf("sampled %d frames, want 4", len(sampled))
	}
	// Samples come in recording order from across the whole blob.
	prev := byte(0)
	for _, f := range sampled {
		if f.Image.Pix[0] <= prev {
			t.Errorf("samples out of order: %d after %d", f.Image.Pix[0], prev)
		}
		prev = f.Image.Pix[0]
	}
	if sampled[3].Image.Pix[0] < 7 {
		t.Errorf("last sample from frame %d, want from the tail of the recording", sampled[3].Image.Pix[0])
	}

	// Fewer frames than requested returns everything.
	few, err := SampleVideoFrames(encodeFrames(t, 2, 0), 4)
	if err != nil {
		t.Fatalf("SampleVideoFrames failed: %v", err)
	}
	if len(few) != 2 {
		t.Errorf("sampled %d frames, want all 2", len(few))
	}
}
