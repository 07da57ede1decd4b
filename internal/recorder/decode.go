package recorder

import (
	"encoding/binary"
	"errors"
	"image"
	"time"

	"github.com/recnode/recnode/internal/media"
)

// ErrCorruptRecording is returned when a recorded blob cannot be parsed.
var ErrCorruptRecording = errors.New("recorder: corrupt recording data")

const recordHeaderSize = 21

// DecodeVideoFrames walks a recorded blob and reconstructs its video frames.
// Audio records are skipped. The maxFrames cap bounds memory when only a
// sample of the recording is needed; zero means no cap.
func DecodeVideoFrames(data []byte, maxFrames int) ([]*media.VideoFrame, error) {
	var frames []*media.VideoFrame

	for len(data) > 0 {
		if len(data) < recordHeaderSize {
			return nil, ErrCorruptRecording
		}
		kind := data[0]
		ts := time.Duration(binary.BigEndian.Uint64(data[1:]))
		a := int(binary.BigEndian.Uint32(data[9:]))
		b := int(binary.BigEndian.Uint32(data[13:]))
		size := int(binary.BigEndian.Uint32(data[17:]))
		data = data[recordHeaderSize:]

		if size < 0 || size > len(data) {
			return nil, ErrCorruptRecording
		}
		payload := data[:size]
		data = data[size:]

		switch kind {
		case recordVideo:
			if a <= 0 || b <= 0 || size != a*b*4 {
				return nil, ErrCorruptRecording
			}
			img := image.NewRGBA(image.Rect(0, 0, a, b))
			copy(img.Pix, payload)
			frames = append(frames, &media.VideoFrame{Image: img, Timestamp: ts})
			if maxFrames > 0 && len(frames) >= maxFrames {
				return frames, nil
			}
		case recordAudio:
			// skip
		default:
			return nil, ErrCorruptRecording
		}
	}
	return frames, nil
}

// SampleVideoFrames decodes up to count frames spread evenly across the
// recording, for filmstrip rendering.
func SampleVideoFrames(data []byte, count int) ([]*media.VideoFrame, error) {
	if count <= 0 {
		return nil, nil
	}
	frames, err := DecodeVideoFrames(data, 0)
	if err != nil {
		return nil, err
	}
	if len(frames) <= count {
		return frames, nil
	}

	sampled := make([]*media.VideoFrame, 0, count)
	step := float64(len(frames)) / float64(count)
	for i := 0; i < count; i++ {
		sampled = append(sampled, frames[int(float64(i)*step)])
	}
	return sampled, nil
}
