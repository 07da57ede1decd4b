package media

// Stream is a combined set of live tracks handed to a recorder.
type Stream struct {
	Video []VideoSource
	Audio []AudioSource
}

// LiveVideo reports whether the stream carries at least one live video track
// with non-zero dimensions. Recorders must reject streams where this is
// false; recording a track-less or dead stream produces an unusable blob.
func (s *Stream) LiveVideo() bool {
	for _, v := range s.Video {
		select {
		case <-v.Done():
			continue
		default:
		}
		cfg := v.Config()
		if cfg.Width > 0 && cfg.Height > 0 {
			return true
		}
	}
	return false
}

// HasAudio reports whether the stream carries any audio track.
func (s *Stream) HasAudio() bool {
	return len(s.Audio) > 0
}
