package recorder

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/media"
)

const (
	defaultTimeslice = 250 * time.Millisecond

	recordVideo byte = 'V'
	recordAudio byte = 'A'
)

// ChunkRecorder is an in-process Recorder that drains a combined stream into
// length-prefixed frame records and emits them at a fixed timeslice.
type ChunkRecorder struct {
	timeslice time.Duration
	bitrate   int // suggested bits/s for an encoding backend; advisory only
	logger    logging.Logger

	paused   atomic.Bool
	flushReq chan struct{}
	cancel   context.CancelFunc

	mu     sync.Mutex
	buf    []byte
	bufTS  time.Duration
	start  time.Time
	chunks chan Chunk
	done   chan struct{}

	stopOnce sync.Once
}

// NewChunkRecorder creates a recorder with the given suggested bitrate.
func NewChunkRecorder(bitrate int, logger logging.Logger) *ChunkRecorder {
	return &ChunkRecorder{
		timeslice: defaultTimeslice,
		bitrate:   bitrate,
		logger:    logger,
		flushReq:  make(chan struct{}, 1),
		chunks:    make(chan Chunk, 16),
		done:      make(chan struct{}),
	}
}

// Start begins draining the stream.
func (r *ChunkRecorder) Start(ctx context.Context, stream *media.Stream) error {
	if stream == nil || !stream.LiveVideo() {
		return ErrNoLiveVideo
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.start = time.Now()
	if r.logger != nil {
		r.logger.Debug("Recorder started", "timeslice", r.timeslice, "bitrate", r.bitrate)
	}

	for _, v := range stream.Video {
		go r.drainVideo(ctx, v)
	}
	for _, a := range stream.Audio {
		go r.drainAudio(ctx, a)
	}
	go r.emitLoop(ctx)
	return nil
}

// Pause suspends appending; incoming media is discarded while paused.
func (r *ChunkRecorder) Pause() { r.paused.Store(true) }

// Resume reverses Pause.
func (r *ChunkRecorder) Resume() { r.paused.Store(false) }

// RequestData triggers an immediate flush of the working buffer.
func (r *ChunkRecorder) RequestData() {
	select {
	case r.flushReq <- struct{}{}:
	default:
	}
}

// Stop terminates the recorder. The emit loop performs the final flush and
// closes the chunk channel itself, so a flush in flight can never race the
// close. Idempotent.
func (r *ChunkRecorder) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel == nil {
			// Never started, nothing is sending.
			close(r.chunks)
			close(r.done)
			return
		}
		r.cancel()
	})
}

// Chunks delivers recorded chunks.
func (r *ChunkRecorder) Chunks() <-chan Chunk { return r.chunks }

// Done reports terminal stop.
func (r *ChunkRecorder) Done() <-chan struct{} { return r.done }

func (r *ChunkRecorder) emitLoop(ctx context.Context) {
	ticker := time.NewTicker(r.timeslice)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Sole closer: final flush, then terminal notification.
			r.flush()
			close(r.chunks)
			close(r.done)
			return
		case <-ticker.C:
			r.flush()
		case <-r.flushReq:
			r.flush()
		}
	}
}

// flush emits the working buffer as one chunk.
func (r *ChunkRecorder) flush() {
	r.mu.Lock()
	if len(r.buf) == 0 {
		r.mu.Unlock()
		return
	}
	chunk := Chunk{Data: r.buf, Timestamp: r.bufTS}
	r.buf = nil
	r.mu.Unlock()

	select {
	case r.chunks <- chunk:
	default:
		// Consumer is not draining; drop rather than block the session.
		if r.logger != nil {
			r.logger.Warn("Dropping recorded chunk, consumer behind", "bytes", len(chunk.Data))
		}
	}
}

func (r *ChunkRecorder) drainVideo(ctx context.Context, src media.VideoSource) {
	for {
		frame, err := src.ReadFrame(ctx)
		if err != nil {
			if err == media.ErrSourceEnded {
				return
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if r.paused.Load() {
			continue
		}
		r.appendVideo(frame)
	}
}

func (r *ChunkRecorder) drainAudio(ctx context.Context, src media.AudioSource) {
	for {
		chunk, err := src.ReadChunk(ctx)
		if err != nil {
			if err == media.ErrSourceEnded {
				return
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if r.paused.Load() {
			continue
		}
		r.appendAudio(chunk)
	}
}

// appendVideo serializes one frame as a length-prefixed record.
func (r *ChunkRecorder) appendVideo(frame *media.VideoFrame) {
	header := make([]byte, 21)
	header[0] = recordVideo
	binary.BigEndian.PutUint64(header[1:], uint64(frame.Timestamp))
	binary.BigEndian.PutUint32(header[9:], uint32(frame.Width()))
	binary.BigEndian.PutUint32(header[13:], uint32(frame.Height()))
	binary.BigEndian.PutUint32(header[17:], uint32(len(frame.Image.Pix)))

	r.mu.Lock()
	if len(r.buf) == 0 {
		r.bufTS = time.Since(r.start)
	}
	r.buf = append(r.buf, header...)
	r.buf = append(r.buf, frame.Image.Pix...)
	r.mu.Unlock()
}

// appendAudio serializes one PCM chunk as a length-prefixed record.
func (r *ChunkRecorder) appendAudio(chunk *media.AudioChunk) {
	header := make([]byte, 21)
	header[0] = recordAudio
	binary.BigEndian.PutUint64(header[1:], uint64(chunk.Timestamp))
	binary.BigEndian.PutUint32(header[9:], uint32(chunk.SampleRate))
	binary.BigEndian.PutUint32(header[13:], uint32(chunk.Channels))
	binary.BigEndian.PutUint32(header[17:], uint32(len(chunk.Samples)*2))

	r.mu.Lock()
	if len(r.buf) == 0 {
		r.bufTS = time.Since(r.start)
	}
	r.buf = append(r.buf, header...)
	for _, s := range chunk.Samples {
		r.buf = append(r.buf, byte(uint16(s)>>8), byte(uint16(s)))
	}
	r.mu.Unlock()
}
