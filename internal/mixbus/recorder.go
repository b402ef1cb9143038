package mixbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/config"
	"github.com/voxhire/go-interview-client/internal/device"
)

// SegmentSender is the recording socket surface the recorder needs.
type SegmentSender interface {
	SendSegment(segment []byte) error
}

// Recorder is the single consumer of the mixing bus. It drains the
// composite at a fixed cadence, encodes the audio, and flushes segments
// to the recording socket strictly in accumulation order. A final flush
// runs on shutdown so session-end audio is not lost.
type Recorder struct {
	logger *zap.Logger
	cfg    *config.Config
	bus    *Bus
	enc    AudioEncoder
	sender SegmentSender

	mu            sync.Mutex
	seq           uint64
	lastSegmentAt time.Time
	running       bool
}

// NewRecorder creates a recorder over the given bus.
func NewRecorder(logger *zap.Logger, cfg *config.Config, bus *Bus, enc AudioEncoder, sender SegmentSender) *Recorder {
	return &Recorder{
		logger: logger,
		cfg:    cfg,
		bus:    bus,
		enc:    enc,
		sender: sender,
	}
}

// Run flushes segments until ctx is cancelled, then performs one final
// flush. It may be called again after returning, which is how the
// recording channel's manual retry restarts the recorder with a restored
// socket.
func (r *Recorder) Run(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ticker := time.NewTicker(r.cfg.Recording.SegmentInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case <-ticker.C:
			r.flush()
		}
	}
}

func (r *Recorder) flush() {
	pcm, video := r.bus.DrainComposite()
	if len(pcm) == 0 && len(video) == 0 {
		return
	}

	audioBlock, err := r.enc.Encode(pcm)
	if err != nil {
		// Segment-local failure: this chunk of media is lost but the
		// recorder keeps going.
		r.logger.Error("Failed to encode composite audio, segment dropped",
			zap.Int("samples", len(pcm)),
			zap.Error(err))
		return
	}

	r.mu.Lock()
	seq := r.seq
	r.seq++
	r.mu.Unlock()

	seg := &Segment{
		Seq:       seq,
		CreatedAt: time.Now(),
		Audio:     audioBlock,
		Video:     framesData(video),
	}

	payload, err := seg.MarshalBinary()
	if err != nil {
		r.logger.Error("Failed to marshal segment", zap.Uint64("seq", seq), zap.Error(err))
		return
	}

	if err := r.sender.SendSegment(payload); err != nil {
		// Discard, never retry: a backlog of stale media is worse than a
		// hole the health monitor will surface.
		r.logger.Warn("Failed to send recording segment",
			zap.Uint64("seq", seq),
			zap.Int("bytes", len(payload)),
			zap.Error(err))
		return
	}

	r.mu.Lock()
	r.lastSegmentAt = time.Now()
	r.mu.Unlock()

	r.logger.Debug("Recording segment flushed",
		zap.Uint64("seq", seq),
		zap.Int("audio_bytes", len(audioBlock)),
		zap.Int("video_frames", len(video)))
}

// LastSegmentAt reports when the recorder last emitted a segment
// successfully. The health monitor compares it against the staleness
// window.
func (r *Recorder) LastSegmentAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSegmentAt
}

// Running reports whether the flush loop is active.
func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func framesData(frames []device.EncodedFrame) [][]byte {
	out := make([][]byte, len(frames))
	for i, f := range frames {
		out[i] = f.Data
	}
	return out
}
