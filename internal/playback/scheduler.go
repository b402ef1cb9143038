package playback

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/pkg/audio"
)

// seamFade is the ramp applied at scheduling seams: fade-in after a gap,
// fade-out before every buffer's natural end.
const seamFade = 10 * time.Millisecond

// Stats counts scheduler outcomes.
type Stats struct {
	Scheduled int64
	Skipped   int64
}

// Scheduler owns the FIFO queue of decoded buffers and the virtual
// playback clock. Buffers play strictly in arrival order and are never
// reordered or dropped except on Flush.
type Scheduler struct {
	logger *zap.Logger
	clock  *VirtualClock
	sink   Sink
	tap    Tap

	mu      sync.Mutex
	queue   []*audio.Buffer
	pending chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

// NewScheduler creates a scheduler. The tap connection is mandatory in
// production wiring: without it the recording has no AI voice. A nil tap
// is tolerated for listen-only use.
func NewScheduler(logger *zap.Logger, clock *VirtualClock, sink Sink, tap Tap) *Scheduler {
	return &Scheduler{
		logger:  logger,
		clock:   clock,
		sink:    sink,
		tap:     tap,
		pending: make(chan struct{}, 1),
	}
}

// Enqueue appends a decoded buffer to the playback queue. The queue is
// bounded only by memory; ownership of buf transfers to the scheduler.
func (s *Scheduler) Enqueue(buf *audio.Buffer) {
	s.mu.Lock()
	s.queue = append(s.queue, buf)
	s.mu.Unlock()

	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled, scheduling one buffer at
// a time.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.pending:
		}

		for {
			buf := s.pop()
			if buf == nil {
				break
			}
			s.scheduleOne(buf)

			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}

func (s *Scheduler) pop() *audio.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	buf := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return buf
}

func (s *Scheduler) scheduleOne(buf *audio.Buffer) {
	duration := buf.Duration()
	start, gapped := s.clock.Reserve(duration)

	if gapped {
		applyFadeIn(buf, seamFade)
	}
	applyFadeOut(buf, seamFade)

	// Dual fan-out: the recording tap gets the same signal the speaker
	// does. Tap failure degrades the recording, never playback.
	if s.tap != nil {
		if err := s.tap.Mix(buf); err != nil {
			s.logger.Warn("Failed to feed remote audio into recording mix", zap.Error(err))
		}
	}

	if err := s.sink.Play(buf, start); err != nil {
		// A single bad buffer must never stall the pipeline.
		s.logger.Warn("Sink rejected buffer, skipping",
			zap.Duration("duration", duration),
			zap.Error(err))
		s.statsMu.Lock()
		s.stats.Skipped++
		s.statsMu.Unlock()
		return
	}

	s.statsMu.Lock()
	s.stats.Scheduled++
	s.statsMu.Unlock()
}

// Flush discards all queued buffers. Called from the termination
// sequence, the single authoritative cancellation point.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	n := len(s.queue)
	s.queue = nil
	s.mu.Unlock()

	if n > 0 {
		s.logger.Info("Discarded queued playback buffers", zap.Int("count", n))
	}
	s.clock.Reset()
}

// Stats returns a snapshot of scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// applyFadeIn ramps the first fade-worth of frames linearly from zero.
func applyFadeIn(buf *audio.Buffer, fade time.Duration) {
	n := fadeFrames(buf, fade)
	for i := 0; i < n; i++ {
		gain := float32(i) / float32(n)
		for ch := 0; ch < buf.Channels; ch++ {
			buf.Samples[i*buf.Channels+ch] *= gain
		}
	}
}

// applyFadeOut ramps the final fade-worth of frames linearly to zero.
func applyFadeOut(buf *audio.Buffer, fade time.Duration) {
	n := fadeFrames(buf, fade)
	frames := len(buf.Samples) / buf.Channels
	for i := 0; i < n; i++ {
		gain := float32(i) / float32(n)
		frame := frames - 1 - i
		for ch := 0; ch < buf.Channels; ch++ {
			buf.Samples[frame*buf.Channels+ch] *= gain
		}
	}
}

func fadeFrames(buf *audio.Buffer, fade time.Duration) int {
	if buf.SampleRate <= 0 || buf.Channels <= 0 {
		return 0
	}
	n := int(float64(buf.SampleRate) * fade.Seconds())
	frames := len(buf.Samples) / buf.Channels
	if n > frames/2 {
		n = frames / 2
	}
	return n
}
