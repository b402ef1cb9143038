// Package mixbus combines the local microphone, remote AI speech and
// local video into one composite stream for the recording channel.
package mixbus

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/device"
	"github.com/voxhire/go-interview-client/pkg/audio"
)

// Well-known tap names.
const (
	TapMic    = "mic"
	TapRemote = "remote"
	TapVideo  = "video"
)

var (
	// ErrTapExists rejects a second attachment under the same name; taps
	// connect once and are never removed during an active session.
	ErrTapExists = errors.New("tap already attached")

	// ErrBusClosed rejects writes after the session tore the bus down.
	ErrBusClosed = errors.New("mixing bus is closed")
)

// Bus routes every attached tap into one shared destination. Audio taps
// mix additively into an int32 accumulator (saturated to int16 on
// drain); the video tap passes encoded frames through. The recorder is
// the single consumer. Absence of any one tap never prevents the others
// from being recorded.
type Bus struct {
	logger     *zap.Logger
	sampleRate int

	mu      sync.Mutex
	taps    map[string]bool
	buffer  []int32
	drained int64 // absolute sample index of buffer[0]
	video   []device.EncodedFrame
	closed  bool
}

// NewBus creates an empty mixing bus. sampleRate is the rate of the
// composite timeline; audio pushed at any other rate is converted.
func NewBus(logger *zap.Logger, sampleRate int) *Bus {
	return &Bus{
		logger:     logger,
		sampleRate: sampleRate,
		taps:       make(map[string]bool),
	}
}

// Tap is a named audio input on the bus. Each tap keeps its own write
// cursor on the shared timeline so independently-paced sources stay
// aligned in the mix.
type Tap struct {
	bus    *Bus
	name   string
	cursor int64
}

// AttachTap connects a named audio input. Attachment is synchronized, so
// the recorder sees either the old or the new topology, never a
// partially-connected state; late mid-session attachment is therefore
// allowed.
func (b *Bus) AttachTap(name string) (*Tap, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if b.taps[name] {
		return nil, ErrTapExists
	}
	b.taps[name] = true

	t := &Tap{bus: b, name: name, cursor: b.drained + int64(len(b.buffer))}
	b.logger.Info("Tap attached to mixing bus", zap.String("tap", name))
	return t, nil
}

// PushSamples mixes mono int16 samples into the composite at the tap's
// cursor, growing the mix as needed. Safe for concurrent use across taps.
func (t *Tap) PushSamples(samples []int16) error {
	b := t.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	// A tap that fell behind a drain boundary re-anchors at the boundary;
	// its missed span has already been flushed as part of an earlier
	// segment.
	if t.cursor < b.drained {
		t.cursor = b.drained
	}

	off := int(t.cursor - b.drained)
	need := off + len(samples)
	if need > len(b.buffer) {
		b.buffer = append(b.buffer, make([]int32, need-len(b.buffer))...)
	}
	for i, s := range samples {
		b.buffer[off+i] += int32(s)
	}
	t.cursor += int64(len(samples))
	return nil
}

// Mix feeds a decoded playback buffer into the tap, downmixing to mono
// and converting to the bus rate so a chunk at a foreign sample rate
// keeps its real-time length in the composite. This satisfies the
// playback scheduler's tap contract.
func (t *Tap) Mix(buf *audio.Buffer) error {
	mono := downmixMono(buf)
	if buf.SampleRate > 0 && t.bus.sampleRate > 0 && buf.SampleRate != t.bus.sampleRate {
		t.bus.logger.Debug("Resampling tap audio to bus rate",
			zap.String("tap", t.name),
			zap.Int("from", buf.SampleRate),
			zap.Int("to", t.bus.sampleRate))
		mono = resampleLinear(mono, buf.SampleRate, t.bus.sampleRate)
	}
	return t.PushSamples(audio.Float32ToInt16(mono))
}

// VideoTap passes already-encoded video frames into the composite.
type VideoTap struct {
	bus *Bus
}

// AttachVideoTap connects the video input.
func (b *Bus) AttachVideoTap(name string) (*VideoTap, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if b.taps[name] {
		return nil, ErrTapExists
	}
	b.taps[name] = true

	b.logger.Info("Video tap attached to mixing bus", zap.String("tap", name))
	return &VideoTap{bus: b}, nil
}

// PushFrame appends one encoded frame in arrival order.
func (t *VideoTap) PushFrame(frame device.EncodedFrame) error {
	b := t.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	b.video = append(b.video, frame)
	return nil
}

// DrainComposite returns everything accumulated since the previous drain
// and clears it: the saturated int16 audio mix plus pending video frames
// in order. The recorder is the only caller.
func (b *Bus) DrainComposite() ([]int16, []device.EncodedFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pcm := make([]int16, len(b.buffer))
	for i, v := range b.buffer {
		pcm[i] = saturateInt16(v)
	}
	b.drained += int64(len(b.buffer))
	b.buffer = nil

	video := b.video
	b.video = nil

	return pcm, video
}

// PendingSamples reports the accumulated, undrained mix length.
func (b *Bus) PendingSamples() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// Close stops accepting input. Drain remains possible so the final
// segment can still be flushed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func downmixMono(buf *audio.Buffer) []float32 {
	if buf.Channels <= 1 {
		return buf.Samples
	}

	frames := len(buf.Samples) / buf.Channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < buf.Channels; ch++ {
			sum += buf.Samples[i*buf.Channels+ch]
		}
		mono[i] = sum / float32(buf.Channels)
	}
	return mono
}

// resampleLinear converts samples from one rate to another by linear
// interpolation. Adequate for speech headed into a lossy codec; the
// point is preserving real-time length, not audiophile fidelity.
func resampleLinear(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}

	n := int(float64(len(in)) * float64(to) / float64(from))
	if n == 0 {
		return nil
	}

	out := make([]float32, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}

// saturateInt16 clamps v to the valid int16 range.
func saturateInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
