package playback

import (
	"time"

	"github.com/voxhire/go-interview-client/pkg/audio"
)

// Sink is the listening-device output. Implementations queue the buffer
// to begin at start and must not block for the buffer's duration; the
// platform audio layer that provides the speaker handle implements this.
type Sink interface {
	Play(buf *audio.Buffer, start time.Time) error
}

// Tap receives a copy of every scheduled buffer for the recording mix.
// The mixing bus's remote-audio tap implements this.
type Tap interface {
	Mix(buf *audio.Buffer) error
}

// NopSink discards playback, for headless operation and tests.
type NopSink struct{}

func (NopSink) Play(*audio.Buffer, time.Time) error { return nil }
