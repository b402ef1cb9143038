// Package audio provides PCM sample conversion, format decoding and level
// measurement helpers shared by the capture and playback pipelines.
package audio

import "time"

// Format identifies the container of an inbound audio chunk.
type Format string

const (
	// FormatWAV marks a self-describing RIFF/WAVE payload. Sample rate and
	// channel count are taken from the container, not from chunk metadata.
	FormatWAV Format = "wav"
	// FormatPCM marks a headerless payload described by chunk metadata.
	FormatPCM Format = "pcm"
)

// Encoding identifies the sample encoding of a raw PCM payload.
type Encoding string

const (
	// EncodingInt16LE is signed 16-bit little-endian PCM, the default when
	// a chunk carries no encoding tag.
	EncodingInt16LE Encoding = "int16le"
	// EncodingFloat32LE is 32-bit little-endian IEEE float PCM.
	EncodingFloat32LE Encoding = "float32le"
)

const (
	// DefaultSampleRate is the pipeline-wide rate assumed when a PCM chunk
	// carries no rate of its own.
	DefaultSampleRate = 24000

	// DefaultChannels is the assumed channel count for untagged PCM.
	DefaultChannels = 1
)

// Chunk is one discrete unit of inbound audio together with its format
// metadata. A chunk is immutable once received and owned by the decoder
// until it has been converted.
type Chunk struct {
	Format     Format
	Encoding   Encoding
	SampleRate int
	Channels   int
	Payload    []byte
	ReceivedAt time.Time
}

// Buffer is decoded linear PCM ready for scheduling. Samples are float32
// in [-1, 1], interleaved when Channels > 1. A buffer is owned by the
// playback scheduler until consumed, then discarded.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration reports the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(float64(frames) / float64(b.SampleRate) * float64(time.Second))
}
