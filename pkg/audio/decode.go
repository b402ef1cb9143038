package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeError marks an inbound chunk that could not be converted. The
// chunk is dropped by the caller; the pipeline continues.
type DecodeError struct {
	msg   string
	cause error
}

func newDecodeError(msg string, cause error) *DecodeError {
	return &DecodeError{msg: msg, cause: cause}
}

func (e *DecodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *DecodeError) Unwrap() error { return e.cause }

const (
	// highPassCoefficient is the single-pole filter coefficient applied to
	// float payloads to strip DC offset and pop artifacts.
	highPassCoefficient = 0.98

	// edgeFadeSamples is the linear fade length applied at both ends of a
	// float buffer to avoid clicks at chunk seams.
	edgeFadeSamples = 100

	// clipLimit bounds float samples after filtering.
	clipLimit = 0.99
)

// Decode converts one inbound chunk into a playable buffer. It is a pure
// function of its input: no state is retained across calls and no partial
// buffer is ever produced on error.
func Decode(c Chunk) (*Buffer, error) {
	switch c.Format {
	case FormatWAV:
		info, err := parseWAV(c.Payload)
		if err != nil {
			return nil, err
		}
		return &Buffer{Samples: info.samples, SampleRate: info.sampleRate, Channels: info.channels}, nil

	case FormatPCM, "":
		return decodePCM(c)

	default:
		return nil, newDecodeError(fmt.Sprintf("unsupported format %q", c.Format), nil)
	}
}

func decodePCM(c Chunk) (*Buffer, error) {
	rate := c.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	channels := c.Channels
	if channels <= 0 {
		channels = DefaultChannels
	}

	var samples []float32
	switch c.Encoding {
	case EncodingFloat32LE:
		if len(c.Payload)%4 != 0 {
			return nil, newDecodeError(fmt.Sprintf("truncated payload: %d bytes is not a multiple of 4", len(c.Payload)), nil)
		}
		samples = leToFloat32(c.Payload)
		highPass(samples, highPassCoefficient)
		edgeFade(samples, edgeFadeSamples)
		hardClip(samples, clipLimit)

	case EncodingInt16LE, "":
		if len(c.Payload)%2 != 0 {
			return nil, newDecodeError(fmt.Sprintf("truncated payload: %d bytes is not a multiple of 2", len(c.Payload)), nil)
		}
		samples = Int16ToFloat32(LEToInt16(c.Payload))

	default:
		return nil, newDecodeError(fmt.Sprintf("unsupported encoding %q for pcm format", c.Encoding), nil)
	}

	return &Buffer{Samples: samples, SampleRate: rate, Channels: channels}, nil
}

func leToFloat32(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// highPass runs a first-order high-pass filter in place:
// y[n] = x[n] - x[n-1] + coef*y[n-1].
func highPass(samples []float32, coef float32) {
	var prevIn, prevOut float32
	for i, s := range samples {
		out := s - prevIn + coef*prevOut
		prevIn = s
		prevOut = out
		samples[i] = out
	}
}

// edgeFade applies a linear ramp over the first and last n samples.
func edgeFade(samples []float32, n int) {
	if len(samples) < 2*n {
		n = len(samples) / 2
	}
	if n == 0 {
		return
	}
	for i := 0; i < n; i++ {
		gain := float32(i) / float32(n)
		samples[i] *= gain
		samples[len(samples)-1-i] *= gain
	}
}

func hardClip(samples []float32, limit float32) {
	for i, s := range samples {
		if s > limit {
			samples[i] = limit
		} else if s < -limit {
			samples[i] = -limit
		}
	}
}
