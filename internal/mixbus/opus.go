package mixbus

import (
	"encoding/binary"
	"fmt"

	"layeh.com/gopus"

	"github.com/voxhire/go-interview-client/internal/config"
)

// AudioEncoder compresses a drained composite mix into a segment's audio
// block.
type AudioEncoder interface {
	Encode(pcm []int16) ([]byte, error)
}

const (
	// opusFrameMs is the codec frame length. 20ms is the opus sweet spot
	// for speech.
	opusFrameMs = 20

	// maxOpusFrameBytes is a conservative output bound per encoded frame.
	maxOpusFrameBytes = 4000
)

// OpusEncoder encodes mono composite audio at the configured recording
// bitrate (≈28 kb/s by default). Output is a sequence of opus frames,
// each prefixed with a 16-bit big-endian length.
type OpusEncoder struct {
	enc       *gopus.Encoder
	frameSize int
}

// NewOpusEncoder creates the segment audio encoder.
func NewOpusEncoder(cfg *config.Config) (*OpusEncoder, error) {
	rate := cfg.Audio.SampleRate
	enc, err := gopus.NewEncoder(rate, 1, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	enc.SetBitrate(cfg.Recording.AudioBitrate)

	return &OpusEncoder{
		enc:       enc,
		frameSize: rate * opusFrameMs / 1000,
	}, nil
}

// Encode splits pcm into fixed 20ms frames (zero-padding the tail) and
// encodes each one.
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, nil
	}

	var out []byte
	for off := 0; off < len(pcm); off += e.frameSize {
		end := off + e.frameSize
		frame := pcm[off:min(end, len(pcm))]
		if len(frame) < e.frameSize {
			padded := make([]int16, e.frameSize)
			copy(padded, frame)
			frame = padded
		}

		data, err := e.enc.Encode(frame, e.frameSize, maxOpusFrameBytes)
		if err != nil {
			return nil, fmt.Errorf("opus encode failed: %w", err)
		}
		out = binary.BigEndian.AppendUint16(out, uint16(len(data)))
		out = append(out, data...)
	}
	return out, nil
}
