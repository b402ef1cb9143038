package audio

import "encoding/binary"

// wavInfo is the result of parsing a RIFF/WAVE payload.
type wavInfo struct {
	sampleRate int
	channels   int
	samples    []float32
}

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// parseWAV decodes a self-describing RIFF/WAVE container carrying 16-bit
// integer or 32-bit float PCM. The fmt chunk is authoritative for sample
// rate and channel count.
func parseWAV(data []byte) (*wavInfo, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, newDecodeError("corrupt wav header: missing RIFF/WAVE magic", nil)
	}

	var (
		haveFmt       bool
		audioFormat   int
		channels      int
		sampleRate    int
		bitsPerSample int
	)

	// Walk the chunk list. Chunks are word-aligned per the RIFF spec.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, newDecodeError("corrupt wav header: chunk overruns payload", nil)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, newDecodeError("corrupt wav header: short fmt chunk", nil)
			}
			audioFormat = int(binary.LittleEndian.Uint16(data[body : body+2]))
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, newDecodeError("corrupt wav header: data chunk before fmt", nil)
			}
			samples, err := wavSamples(data[body:body+size], audioFormat, bitsPerSample)
			if err != nil {
				return nil, err
			}
			if channels < 1 || sampleRate < 1 {
				return nil, newDecodeError("corrupt wav header: invalid fmt values", nil)
			}
			return &wavInfo{sampleRate: sampleRate, channels: channels, samples: samples}, nil
		}

		off = body + size
		if size%2 == 1 {
			off++ // pad byte
		}
	}

	return nil, newDecodeError("corrupt wav header: no data chunk", nil)
}

func wavSamples(body []byte, audioFormat, bitsPerSample int) ([]float32, error) {
	switch {
	case audioFormat == wavFormatPCM && bitsPerSample == 16:
		if len(body)%2 != 0 {
			return nil, newDecodeError("truncated wav payload: odd 16-bit data length", nil)
		}
		return Int16ToFloat32(LEToInt16(body)), nil

	case audioFormat == wavFormatFloat && bitsPerSample == 32:
		if len(body)%4 != 0 {
			return nil, newDecodeError("truncated wav payload: partial float sample", nil)
		}
		return leToFloat32(body), nil

	default:
		return nil, newDecodeError("unsupported wav sample format", nil)
	}
}
