package mixbus

import (
	"encoding/binary"
	"time"
)

// segmentMagic identifies the composite segment framing on the recording
// socket.
var segmentMagic = [4]byte{'I', 'V', 'R', '1'}

// Segment is one chunk of encoded composite media accumulated between
// recorder flushes. It is owned by the recorder until sent, then cleared.
type Segment struct {
	Seq       uint64
	CreatedAt time.Time
	Audio     []byte   // length-prefixed opus frames
	Video     [][]byte // encoded video frames in arrival order
}

// MarshalBinary frames the segment for the recording socket:
// magic, sequence, creation time (unix ms), audio block, video frames.
// All integers are big-endian.
func (s *Segment) MarshalBinary() ([]byte, error) {
	size := 4 + 8 + 8 + 4 + len(s.Audio) + 4
	for _, f := range s.Video {
		size += 4 + len(f)
	}

	out := make([]byte, 0, size)
	out = append(out, segmentMagic[:]...)
	out = binary.BigEndian.AppendUint64(out, s.Seq)
	out = binary.BigEndian.AppendUint64(out, uint64(s.CreatedAt.UnixMilli()))
	out = binary.BigEndian.AppendUint32(out, uint32(len(s.Audio)))
	out = append(out, s.Audio...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(s.Video)))
	for _, f := range s.Video {
		out = binary.BigEndian.AppendUint32(out, uint32(len(f)))
		out = append(out, f...)
	}
	return out, nil
}
