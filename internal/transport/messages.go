package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voxhire/go-interview-client/pkg/audio"
)

// Message types on the AI socket.
const (
	MessageTypeAudio          = "audio"
	MessageTypeTranscript     = "transcript"
	MessageTypeInterviewEnd   = "interview_end"
	MessageTypeStartInterview = "start_interview"
)

// AudioMessage is an inbound JSON-tagged audio chunk.
type AudioMessage struct {
	Type       string `json:"type"`
	Format     string `json:"format"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Data       string `json:"data"` // base64 payload
}

// TranscriptMessage carries interim or final transcript text.
type TranscriptMessage struct {
	Type  string `json:"type"`
	Role  string `json:"role"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// InterviewEndMessage signals that the remote side considers the
// interview over.
type InterviewEndMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// StartInterviewMessage is the outbound control message sent when the
// session becomes active.
type StartInterviewMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	UserReady bool   `json:"user_ready"`
}

type envelope struct {
	Type string `json:"type"`
}

// ParseServerMessage decodes one inbound text frame into its typed form.
// Audio messages are returned as audio.Chunk with the payload already
// base64-decoded and the receive time stamped.
func ParseServerMessage(data []byte, now time.Time) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed server message: %w", err)
	}

	switch env.Type {
	case MessageTypeAudio:
		var msg AudioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("malformed audio message: %w", err)
		}
		payload, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("audio payload is not valid base64: %w", err)
		}
		return audio.Chunk{
			Format:     audio.Format(msg.Format),
			Encoding:   audio.Encoding(msg.Encoding),
			SampleRate: msg.SampleRate,
			Channels:   msg.Channels,
			Payload:    payload,
			ReceivedAt: now,
		}, nil

	case MessageTypeTranscript:
		var msg TranscriptMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("malformed transcript message: %w", err)
		}
		return msg, nil

	case MessageTypeInterviewEnd:
		var msg InterviewEndMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("malformed interview_end message: %w", err)
		}
		return msg, nil

	default:
		return nil, fmt.Errorf("unknown server message type %q", env.Type)
	}
}
