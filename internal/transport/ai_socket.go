package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/config"
	"github.com/voxhire/go-interview-client/pkg/audio"
)

// ErrNotConnected is returned for sends attempted while the socket is not
// in the connected state.
var ErrNotConnected = errors.New("socket is not connected")

const aiChannelName = "ai_socket"

// AISocket is the bidirectional channel to the conversational AI service.
// Outbound traffic is raw PCM16LE binary frames plus JSON control
// messages; inbound traffic is JSON-tagged audio and transcript messages,
// fanned out on typed channels that the pipeline subscribes to.
//
// A disconnect of this channel is terminal for the session: Connect is
// never re-run once the read loop has observed a failure.
type AISocket struct {
	logger *zap.Logger
	cfg    *config.Config

	mu    sync.RWMutex
	conn  *websocket.Conn
	state ConnState

	// gorilla permits one concurrent writer
	writeMu sync.Mutex

	chunks      chan audio.Chunk
	transcripts chan TranscriptMessage
	closed      chan error

	done     chan struct{}
	doneOnce sync.Once
}

// NewAISocket creates an unconnected AI socket client.
func NewAISocket(logger *zap.Logger, cfg *config.Config) *AISocket {
	return &AISocket{
		logger:      logger,
		cfg:         cfg,
		state:       StateDisconnected,
		chunks:      make(chan audio.Chunk, 256),
		transcripts: make(chan TranscriptMessage, 64),
		closed:      make(chan error, 1),
		done:        make(chan struct{}),
	}
}

// Chunks delivers inbound audio in arrival order.
func (s *AISocket) Chunks() <-chan audio.Chunk { return s.chunks }

// Transcripts delivers inbound transcript messages.
func (s *AISocket) Transcripts() <-chan TranscriptMessage { return s.transcripts }

// Closed receives the terminal error once the read loop exits.
func (s *AISocket) Closed() <-chan error { return s.closed }

// State reports the current channel state.
func (s *AISocket) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *AISocket) setState(state ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == state {
		return
	}
	s.state = state
}

// Connect dials the AI service with bounded exponential backoff and
// starts the read loop. The URL comes from the session bootstrap
// collaborator and is treated as opaque.
func (s *AISocket) Connect(ctx context.Context, url string) error {
	s.mu.Lock()
	if s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, err := dialWithBackoff(ctx, s.logger, aiChannelName, url,
		s.cfg.Monitor.ConnectAttempts,
		s.cfg.Monitor.ConnectBackoffBase(),
		s.cfg.Session.ConnectTimeout())
	if err != nil {
		s.setState(StateError)
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()

	s.logger.Info("AI socket connected", zap.String("url", url))

	go s.readLoop(conn)

	return nil
}

func (s *AISocket) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.setState(StateError)
			select {
			case s.closed <- err:
			default:
			}
			return
		}

		if msgType != websocket.TextMessage {
			s.logger.Debug("Ignoring non-text frame from AI socket",
				zap.Int("message_type", msgType),
				zap.Int("size", len(data)))
			continue
		}

		parsed, err := ParseServerMessage(data, time.Now())
		if err != nil {
			// Message-local failure: drop and keep reading.
			s.logger.Warn("Dropping unparseable AI message", zap.Error(err))
			continue
		}

		switch msg := parsed.(type) {
		case audio.Chunk:
			select {
			case s.chunks <- msg:
			case <-s.done:
				return
			}
		case TranscriptMessage:
			select {
			case s.transcripts <- msg:
			default:
				// Transcripts are advisory; never stall the audio path.
				s.logger.Debug("Transcript channel full, dropping message")
			}
		case InterviewEndMessage:
			s.logger.Info("AI service ended the interview", zap.String("reason", msg.Reason))
			select {
			case s.closed <- nil:
			default:
			}
		}
	}
}

// SendPCM transmits one batch of PCM16LE samples as a single binary
// frame. A failed send discards the payload.
func (s *AISocket) SendPCM(pcm []byte) error {
	s.mu.RLock()
	conn, state := s.conn, s.state
	s.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return &SendError{Channel: aiChannelName, Err: ErrNotConnected}
	}

	s.writeMu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, pcm)
	s.writeMu.Unlock()

	if err != nil {
		s.setState(StateError)
		return &SendError{Channel: aiChannelName, Err: err}
	}
	return nil
}

// SendStartInterview emits the structured interview-start control message.
func (s *AISocket) SendStartInterview(at time.Time) error {
	s.mu.RLock()
	conn, state := s.conn, s.state
	s.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return &SendError{Channel: aiChannelName, Err: ErrNotConnected}
	}

	msg := StartInterviewMessage{
		Type:      MessageTypeStartInterview,
		Timestamp: at.UnixMilli(),
		UserReady: true,
	}

	s.writeMu.Lock()
	err := conn.WriteJSON(msg)
	s.writeMu.Unlock()

	if err != nil {
		s.setState(StateError)
		return &SendError{Channel: aiChannelName, Err: err}
	}

	s.logger.Info("Interview start marker sent", zap.Int64("timestamp", msg.Timestamp))
	return nil
}

// Close tears the socket down. Safe to call more than once.
func (s *AISocket) Close() error {
	s.doneOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	if s.state != StateError {
		s.state = StateDisconnected
	}
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
