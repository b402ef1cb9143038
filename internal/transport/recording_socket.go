package transport

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/config"
)

const recordingChannelName = "recording_socket"

// RecordingSocket is the independent uplink for composite media
// segments. Unlike the AI socket it is retryable: Connect may be called
// again after a failure without creating a new client, because losing
// the recording connection must not abort an otherwise healthy
// interview.
type RecordingSocket struct {
	logger *zap.Logger
	cfg    *config.Config

	mu      sync.RWMutex
	conn    *websocket.Conn
	state   ConnState
	writeMu sync.Mutex
}

// NewRecordingSocket creates an unconnected recording socket client.
func NewRecordingSocket(logger *zap.Logger, cfg *config.Config) *RecordingSocket {
	return &RecordingSocket{
		logger: logger,
		cfg:    cfg,
		state:  StateDisconnected,
	}
}

// State reports the current channel state.
func (s *RecordingSocket) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Connect dials the recording service with bounded exponential backoff.
// Any previous connection is discarded first, which makes this the
// manual retry entry point as well.
func (s *RecordingSocket) Connect(ctx context.Context, url string) error {
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, err := dialWithBackoff(ctx, s.logger, recordingChannelName, url,
		s.cfg.Monitor.ConnectAttempts,
		s.cfg.Monitor.ConnectBackoffBase(),
		s.cfg.Session.ConnectTimeout())
	if err != nil {
		s.mu.Lock()
		s.state = StateError
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()

	s.logger.Info("Recording socket connected", zap.String("url", url))
	return nil
}

// SendSegment transmits one encoded media segment as a binary frame.
// Segments are sent strictly in the order of calls; a failed send
// discards the segment and flips the channel into the error state for
// the health monitor to pick up.
func (s *RecordingSocket) SendSegment(segment []byte) error {
	s.mu.RLock()
	conn, state := s.conn, s.state
	s.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return &SendError{Channel: recordingChannelName, Err: ErrNotConnected}
	}

	s.writeMu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, segment)
	s.writeMu.Unlock()

	if err != nil {
		s.mu.Lock()
		s.state = StateError
		s.mu.Unlock()
		return &SendError{Channel: recordingChannelName, Err: err}
	}
	return nil
}

// Close tears the connection down. Safe to call more than once.
func (s *RecordingSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.conn
	s.conn = nil
	if s.state != StateError {
		s.state = StateDisconnected
	}

	if conn != nil {
		return conn.Close()
	}
	return nil
}
