// Package capture converts microphone float32 blocks into PCM16LE and
// batches them onto the AI socket uplink.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/config"
	"github.com/voxhire/go-interview-client/internal/transport"
	"github.com/voxhire/go-interview-client/pkg/audio"
)

// PCMSender is the uplink half of the AI socket.
type PCMSender interface {
	SendPCM(pcm []byte) error
	State() transport.ConnState
}

// Encoder accumulates converted capture blocks and flushes them as one
// binary message per cadence tick. Frames arriving while the session is
// not active, or while the uplink is down, are dropped and any pending
// batch is discarded with them.
type Encoder struct {
	logger *zap.Logger
	cfg    *config.Config
	sender PCMSender

	mu           sync.Mutex
	gate         func() bool
	pending      []byte
	lastActivity time.Time
}

// NewEncoder creates an encoder feeding the given uplink.
func NewEncoder(logger *zap.Logger, cfg *config.Config, sender PCMSender) *Encoder {
	return &Encoder{
		logger: logger,
		cfg:    cfg,
		sender: sender,
	}
}

// SetSessionGate installs the predicate that reports whether the session
// is currently active. Without a gate all frames are dropped.
func (e *Encoder) SetSessionGate(gate func() bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate = gate
}

// OnAudioFrame converts one capture block and appends it to the pending
// batch. Oversized batches flush immediately instead of waiting for the
// cadence tick.
func (e *Encoder) OnAudioFrame(samples []float32) {
	e.mu.Lock()

	if (e.gate == nil || !e.gate()) || e.sender.State() != transport.StateConnected {
		if len(e.pending) > 0 {
			e.logger.Debug("Uplink gated, discarding pending capture batch",
				zap.Int("bytes", len(e.pending)))
			e.pending = nil
		}
		e.mu.Unlock()
		return
	}

	e.pending = append(e.pending, audio.Int16ToLE(audio.Float32ToInt16(samples))...)
	oversized := len(e.pending) >= e.cfg.Audio.MaxPendingBytes
	e.mu.Unlock()

	if oversized {
		e.Flush()
	}
}

// Flush transmits the pending batch as a single binary message. The
// batch is cleared whether or not the send succeeds; a dead uplink gets
// silence, not a replay.
func (e *Encoder) Flush() {
	e.mu.Lock()
	batch := e.pending
	e.pending = nil
	e.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	if err := e.sender.SendPCM(batch); err != nil {
		var sendErr *transport.SendError
		if errors.As(err, &sendErr) {
			e.logger.Warn("Capture batch dropped",
				zap.String("channel", sendErr.Channel),
				zap.Int("bytes", len(batch)),
				zap.Error(err))
			return
		}
		e.logger.Warn("Capture batch dropped", zap.Int("bytes", len(batch)), zap.Error(err))
		return
	}

	e.mu.Lock()
	e.lastActivity = time.Now()
	e.mu.Unlock()
}

// LastActivity reports when the uplink last accepted a batch.
func (e *Encoder) LastActivity() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActivity
}

// PendingBytes reports the size of the unflushed batch.
func (e *Encoder) PendingBytes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Run flushes on the configured cadence until ctx is cancelled. The
// final partial batch is flushed on the way out.
func (e *Encoder) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Audio.FlushInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Flush()
			return
		case <-ticker.C:
			e.Flush()
		}
	}
}
