// Package monitor supervises the session's channels: the AI socket, the
// recording socket, the raw media devices and the recorder's activity.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/config"
	"github.com/voxhire/go-interview-client/internal/transport"
)

// Channel names a supervised connection.
type Channel string

const (
	ChannelAISocket          Channel = "ai_socket"
	ChannelRecordingSocket   Channel = "recording_socket"
	ChannelMediaStream       Channel = "media_stream"
	ChannelRecordingActivity Channel = "recording_activity"
)

// Transition is one timestamped channel state change, appended to the
// diagnostic log and published to subscribers.
type Transition struct {
	Channel Channel
	From    transport.ConnState
	To      transport.ConnState
	At      time.Time
}

// Notifier surfaces degraded channels to the user. Implemented by the
// presentation layer.
type Notifier interface {
	Notify(t Transition)
}

// NopNotifier ignores notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(Transition) {}

// Probes supply the current state of each channel. A nil probe reports
// disconnected.
type Probes struct {
	AISocket          func() transport.ConnState
	RecordingSocket   func() transport.ConnState
	MediaStream       func() transport.ConnState
	RecordingActivity func() transport.ConnState
}

// RetryActions are the manual per-channel reconnect sequences, wired by
// the lifecycle controller. Only the recording action re-attaches
// dependent consumers mid-session; the AI channel is terminal once the
// interview is active.
type RetryActions struct {
	AI        func(ctx context.Context) error
	Recording func(ctx context.Context) error
}

// notificationCacheSize bounds the dedup cache. Four channels times four
// states is the whole key space.
const notificationCacheSize = 16

// HealthMonitor polls channel states at a fixed interval, logs every
// transition, publishes transitions on an event channel, and raises user
// notifications for error transitions (deduplicated within a window).
type HealthMonitor struct {
	logger   *zap.Logger
	cfg      *config.Config
	probes   Probes
	notifier Notifier

	mu     sync.Mutex
	states map[Channel]transport.ConnState
	log    []Transition
	retry  RetryActions

	events chan Transition
	dedup  *lru.Cache[string, time.Time]
}

// NewHealthMonitor creates a monitor over the given probes.
func NewHealthMonitor(logger *zap.Logger, cfg *config.Config, probes Probes, notifier Notifier) (*HealthMonitor, error) {
	if notifier == nil {
		notifier = NopNotifier{}
	}

	dedup, err := lru.New[string, time.Time](notificationCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification cache: %w", err)
	}

	return &HealthMonitor{
		logger:   logger,
		cfg:      cfg,
		probes:   probes,
		notifier: notifier,
		states: map[Channel]transport.ConnState{
			ChannelAISocket:          transport.StateDisconnected,
			ChannelRecordingSocket:   transport.StateDisconnected,
			ChannelMediaStream:       transport.StateDisconnected,
			ChannelRecordingActivity: transport.StateDisconnected,
		},
		events: make(chan Transition, 64),
		dedup:  dedup,
	}, nil
}

// SetRetryActions wires the manual reconnect sequences.
func (m *HealthMonitor) SetRetryActions(actions RetryActions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retry = actions
}

// Events delivers state transitions to an interested subscriber, such as
// the embedding UI. Delivery is best-effort: with no subscriber the
// oldest buffered transition is evicted for each new one, and
// TransitionLog remains the authoritative history.
func (m *HealthMonitor) Events() <-chan Transition { return m.events }

// Run polls until ctx is cancelled.
func (m *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Monitor.PollInterval())
	defer ticker.Stop()

	m.Poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Poll()
		}
	}
}

// Poll samples every probe once and applies the resulting transitions.
func (m *HealthMonitor) Poll() {
	m.apply(ChannelAISocket, probeState(m.probes.AISocket))
	m.apply(ChannelRecordingSocket, probeState(m.probes.RecordingSocket))
	m.apply(ChannelMediaStream, probeState(m.probes.MediaStream))
	m.apply(ChannelRecordingActivity, probeState(m.probes.RecordingActivity))
}

func probeState(probe func() transport.ConnState) transport.ConnState {
	if probe == nil {
		return transport.StateDisconnected
	}
	return probe()
}

func (m *HealthMonitor) apply(channel Channel, next transport.ConnState) {
	m.mu.Lock()
	current := m.states[channel]
	if current == next {
		m.mu.Unlock()
		return
	}

	t := Transition{Channel: channel, From: current, To: next, At: time.Now()}
	m.states[channel] = next
	m.log = append(m.log, t)
	m.mu.Unlock()

	m.logger.Info("Channel state changed",
		zap.String("channel", string(channel)),
		zap.String("from", current.String()),
		zap.String("to", next.String()))

	select {
	case m.events <- t:
	default:
		// No subscriber is keeping up: evict the oldest buffered
		// transition so the channel always holds the freshest ones.
		select {
		case <-m.events:
		default:
		}
		select {
		case m.events <- t:
		default:
		}
	}

	if next == transport.StateError || next == transport.StateDisconnected {
		m.notifyDegraded(t)
	}
}

func (m *HealthMonitor) notifyDegraded(t Transition) {
	key := string(t.Channel) + "|" + t.To.String()
	if last, ok := m.dedup.Get(key); ok && t.At.Sub(last) < m.cfg.Monitor.NotificationDedup() {
		return
	}
	m.dedup.Add(key, t.At)
	m.notifier.Notify(t)
}

// StateOf reports the last polled state of a channel.
func (m *HealthMonitor) StateOf(channel Channel) transport.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[channel]
}

// TransitionLog returns a copy of the full transition history.
func (m *HealthMonitor) TransitionLog() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.log))
	copy(out, m.log)
	return out
}

// RetryRecording re-runs the recording channel's connect sequence and
// re-attaches its consumers. The recording channel is the only one that
// is retryable mid-session.
func (m *HealthMonitor) RetryRecording(ctx context.Context) error {
	m.mu.Lock()
	action := m.retry.Recording
	m.mu.Unlock()

	if action == nil {
		return errors.New("recording retry action not configured")
	}

	m.logger.Info("Manual retry of recording channel requested")
	err := action(ctx)
	m.Poll()
	return err
}

// RetryAI re-runs the AI channel's connect sequence. Per the socket
// protocol this is only meaningful before the interview is active; an
// established AI connection that drops is terminal.
func (m *HealthMonitor) RetryAI(ctx context.Context) error {
	m.mu.Lock()
	action := m.retry.AI
	m.mu.Unlock()

	if action == nil {
		return errors.New("ai retry action not configured")
	}

	m.logger.Info("Manual retry of AI channel requested")
	err := action(ctx)
	m.Poll()
	return err
}
