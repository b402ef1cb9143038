package monitor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/config"
	"github.com/voxhire/go-interview-client/internal/monitor"
	"github.com/voxhire/go-interview-client/internal/transport"
)

type stubProbes struct {
	mu        sync.Mutex
	ai        transport.ConnState
	recording transport.ConnState
	media     transport.ConnState
	activity  transport.ConnState
}

func (s *stubProbes) set(ch monitor.Channel, state transport.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ch {
	case monitor.ChannelAISocket:
		s.ai = state
	case monitor.ChannelRecordingSocket:
		s.recording = state
	case monitor.ChannelMediaStream:
		s.media = state
	case monitor.ChannelRecordingActivity:
		s.activity = state
	}
}

func (s *stubProbes) probes() monitor.Probes {
	get := func(f func() transport.ConnState) func() transport.ConnState {
		return func() transport.ConnState {
			s.mu.Lock()
			defer s.mu.Unlock()
			return f()
		}
	}
	return monitor.Probes{
		AISocket:          get(func() transport.ConnState { return s.ai }),
		RecordingSocket:   get(func() transport.ConnState { return s.recording }),
		MediaStream:       get(func() transport.ConnState { return s.media }),
		RecordingActivity: get(func() transport.ConnState { return s.activity }),
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []monitor.Transition
}

func (n *recordingNotifier) Notify(t monitor.Transition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, t)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func newMonitor(t *testing.T, probes *stubProbes, notifier monitor.Notifier) *monitor.HealthMonitor {
	t.Helper()
	m, err := monitor.NewHealthMonitor(zap.NewNop(), config.Default(), probes.probes(), notifier)
	require.NoError(t, err)
	return m
}

func TestChannelIndependence(t *testing.T) {
	probes := &stubProbes{
		ai:        transport.StateConnected,
		recording: transport.StateConnected,
		media:     transport.StateConnected,
		activity:  transport.StateConnected,
	}
	m := newMonitor(t, probes, nil)
	m.Poll()

	// Recording failure leaves the AI channel untouched.
	probes.set(monitor.ChannelRecordingSocket, transport.StateError)
	m.Poll()

	assert.Equal(t, transport.StateError, m.StateOf(monitor.ChannelRecordingSocket))
	assert.Equal(t, transport.StateConnected, m.StateOf(monitor.ChannelAISocket))
}

func TestTransitionsAreLoggedAndPublished(t *testing.T) {
	probes := &stubProbes{}
	m := newMonitor(t, probes, nil)
	m.Poll() // everything disconnected: no transitions from initial state
	assert.Empty(t, m.TransitionLog())

	probes.set(monitor.ChannelAISocket, transport.StateConnecting)
	m.Poll()
	probes.set(monitor.ChannelAISocket, transport.StateConnected)
	m.Poll()

	log := m.TransitionLog()
	require.Len(t, log, 2)
	assert.Equal(t, transport.StateDisconnected, log[0].From)
	assert.Equal(t, transport.StateConnecting, log[0].To)
	assert.Equal(t, transport.StateConnecting, log[1].From)
	assert.Equal(t, transport.StateConnected, log[1].To)
	assert.False(t, log[0].At.IsZero())

	// Both transitions were published.
	for n := 0; n < 2; n++ {
		select {
		case tr := <-m.Events():
			assert.Equal(t, monitor.ChannelAISocket, tr.Channel)
		default:
			t.Fatal("expected published transition")
		}
	}
}

func TestIdempotentPolling(t *testing.T) {
	probes := &stubProbes{ai: transport.StateConnected}
	m := newMonitor(t, probes, nil)

	for n := 0; n < 5; n++ {
		m.Poll()
	}
	assert.Len(t, m.TransitionLog(), 1, "repeated identical polls are no-ops")
}

func TestErrorNotificationsAreDeduplicated(t *testing.T) {
	probes := &stubProbes{ai: transport.StateConnected}
	notifier := &recordingNotifier{}
	m := newMonitor(t, probes, notifier)
	m.Poll()

	// Flap: error, recover, error again inside the dedup window.
	probes.set(monitor.ChannelAISocket, transport.StateError)
	m.Poll()
	probes.set(monitor.ChannelAISocket, transport.StateConnected)
	m.Poll()
	probes.set(monitor.ChannelAISocket, transport.StateError)
	m.Poll()

	assert.Equal(t, 1, notifier.count(), "repeat error notification suppressed")
	assert.Len(t, m.TransitionLog(), 4, "every transition still logged")
}

func TestEventOverflowKeepsFreshestTransitions(t *testing.T) {
	probes := &stubProbes{}
	m := newMonitor(t, probes, nil)

	// Nothing drains the channel while the AI channel flaps far past the
	// buffer size.
	states := []transport.ConnState{transport.StateConnecting, transport.StateConnected}
	for i := 0; i < 150; i++ {
		probes.set(monitor.ChannelAISocket, states[i%2])
		m.Poll()
	}

	var last monitor.Transition
	var drained int
	for {
		select {
		case tr := <-m.Events():
			last = tr
			drained++
			continue
		default:
		}
		break
	}

	require.NotZero(t, drained)
	log := m.TransitionLog()
	assert.Len(t, log, 150, "history is complete even when the channel overflowed")
	assert.Equal(t, log[len(log)-1], last, "buffer holds the freshest transitions, not the oldest")
}

func TestRetryRecordingRunsActionAndRepolls(t *testing.T) {
	probes := &stubProbes{recording: transport.StateError}
	m := newMonitor(t, probes, nil)
	m.Poll()
	require.Equal(t, transport.StateError, m.StateOf(monitor.ChannelRecordingSocket))

	var called bool
	m.SetRetryActions(monitor.RetryActions{
		Recording: func(ctx context.Context) error {
			called = true
			probes.set(monitor.ChannelRecordingSocket, transport.StateConnected)
			return nil
		},
	})

	require.NoError(t, m.RetryRecording(context.Background()))
	assert.True(t, called)
	assert.Equal(t, transport.StateConnected, m.StateOf(monitor.ChannelRecordingSocket))
}

func TestRetryWithoutActionFails(t *testing.T) {
	m := newMonitor(t, &stubProbes{}, nil)
	assert.Error(t, m.RetryRecording(context.Background()))
	assert.Error(t, m.RetryAI(context.Background()))
}

func TestRunPollsOnInterval(t *testing.T) {
	cfg := config.Default()
	cfg.Monitor.PollIntervalMs = 10

	probes := &stubProbes{}
	m, err := monitor.NewHealthMonitor(zap.NewNop(), cfg, probes.probes(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	probes.set(monitor.ChannelMediaStream, transport.StateConnected)
	require.Eventually(t, func() bool {
		return m.StateOf(monitor.ChannelMediaStream) == transport.StateConnected
	}, 2*time.Second, 5*time.Millisecond)
}
