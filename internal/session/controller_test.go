package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/capture"
	"github.com/voxhire/go-interview-client/internal/config"
	"github.com/voxhire/go-interview-client/internal/device"
	"github.com/voxhire/go-interview-client/internal/events"
	"github.com/voxhire/go-interview-client/internal/mixbus"
	"github.com/voxhire/go-interview-client/internal/monitor"
	"github.com/voxhire/go-interview-client/internal/playback"
	"github.com/voxhire/go-interview-client/internal/session"
	"github.com/voxhire/go-interview-client/internal/transport"
	"github.com/voxhire/go-interview-client/pkg/audio"
)

type fakeAI struct {
	mu          sync.Mutex
	state       transport.ConnState
	connectErr  error
	startSent   bool
	pcm         [][]byte
	chunks      chan audio.Chunk
	transcripts chan transport.TranscriptMessage
	closed      chan error
}

func newFakeAI() *fakeAI {
	return &fakeAI{
		chunks:      make(chan audio.Chunk, 16),
		transcripts: make(chan transport.TranscriptMessage, 16),
		closed:      make(chan error, 1),
	}
}

func (f *fakeAI) Connect(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		f.state = transport.StateError
		return f.connectErr
	}
	f.state = transport.StateConnected
	return nil
}

func (f *fakeAI) Chunks() <-chan audio.Chunk { return f.chunks }

func (f *fakeAI) Transcripts() <-chan transport.TranscriptMessage { return f.transcripts }

func (f *fakeAI) Closed() <-chan error { return f.closed }

func (f *fakeAI) SendStartInterview(time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startSent = true
	return nil
}

func (f *fakeAI) SendPCM(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != transport.StateConnected {
		return &transport.SendError{Channel: "ai_socket", Err: transport.ErrNotConnected}
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	f.pcm = append(f.pcm, buf)
	return nil
}

func (f *fakeAI) State() transport.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeAI) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = transport.StateDisconnected
	return nil
}

func (f *fakeAI) startMarkerSent() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startSent
}

func (f *fakeAI) pcmCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pcm)
}

type fakeRecording struct {
	mu    sync.Mutex
	state transport.ConnState
}

func (f *fakeRecording) Connect(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = transport.StateConnected
	return nil
}

func (f *fakeRecording) State() transport.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeRecording) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = transport.StateDisconnected
	return nil
}

type fakeBootstrapper struct{}

func (fakeBootstrapper) Bootstrap(context.Context) (session.BootstrapInfo, error) {
	return session.BootstrapInfo{
		SessionID:          "sess-test",
		AISocketURL:        "ws://ai.test/socket",
		RecordingSocketURL: "ws://rec.test/socket",
	}, nil
}

type fakeMic struct {
	frames   chan []float32
	stopOnce sync.Once
	clone    *fakeMic
}

func newFakeMic() *fakeMic {
	return &fakeMic{frames: make(chan []float32, 16)}
}

func (m *fakeMic) Frames() <-chan []float32 { return m.frames }
func (m *fakeMic) State() device.TrackState { return device.TrackLive }

func (m *fakeMic) Clone() (device.Microphone, error) {
	m.clone = newFakeMic()
	return m.clone, nil
}

func (m *fakeMic) Stop() {
	m.stopOnce.Do(func() { close(m.frames) })
}

type fakeDevices struct {
	mic *fakeMic
}

func (d *fakeDevices) Microphone() (device.Microphone, error) { return d.mic, nil }
func (d *fakeDevices) Camera() device.Camera                  { return nil }

type countingIngestor struct {
	mu      sync.Mutex
	batches []events.Batch
}

func (c *countingIngestor) SubmitBatch(_ context.Context, batch events.Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, batch)
	return nil
}

func (c *countingIngestor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

type passthroughEncoder struct{}

func (passthroughEncoder) Encode(pcm []int16) ([]byte, error) {
	return audio.Int16ToLE(pcm), nil
}

type segmentSink struct {
	mu       sync.Mutex
	segments [][]byte
}

func (s *segmentSink) SendSegment(segment []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = append(s.segments, segment)
	return nil
}

func (s *segmentSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments)
}

type harness struct {
	ctrl     *session.Controller
	ai       *fakeAI
	rec      *fakeRecording
	mic      *fakeMic
	ingestor *countingIngestor
	segments *segmentSink
	recorder *mixbus.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Session.CountdownSeconds = 1
	cfg.Audio.FlushIntervalMs = 10
	cfg.Recording.SegmentIntervalMs = 30
	cfg.Monitor.PollIntervalMs = 10
	cfg.Monitor.UplinkStalenessMs = 60

	logger := zap.NewNop()
	ai := newFakeAI()
	rec := &fakeRecording{}
	mic := newFakeMic()
	ingestor := &countingIngestor{}
	segments := &segmentSink{}

	bus := mixbus.NewBus(logger, cfg.Audio.SampleRate)
	remoteTap, err := bus.AttachTap(mixbus.TapRemote)
	require.NoError(t, err)

	scheduler := playback.NewScheduler(logger, playback.NewVirtualClock(nil), playback.NopSink{}, remoteTap)
	recorder := mixbus.NewRecorder(logger, cfg, bus, passthroughEncoder{}, segments)
	collector := events.NewCollector(logger, ingestor)

	ctrl, err := session.NewController(logger, cfg, session.Deps{
		Bootstrapper: fakeBootstrapper{},
		Devices:      &fakeDevices{mic: mic},
		AI:           ai,
		Recording:    rec,
		Scheduler:    scheduler,
		Encoder:      capture.NewEncoder(logger, cfg, ai),
		Bus:          bus,
		Recorder:     recorder,
		Collector:    collector,
	})
	require.NoError(t, err)

	return &harness{ctrl: ctrl, ai: ai, rec: rec, mic: mic, ingestor: ingestor, segments: segments, recorder: recorder}
}

func (h *harness) startToActive(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.PrepareDevices(context.Background()))

	startErr := make(chan error, 1)
	go func() { startErr <- h.ctrl.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return h.ctrl.Session().State() == session.StateActive
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, <-startErr)
}

func TestLifecycleReachesActive(t *testing.T) {
	h := newHarness(t)
	h.startToActive(t)

	assert.Equal(t, "sess-test", h.ctrl.Session().ID())
	assert.True(t, h.ai.startMarkerSent(), "start marker accompanies activation")
	assert.False(t, h.ctrl.Session().StartedAt().IsZero())

	// The lifecycle passed through every intermediate phase in order.
	var phases []session.State
	for _, tr := range h.ctrl.Session().TransitionLog() {
		phases = append(phases, tr.To)
	}
	assert.Equal(t, []session.State{
		session.StateDevicesReady,
		session.StateConnecting,
		session.StateCountdown,
		session.StateActive,
	}, phases)

	h.ctrl.Terminate(context.Background())
}

func TestCapturedAudioReachesUplink(t *testing.T) {
	h := newHarness(t)
	h.startToActive(t)
	defer h.ctrl.Terminate(context.Background())

	h.mic.frames <- make([]float32, 1024)
	require.Eventually(t, func() bool {
		return h.ai.pcmCount() > 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRemoteAudioReachesRecording(t *testing.T) {
	h := newHarness(t)
	h.startToActive(t)
	defer h.ctrl.Terminate(context.Background())

	samples := make([]int16, 2400)
	for i := range samples {
		samples[i] = 1000
	}
	h.ai.chunks <- audio.Chunk{
		Format:   audio.FormatPCM,
		Encoding: audio.EncodingInt16LE,
		Payload:  audio.Int16ToLE(samples),
	}

	require.Eventually(t, func() bool {
		return h.segments.count() > 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTerminateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.startToActive(t)

	var wg sync.WaitGroup
	for n := 0; n < 3; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ctrl.Terminate(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, session.StateEnded, h.ctrl.Session().State())
	assert.Equal(t, 1, h.ingestor.count(), "integrity batch submitted exactly once")
	assert.False(t, h.ctrl.Session().EndedAt().IsZero())
	assert.Equal(t, transport.StateDisconnected, h.ai.State())
	assert.Equal(t, transport.StateDisconnected, h.rec.State())

	// A stray late trigger is a no-op.
	h.ctrl.Terminate(context.Background())
	assert.Equal(t, 1, h.ingestor.count())
}

func TestAIDisconnectEndsSession(t *testing.T) {
	h := newHarness(t)
	h.startToActive(t)

	h.ai.closed <- errors.New("connection reset")
	require.Eventually(t, func() bool {
		return h.ctrl.Session().State() == session.StateEnded
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, h.ingestor.count())
}

func TestTerminateFromIdle(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Terminate(context.Background())
	assert.Equal(t, session.StateEnded, h.ctrl.Session().State())
	assert.Equal(t, 1, h.ingestor.count())
}

func TestStartRequiresDevices(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.ctrl.Start(context.Background()), "connect sequence needs prepared devices")
}

func TestStalledUplinkFlagsAIChannel(t *testing.T) {
	h := newHarness(t)
	h.startToActive(t)
	defer h.ctrl.Terminate(context.Background())

	// No capture batches delivered past the staleness window: the socket
	// still reports connected but the channel is flagged.
	require.Eventually(t, func() bool {
		return h.ctrl.Health().StateOf(monitor.ChannelAISocket) == transport.StateError
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, transport.StateConnected, h.ai.State())

	// A flowing uplink clears the flag.
	require.Eventually(t, func() bool {
		select {
		case h.mic.frames <- make([]float32, 256):
		default:
		}
		return h.ctrl.Health().StateOf(monitor.ChannelAISocket) == transport.StateConnected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRetryRecordingAfterTerminateIsInert(t *testing.T) {
	h := newHarness(t)
	h.startToActive(t)
	h.ctrl.Terminate(context.Background())

	require.NoError(t, h.ctrl.Health().RetryRecording(context.Background()))
	assert.Equal(t, session.StateEnded, h.ctrl.Session().State())
	assert.False(t, h.recorder.Running(), "no pipeline goroutine restarts after termination")
}
