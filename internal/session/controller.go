package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/capture"
	"github.com/voxhire/go-interview-client/internal/config"
	"github.com/voxhire/go-interview-client/internal/device"
	"github.com/voxhire/go-interview-client/internal/events"
	"github.com/voxhire/go-interview-client/internal/mixbus"
	"github.com/voxhire/go-interview-client/internal/monitor"
	"github.com/voxhire/go-interview-client/internal/playback"
	"github.com/voxhire/go-interview-client/internal/transport"
	"github.com/voxhire/go-interview-client/pkg/audio"
)

// AIStream is the conversational socket surface the controller drives.
// Satisfied by transport.AISocket.
type AIStream interface {
	Connect(ctx context.Context, url string) error
	Chunks() <-chan audio.Chunk
	Transcripts() <-chan transport.TranscriptMessage
	Closed() <-chan error
	SendStartInterview(at time.Time) error
	State() transport.ConnState
	Close() error
}

// RecordingStream is the recording socket surface the controller drives.
// Satisfied by transport.RecordingSocket.
type RecordingStream interface {
	Connect(ctx context.Context, url string) error
	State() transport.ConnState
	Close() error
}

// Deps are the controller's collaborators. Bootstrapper and Devices come
// from the embedding application; the rest is pipeline wiring.
type Deps struct {
	Bootstrapper Bootstrapper
	Devices      device.MediaDevices
	AI           AIStream
	Recording    RecordingStream
	Scheduler    *playback.Scheduler
	Encoder      *capture.Encoder
	Bus          *mixbus.Bus
	Recorder     *mixbus.Recorder
	Collector    *events.Collector
	Notifier     monitor.Notifier
}

// Controller owns one interview from device preparation through
// termination. It is single-use: a new interview needs a new controller.
type Controller struct {
	logger  *zap.Logger
	cfg     *config.Config
	deps    Deps
	session *Session
	health  *monitor.HealthMonitor

	mu          sync.Mutex
	info        BootstrapInfo
	mic         device.Microphone
	micClone    device.Microphone
	camera      device.Camera
	micLevel    float32
	activatedAt time.Time
	stopping    bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	termOnce sync.Once
}

// NewController wires a controller and its health monitor around the
// given collaborators.
func NewController(logger *zap.Logger, cfg *config.Config, deps Deps) (*Controller, error) {
	runCtx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		logger:  logger,
		cfg:     cfg,
		deps:    deps,
		session: NewSession(),
		runCtx:  runCtx,
		cancel:  cancel,
	}

	health, err := monitor.NewHealthMonitor(logger, cfg, monitor.Probes{
		AISocket:          c.aiChannelState,
		RecordingSocket:   deps.Recording.State,
		MediaStream:       c.mediaState,
		RecordingActivity: c.recordingActivity,
	}, deps.Notifier)
	if err != nil {
		cancel()
		return nil, err
	}
	health.SetRetryActions(monitor.RetryActions{
		AI:        c.retryAI,
		Recording: c.retryRecording,
	})
	c.health = health

	// Capture frames only flow while the interview is live.
	deps.Encoder.SetSessionGate(func() bool {
		return c.session.State() == StateActive
	})

	return c, nil
}

// Session exposes lifecycle position and identity.
func (c *Controller) Session() *Session { return c.session }

// Health exposes the channel monitor, including manual retries.
func (c *Controller) Health() *monitor.HealthMonitor { return c.health }

// Transcripts passes the AI transcript stream through to the caller.
func (c *Controller) Transcripts() <-chan transport.TranscriptMessage {
	return c.deps.AI.Transcripts()
}

// MicLevel reports the RMS of the most recent capture block, for level
// metering in the UI.
func (c *Controller) MicLevel() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.micLevel
}

// RecordEvent adds an environment signal, e.g. a window focus change, to
// the integrity batch.
func (c *Controller) RecordEvent(t events.Type, detail string) {
	c.deps.Collector.Record(t, detail)
}

// PrepareDevices acquires the microphone and, if available, the camera.
// This is the user-visible permission step and must succeed before the
// connect sequence starts.
func (c *Controller) PrepareDevices(ctx context.Context) error {
	mic, err := c.deps.Devices.Microphone()
	if err != nil {
		return fmt.Errorf("failed to acquire microphone: %w", err)
	}
	camera := c.deps.Devices.Camera()

	if err := c.session.transitionTo(StateDevicesReady); err != nil {
		mic.Stop()
		if camera != nil {
			camera.Stop()
		}
		return err
	}

	c.mu.Lock()
	c.mic = mic
	c.camera = camera
	c.mu.Unlock()

	c.logger.Info("Devices ready", zap.Bool("camera", camera != nil))
	return nil
}

// Start runs the connect sequence: bootstrap, dial both sockets, then
// countdown into the active interview. It blocks until the interview is
// active or the sequence fails. An AI connect failure leaves the session
// in connecting, where a manual retry can resume it; a recording connect
// failure is reported but never blocks the interview.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.session.transitionTo(StateConnecting); err != nil {
		return err
	}

	info, err := c.deps.Bootstrapper.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("session bootstrap failed: %w", err)
	}
	if info.SessionID == "" {
		info.SessionID = uuid.NewString()
	}

	c.mu.Lock()
	c.info = info
	c.mu.Unlock()
	c.session.BindID(info.SessionID)
	c.deps.Collector.BindSession(info.SessionID)
	c.logger.Info("Session bootstrapped", zap.String("session_id", info.SessionID))

	if err := c.deps.AI.Connect(ctx, info.AISocketURL); err != nil {
		c.health.Poll()
		return fmt.Errorf("ai channel connect failed: %w", err)
	}

	if err := c.deps.Recording.Connect(ctx, info.RecordingSocketURL); err != nil {
		// The interview proceeds without its recording; the monitor
		// surfaces the degraded channel and offers the retry.
		c.logger.Warn("Recording channel connect failed, continuing without recording", zap.Error(err))
		c.health.Poll()
	}

	return c.beginCountdown()
}

// beginCountdown runs the fixed preparation delay and activates. The
// countdown is not cancellable; a termination issued during it is
// honored at the activation boundary instead.
func (c *Controller) beginCountdown() error {
	if err := c.session.transitionTo(StateCountdown); err != nil {
		return err
	}
	c.logger.Info("Countdown started",
		zap.Int("seconds", c.cfg.Session.CountdownSeconds))

	time.Sleep(c.cfg.Session.Countdown())

	return c.activate()
}

func (c *Controller) activate() error {
	if err := c.session.transitionTo(StateActive); err != nil {
		return err
	}

	c.mu.Lock()
	c.activatedAt = time.Now()
	mic := c.mic
	camera := c.camera
	c.mu.Unlock()

	micTap, err := c.deps.Bus.AttachTap(mixbus.TapMic)
	if err != nil {
		return fmt.Errorf("failed to attach microphone tap: %w", err)
	}

	var videoTap *mixbus.VideoTap
	if camera != nil {
		videoTap, err = c.deps.Bus.AttachVideoTap(mixbus.TapVideo)
		if err != nil {
			return fmt.Errorf("failed to attach video tap: %w", err)
		}
	}

	// Independent track for the recording path, so stopping one side
	// never silences the other.
	micClone, err := mic.Clone()
	if err != nil {
		c.logger.Error("Failed to clone microphone track, recording loses local audio", zap.Error(err))
		micClone = nil
	}
	c.mu.Lock()
	c.micClone = micClone
	c.mu.Unlock()

	if err := c.deps.AI.SendStartInterview(time.Now()); err != nil {
		// The read loop observes the dead socket and terminates the
		// session; nothing to do here beyond reporting.
		c.logger.Error("Failed to send interview start marker", zap.Error(err))
	}
	c.deps.Collector.Record(events.TypeInterviewStarted, "")

	c.run(mic, micClone, micTap, camera, videoTap)

	c.logger.Info("Interview active", zap.String("session_id", c.session.ID()))
	return nil
}

// run launches the pipeline goroutines for the active interview.
func (c *Controller) run(mic, micClone device.Microphone, micTap *mixbus.Tap, camera device.Camera, videoTap *mixbus.VideoTap) {
	c.spawn(func() { c.deps.Scheduler.Run(c.runCtx) })
	c.spawn(func() { c.deps.Encoder.Run(c.runCtx) })
	c.spawn(func() { c.deps.Recorder.Run(c.runCtx) })
	c.spawn(func() { c.health.Run(c.runCtx) })
	c.spawn(func() { c.feedPlayback() })
	c.spawn(func() { c.pumpUplink(mic) })
	if micClone != nil {
		c.spawn(func() { c.pumpMicTap(micClone, micTap) })
	}
	if camera != nil && videoTap != nil {
		c.spawn(func() { c.pumpVideo(camera, videoTap) })
	}

	// Watchdog, deliberately outside the waitgroup: it calls Terminate,
	// which waits for the group.
	go c.watchAIChannel()
}

// spawn adds a pipeline goroutine to the termination waitgroup. The
// stopping flag and the Add share the mutex so no goroutine can be added
// once Terminate has started waiting.
func (c *Controller) spawn(f func()) bool {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return false
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		f()
	}()
	return true
}

// feedPlayback decodes inbound AI audio and hands it to the scheduler.
// A chunk that fails to decode is dropped; the stream continues with the
// next one.
func (c *Controller) feedPlayback() {
	for {
		select {
		case <-c.runCtx.Done():
			return
		case chunk := <-c.deps.AI.Chunks():
			buf, err := audio.Decode(chunk)
			if err != nil {
				c.logger.Warn("Dropping undecodable audio chunk",
					zap.String("format", string(chunk.Format)),
					zap.Int("bytes", len(chunk.Payload)),
					zap.Error(err))
				continue
			}
			c.deps.Scheduler.Enqueue(buf)
		}
	}
}

// pumpUplink feeds capture blocks to the uplink encoder and samples the
// microphone level.
func (c *Controller) pumpUplink(mic device.Microphone) {
	for {
		select {
		case <-c.runCtx.Done():
			return
		case frame, ok := <-mic.Frames():
			if !ok {
				c.logger.Info("Microphone track ended")
				return
			}
			c.mu.Lock()
			c.micLevel = audio.RMS(frame)
			c.mu.Unlock()
			c.deps.Encoder.OnAudioFrame(frame)
		}
	}
}

// pumpMicTap feeds the cloned microphone track into the recording mix.
func (c *Controller) pumpMicTap(clone device.Microphone, tap *mixbus.Tap) {
	for {
		select {
		case <-c.runCtx.Done():
			return
		case frame, ok := <-clone.Frames():
			if !ok {
				return
			}
			if err := tap.PushSamples(audio.Float32ToInt16(frame)); err != nil {
				if errors.Is(err, mixbus.ErrBusClosed) {
					return
				}
				c.logger.Warn("Failed to mix microphone frame", zap.Error(err))
			}
		}
	}
}

// pumpVideo passes encoded camera frames into the recording mix.
func (c *Controller) pumpVideo(camera device.Camera, tap *mixbus.VideoTap) {
	for {
		select {
		case <-c.runCtx.Done():
			return
		case frame, ok := <-camera.Frames():
			if !ok {
				return
			}
			if err := tap.PushFrame(frame); err != nil {
				if errors.Is(err, mixbus.ErrBusClosed) {
					return
				}
				c.logger.Warn("Failed to record video frame", zap.Error(err))
			}
		}
	}
}

// watchAIChannel terminates the session when the AI read loop reports
// the channel closed, whether by protocol end or by failure.
func (c *Controller) watchAIChannel() {
	select {
	case <-c.runCtx.Done():
	case err := <-c.deps.AI.Closed():
		if err != nil {
			c.logger.Error("AI channel lost, ending session", zap.Error(err))
		} else {
			c.logger.Info("AI service ended the interview")
		}
		c.Terminate(context.Background())
	}
}

// Terminate runs the single authoritative teardown sequence. Every
// trigger funnels here and only the first caller executes it; the rest
// wait for it to finish. The sequence stops input, flushes what is
// pending exactly once, closes the channels and releases the devices.
func (c *Controller) Terminate(ctx context.Context) {
	c.termOnce.Do(func() {
		if err := c.session.transitionTo(StateEnding); err != nil {
			c.logger.Warn("Termination from unexpected state", zap.Error(err))
		}
		c.logger.Info("Session ending", zap.String("session_id", c.session.ID()))
		c.deps.Collector.Record(events.TypeInterviewEnded, "")

		// Stop new input first, then let the loops drain out. The
		// recorder performs its final segment flush on the way down, while
		// the recording socket is still open.
		c.mu.Lock()
		c.stopping = true
		c.mu.Unlock()
		c.deps.Bus.Close()
		c.cancel()
		c.wg.Wait()

		c.deps.Scheduler.Flush()

		if err := c.deps.Collector.Flush(ctx); err != nil {
			c.logger.Warn("Integrity event batch lost", zap.Error(err))
		}

		if err := c.deps.AI.Close(); err != nil {
			c.logger.Debug("AI socket close", zap.Error(err))
		}
		if err := c.deps.Recording.Close(); err != nil {
			c.logger.Debug("Recording socket close", zap.Error(err))
		}

		c.mu.Lock()
		mic, micClone, camera := c.mic, c.micClone, c.camera
		c.mu.Unlock()
		if mic != nil {
			mic.Stop()
		}
		if micClone != nil {
			micClone.Stop()
		}
		if camera != nil {
			camera.Stop()
		}

		if err := c.session.transitionTo(StateEnded); err != nil {
			c.logger.Error("Failed to finalize session state", zap.Error(err))
		}
		c.logger.Info("Session ended", zap.String("session_id", c.session.ID()))
	})
}

// aiChannelState probes the AI channel. Socket state alone misses a
// stalled uplink, so during the active interview a connected socket
// whose capture batches have gone undelivered past the staleness window
// is reported as errored, the same way recordingActivity treats silent
// segments.
func (c *Controller) aiChannelState() transport.ConnState {
	state := c.deps.AI.State()
	if state != transport.StateConnected || c.session.State() != StateActive {
		return state
	}

	last := c.deps.Encoder.LastActivity()
	if last.IsZero() {
		c.mu.Lock()
		last = c.activatedAt
		c.mu.Unlock()
	}
	if !last.IsZero() && time.Since(last) > c.cfg.Monitor.UplinkStaleness() {
		return transport.StateError
	}
	return state
}

// mediaState probes the capture track for the health monitor.
func (c *Controller) mediaState() transport.ConnState {
	c.mu.Lock()
	mic := c.mic
	c.mu.Unlock()

	if mic == nil {
		return transport.StateDisconnected
	}
	if mic.State() == device.TrackLive {
		return transport.StateConnected
	}
	return transport.StateError
}

// recordingActivity reports whether the recorder has emitted a segment
// recently enough. Silence past the staleness window means media is
// being lost even though the socket may look healthy.
func (c *Controller) recordingActivity() transport.ConnState {
	if !c.deps.Recorder.Running() {
		return transport.StateDisconnected
	}

	last := c.deps.Recorder.LastSegmentAt()
	if last.IsZero() {
		c.mu.Lock()
		last = c.activatedAt
		c.mu.Unlock()
	}
	if last.IsZero() {
		return transport.StateConnecting
	}
	if time.Since(last) > c.cfg.Monitor.SegmentStaleness() {
		return transport.StateError
	}
	return transport.StateConnected
}

// retryAI re-dials the AI channel. Only meaningful before activation; an
// active interview's AI channel is terminal.
func (c *Controller) retryAI(ctx context.Context) error {
	switch c.session.State() {
	case StateActive, StateEnding, StateEnded:
		return errors.New("ai channel is terminal once the interview is active")
	}

	c.mu.Lock()
	url := c.info.AISocketURL
	c.mu.Unlock()
	if url == "" {
		return errors.New("session not bootstrapped")
	}

	if err := c.deps.AI.Connect(ctx, url); err != nil {
		return err
	}

	// Resume the interrupted connect sequence.
	go func() {
		if err := c.beginCountdown(); err != nil {
			c.logger.Warn("Failed to resume session after retry", zap.Error(err))
		}
	}()
	return nil
}

// retryRecording re-dials the recording channel and restarts the
// recorder so segment flushing resumes on the restored socket.
func (c *Controller) retryRecording(ctx context.Context) error {
	c.mu.Lock()
	url := c.info.RecordingSocketURL
	c.mu.Unlock()
	if url == "" {
		return errors.New("session not bootstrapped")
	}

	if err := c.deps.Recording.Connect(ctx, url); err != nil {
		return err
	}

	if c.session.State() == StateActive && !c.deps.Recorder.Running() {
		c.spawn(func() { c.deps.Recorder.Run(c.runCtx) })
	}
	return nil
}
