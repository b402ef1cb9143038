package mixbus

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/config"
	"github.com/voxhire/go-interview-client/internal/playback"
	"github.com/voxhire/go-interview-client/internal/transport"
)

// Module provides the mixing bus, the remote-audio tap consumed by the
// playback scheduler, and the chunked recorder.
var Module = fx.Module("mixbus",
	fx.Provide(
		provideBus,
		fx.Annotate(NewOpusEncoder, fx.As(new(AudioEncoder))),
		provideRemoteTap,
		provideRecorder,
	),
)

// provideBus pins the composite timeline to the pipeline sample rate.
func provideBus(logger *zap.Logger, cfg *config.Config) *Bus {
	return NewBus(logger, cfg.Audio.SampleRate)
}

// provideRemoteTap attaches the AI-audio tap at construction time, so
// the first decoded chunk always has a bus to land in.
func provideRemoteTap(bus *Bus) (playback.Tap, error) {
	return bus.AttachTap(TapRemote)
}

func provideRecorder(logger *zap.Logger, cfg *config.Config, bus *Bus, enc AudioEncoder, sock *transport.RecordingSocket) *Recorder {
	return NewRecorder(logger, cfg, bus, enc, sock)
}
