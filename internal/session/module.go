package session

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/capture"
	"github.com/voxhire/go-interview-client/internal/config"
	"github.com/voxhire/go-interview-client/internal/device"
	"github.com/voxhire/go-interview-client/internal/events"
	"github.com/voxhire/go-interview-client/internal/mixbus"
	"github.com/voxhire/go-interview-client/internal/monitor"
	"github.com/voxhire/go-interview-client/internal/playback"
	"github.com/voxhire/go-interview-client/internal/transport"
)

// Module provides the lifecycle controller. The bootstrapper and the
// media devices come from the embedding application.
var Module = fx.Module("session",
	fx.Provide(provideController),
)

type controllerParams struct {
	fx.In

	Logger       *zap.Logger
	Config       *config.Config
	Bootstrapper Bootstrapper
	Devices      device.MediaDevices
	AI           *transport.AISocket
	Recording    *transport.RecordingSocket
	Scheduler    *playback.Scheduler
	Encoder      *capture.Encoder
	Bus          *mixbus.Bus
	Recorder     *mixbus.Recorder
	Collector    *events.Collector
	Notifier     monitor.Notifier `optional:"true"`
}

func provideController(p controllerParams) (*Controller, error) {
	return NewController(p.Logger, p.Config, Deps{
		Bootstrapper: p.Bootstrapper,
		Devices:      p.Devices,
		AI:           p.AI,
		Recording:    p.Recording,
		Scheduler:    p.Scheduler,
		Encoder:      p.Encoder,
		Bus:          p.Bus,
		Recorder:     p.Recorder,
		Collector:    p.Collector,
		Notifier:     p.Notifier,
	})
}
