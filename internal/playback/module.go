package playback

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the playback clock and scheduler. The sink comes from
// the platform audio layer; headless wiring falls back to NopSink.
var Module = fx.Module("playback",
	fx.Provide(
		provideClock,
		provideScheduler,
	),
)

func provideClock() *VirtualClock {
	return NewVirtualClock(nil)
}

type schedulerParams struct {
	fx.In

	Logger *zap.Logger
	Clock  *VirtualClock
	Sink   Sink `optional:"true"`
	Tap    Tap  `optional:"true"`
}

func provideScheduler(p schedulerParams) *Scheduler {
	sink := p.Sink
	if sink == nil {
		sink = NopSink{}
	}
	return NewScheduler(p.Logger, p.Clock, sink, p.Tap)
}
