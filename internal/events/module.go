package events

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the integrity event collector. The ingestor is
// optional; without one the batch is dropped at flush time.
var Module = fx.Module("events",
	fx.Provide(provideCollector),
)

type collectorParams struct {
	fx.In

	Logger   *zap.Logger
	Ingestor Ingestor `optional:"true"`
}

func provideCollector(p collectorParams) *Collector {
	return NewCollector(p.Logger, p.Ingestor)
}
