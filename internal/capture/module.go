package capture

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/config"
	"github.com/voxhire/go-interview-client/internal/transport"
)

// Module provides the capture encoder, wired to the AI socket uplink.
var Module = fx.Module("capture",
	fx.Provide(provideEncoder),
)

func provideEncoder(logger *zap.Logger, cfg *config.Config, sock *transport.AISocket) *Encoder {
	return NewEncoder(logger, cfg, sock)
}
