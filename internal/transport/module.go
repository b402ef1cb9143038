package transport

import "go.uber.org/fx"

// Module provides the socket clients.
var Module = fx.Module("transport",
	fx.Provide(
		NewAISocket,
		NewRecordingSocket,
	),
)
