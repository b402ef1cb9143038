package session

import "context"

// BootstrapInfo is what the backend hands out for one interview: the
// session identity and the two socket endpoints. Both URLs are treated
// as opaque.
type BootstrapInfo struct {
	SessionID          string
	AISocketURL        string
	RecordingSocketURL string
}

// Bootstrapper is the external collaborator that negotiates a session
// with the backend before any socket is dialed.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) (BootstrapInfo, error)
}
