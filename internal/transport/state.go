// Package transport implements the socket clients for the AI audio
// channel and the recording uplink channel.
package transport

import "fmt"

// ConnState is the supervised state of a channel. The health monitor
// reuses it for non-socket channels as well.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ChannelError marks a channel-level failure that the lifecycle
// controller decides how to handle.
type ChannelError struct {
	Channel string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Channel, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// SendError marks a single failed outbound message. The pending payload
// is discarded, never retried, to avoid a backlog of stale audio.
type SendError struct {
	Channel string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send on %s: %v", e.Channel, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
