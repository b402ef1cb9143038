package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// dialWithBackoff attempts a websocket connection up to attempts times,
// doubling the delay between attempts. Each attempt is bounded by
// timeout. After exhaustion the failure is surfaced as a ChannelError;
// nothing retries silently beyond this loop.
func dialWithBackoff(ctx context.Context, logger *zap.Logger, channel, url string, attempts int, base, timeout time.Duration) (*websocket.Conn, error) {
	var lastErr error
	delay := base

	for attempt := 1; attempt <= attempts; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
		cancel()

		if err == nil {
			return conn, nil
		}
		lastErr = err

		logger.Warn("Connection attempt failed",
			zap.String("channel", channel),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err))

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, &ChannelError{Channel: channel, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, &ChannelError{Channel: channel, Err: fmt.Errorf("all %d connection attempts failed: %w", attempts, lastErr)}
}
