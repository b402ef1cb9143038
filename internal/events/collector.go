// Package events accumulates environment-integrity signals during a
// session and submits them to the external event-ingestion collaborator
// exactly once, on termination.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Type tags an integrity event.
type Type string

const (
	TypeInterviewStarted  Type = "interview_started"
	TypeInterviewEnded    Type = "interview_ended"
	TypeVisibilityChanged Type = "visibility_changed"
	TypeWindowBlurred     Type = "window_blurred"
	TypeWindowFocused     Type = "window_focused"
)

// Event is one recorded signal.
type Event struct {
	Type   Type      `json:"type"`
	At     time.Time `json:"at"`
	Detail string    `json:"detail,omitempty"`
}

// Summary aggregates the batch for quick triage on the ingestion side.
type Summary struct {
	Total   int          `json:"total"`
	ByType  map[Type]int `json:"by_type"`
	FirstAt time.Time    `json:"first_at"`
	LastAt  time.Time    `json:"last_at"`
}

// Batch is the exactly-once submission payload.
type Batch struct {
	SessionID string  `json:"session_id"`
	Events    []Event `json:"events"`
	Summary   Summary `json:"summary"`
}

// Ingestor is the external event-ingestion collaborator.
type Ingestor interface {
	SubmitBatch(ctx context.Context, batch Batch) error
}

// Collector buffers events for the lifetime of one session. Flush
// submits the batch at most once no matter how many times the
// termination sequence fires.
type Collector struct {
	logger   *zap.Logger
	ingestor Ingestor

	mu        sync.Mutex
	sessionID string
	events    []Event

	flushOnce sync.Once
}

// NewCollector creates an empty collector.
func NewCollector(logger *zap.Logger, ingestor Ingestor) *Collector {
	return &Collector{logger: logger, ingestor: ingestor}
}

// BindSession sets the session the batch will be attributed to.
func (c *Collector) BindSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
}

// Record appends one event.
func (c *Collector) Record(t Type, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Event{Type: t, At: time.Now(), Detail: detail})
}

// Len reports the number of buffered events.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Flush submits the accumulated batch. Only the first call submits;
// subsequent calls are no-ops, which keeps the termination sequence
// idempotent.
func (c *Collector) Flush(ctx context.Context) error {
	var err error
	c.flushOnce.Do(func() {
		c.mu.Lock()
		batch := Batch{
			SessionID: c.sessionID,
			Events:    c.events,
			Summary:   summarize(c.events),
		}
		c.events = nil
		c.mu.Unlock()

		if c.ingestor == nil {
			c.logger.Debug("No event ingestor configured, dropping batch",
				zap.Int("events", batch.Summary.Total))
			return
		}

		err = c.ingestor.SubmitBatch(ctx, batch)
		if err != nil {
			// The batch is independent of the audio record; losing it is
			// reported, not retried.
			c.logger.Error("Failed to submit integrity event batch", zap.Error(err))
			return
		}
		c.logger.Info("Integrity event batch submitted",
			zap.String("session_id", batch.SessionID),
			zap.Int("events", batch.Summary.Total))
	})
	return err
}

func summarize(events []Event) Summary {
	s := Summary{Total: len(events), ByType: make(map[Type]int)}
	for i, e := range events {
		s.ByType[e.Type]++
		if i == 0 {
			s.FirstAt = e.At
		}
		s.LastAt = e.At
	}
	return s
}
