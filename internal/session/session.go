// Package session drives the interview lifecycle: device preparation,
// the connect sequence, the countdown, the active interview, and the
// idempotent termination sequence.
package session

import (
	"fmt"
	"sync"
	"time"
)

// State is a lifecycle phase. Transitions only ever move forward;
// termination is reachable from every phase and ended is final.
type State int

const (
	StateIdle State = iota
	StateDevicesReady
	StateConnecting
	StateCountdown
	StateActive
	StateEnding
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDevicesReady:
		return "devices_ready"
	case StateConnecting:
		return "connecting"
	case StateCountdown:
		return "countdown"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// allowedTransitions is the forward-only lifecycle graph.
var allowedTransitions = map[State][]State{
	StateIdle:         {StateDevicesReady, StateEnding},
	StateDevicesReady: {StateConnecting, StateEnding},
	StateConnecting:   {StateCountdown, StateEnding},
	StateCountdown:    {StateActive, StateEnding},
	StateActive:       {StateEnding},
	StateEnding:       {StateEnded},
	StateEnded:        {},
}

// StateTransition is one timestamped lifecycle step.
type StateTransition struct {
	From State
	To   State
	At   time.Time
}

// Session holds the identity and lifecycle position of one interview.
type Session struct {
	mu        sync.Mutex
	id        string
	state     State
	startedAt time.Time
	endedAt   time.Time
	log       []StateTransition
}

// NewSession creates a session in the idle state.
func NewSession() *Session {
	return &Session{state: StateIdle}
}

// BindID sets the backend-issued session identifier.
func (s *Session) BindID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// ID returns the session identifier, empty until bootstrap completes.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State reports the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartedAt reports when the session became active, zero before that.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// EndedAt reports when the session ended, zero before that.
func (s *Session) EndedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt
}

// TransitionLog returns a copy of the lifecycle history.
func (s *Session) TransitionLog() []StateTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StateTransition, len(s.log))
	copy(out, s.log)
	return out
}

// transitionTo moves the session forward, rejecting any step the
// lifecycle graph does not permit. An ended session never moves again.
func (s *Session) transitionTo(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range allowedTransitions[s.state] {
		if allowed == next {
			now := time.Now()
			s.log = append(s.log, StateTransition{From: s.state, To: next, At: now})
			s.state = next

			switch next {
			case StateActive:
				s.startedAt = now
			case StateEnded:
				s.endedAt = now
			}
			return nil
		}
	}
	return fmt.Errorf("invalid session transition: %s -> %s", s.state, next)
}
