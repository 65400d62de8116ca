package registry

import (
	"errors"
	"strings"
	"time"
)

// State represents the lifecycle of a triage run.
type State string

const (
	StateTriggered State = "triggered"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// ErrIllegalTransition signals a programming error: a transition requested
// from a state that does not permit it. Not recoverable by retrying.
var ErrIllegalTransition = errors.New("illegal run state transition")

var allStates = []State{StateTriggered, StateRunning, StateSucceeded, StateFailed}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStates {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// Terminal reports whether the state permits no further transitions.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// InFlight reports whether a run is still progressing toward a terminal state.
func (s State) InFlight() bool {
	return s == StateTriggered || s == StateRunning
}

// Disposition describes the outcome of a trigger request.
type Disposition string

const (
	// DispositionStarted means a new run was created for the item.
	DispositionStarted Disposition = "started"
	// DispositionInProgress means an in-flight run already exists; the caller
	// is handed that run rather than a duplicate.
	DispositionInProgress Disposition = "in_progress"
	// DispositionAlreadyDone means a prior run succeeded and no new run was
	// created.
	DispositionAlreadyDone Disposition = "already_processed"
)

// Record tracks one triage run for one dataset item.
type Record struct {
	RunID           string
	ItemID          string
	JobID           string
	DAGID           string
	State           State
	ProgressPercent float64
	ProgressLabel   string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
