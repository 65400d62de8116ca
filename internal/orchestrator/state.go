package orchestrator

// State is the normalized orchestrator run state vocabulary.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	// StateUnknown covers unrecognized remote states and unreadable polls. It
	// is not a failure: the run may still be progressing.
	StateUnknown State = "unknown"
)

// Terminal reports whether the orchestrator run has finished.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// ParseState maps remote state strings onto the normalized vocabulary.
func ParseState(raw string) State {
	switch raw {
	case "queued":
		return StateQueued
	case "running":
		return StateRunning
	case "success":
		return StateSucceeded
	case "failed":
		return StateFailed
	default:
		return StateUnknown
	}
}
