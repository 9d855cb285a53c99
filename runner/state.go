package runner

// State is the position of a request in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSearching
	StateExtracting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSearching:
		return "searching"
	case StateExtracting:
		return "extracting"
	case StateSucceeded:
		return "done_success"
	case StateFailed:
		return "done_failure"
	}
	return "unknown"
}

// Terminal reports whether s is one of the two done states.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}
