package orchestrator

// State is the lifecycle state of one streamed invocation.
type State int

// Invocation states.
const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Outcome summarizes a finished invocation.
type Outcome struct {
	State      State
	Moved      bool
	ModelCalls int
	Err        error
}
