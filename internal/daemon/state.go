package daemon

// State is the lifecycle phase of a Daemon. Transitions are one-way:
// Idle -> Running -> Draining -> Terminated. A terminated daemon cannot
// be restarted.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}
