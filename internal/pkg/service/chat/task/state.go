// Package task runs one streaming generation per task on the local replica.
//
// The Registry tracks tasks running in this process, the Runner drives the
// token-producing generation and checks the shared stop signal bus at a fixed
// cadence, so a stop request received by any replica cancels the generation
// within one poll interval.
package task

// State of one generation run.
// It is owned exclusively by the Runner of the task, mutated only by it
// and never shared across processes.
type State string

const (
	StateRunning   State = "running"
	StateStopping  State = "stopping"
	StateStopped   State = "stopped"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether the state is final.
// After a terminal state is reached, no further signal checks occur.
func (s State) Terminal() bool {
	switch s {
	case StateStopped, StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	return string(s)
}

// stopCause distinguishes why a run transitioned to Stopping, for logging.
type stopCause string

const (
	causeSignal     stopCause = "stop signal"
	causeLocal      stopCause = "local stop request"
	causeDisconnect stopCause = "client disconnect"
)
