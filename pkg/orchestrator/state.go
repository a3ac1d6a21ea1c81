package orchestrator

import (
	"errors"

	"github.com/ja7ad/rectask/pkg/enumerate"
)

var (
	// ErrInvalidArguments rejects a range before any network call.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrHashMismatch means the program hash differs from the task record.
	ErrHashMismatch = errors.New("program hash mismatch")

	// ErrAlreadyFinished refuses to restart a task that reached a final status.
	ErrAlreadyFinished = errors.New("task already finished")

	// ErrTransport wraps a reporter failure that survived all retries.
	ErrTransport = errors.New("task service unreachable")
)

// State is a step of one run. Idle, Verifying and Running are transient;
// every other state is terminal.
type State int

const (
	Idle State = iota
	Verifying
	Running
	Completed
	EnergyExceeded
	HashMismatch
	TransportFailed
	Refused
	InvalidArguments
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Verifying:
		return "verifying"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case EnergyExceeded:
		return "energy_exceeded"
	case HashMismatch:
		return "hash_mismatch"
	case TransportFailed:
		return "transport_failed"
	case Refused:
		return "refused"
	case InvalidArguments:
		return "invalid_arguments"
	default:
		return "unknown"
	}
}

// Outcome is the terminal state of a run and whatever was produced on the way.
type Outcome struct {
	State State

	// Result is set once the enumerator ran, even if the final report failed.
	Result *enumerate.RunResult

	// Hash is the program digest when it was computed.
	Hash string
}

// ExitCode maps the outcome to a process exit status: 0 only for Completed.
func (o Outcome) ExitCode() int {
	if o.State == Completed {
		return 0
	}
	return 1
}
