// Package task models the remote task record and the two calls made against
// it: fetching the record and patching its execution status.
package task

import "strconv"

// Status is the lifecycle state stored on the remote record.
type Status int

const (
	Pending        Status = iota // 0: created, never run
	Running                      // 1: integrity verified, enumeration in progress
	Completed                    // 2: finished within budget
	EnergyExceeded               // 3: stopped early by the energy budget
	HashMismatch                 // 4: program hash did not match the record
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case EnergyExceeded:
		return "energy_exceeded"
	case HashMismatch:
		return "hash_mismatch"
	default:
		return "status(" + strconv.Itoa(int(s)) + ")"
	}
}

// IsTerminal reports whether a run already finished for this record. Such
// records must not be restarted.
func (s Status) IsTerminal() bool {
	return s == Completed || s == EnergyExceeded
}

// Record is the remote task as returned by GET.
type Record struct {
	ID     string `json:"id,omitempty"`
	Hash   string `json:"hash"`
	Status Status `json:"status"`

	ExecutionTimeHours           float64 `json:"executionTime,omitempty"`
	EnergyConsumedMilliwattHours float64 `json:"energyConsumed,omitempty"`
}

// Patch is the body of a status update. Metrics are sent only with final
// statuses.
type Patch struct {
	Status Status `json:"status"`
	Hash   string `json:"hash"`

	ExecutionTimeHours           *float64 `json:"executionTime,omitempty"`
	EnergyConsumedMilliwattHours *float64 `json:"energyConsumed,omitempty"`
}

// StatusPatch builds a patch without metrics.
func StatusPatch(s Status, hash string) Patch {
	return Patch{Status: s, Hash: hash}
}

// FinalPatch builds a patch carrying execution time (hours) and energy (mWh).
func FinalPatch(s Status, hash string, hours, energy float64) Patch {
	return Patch{
		Status:                       s,
		Hash:                         hash,
		ExecutionTimeHours:           &hours,
		EnergyConsumedMilliwattHours: &energy,
	}
}
