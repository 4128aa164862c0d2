package constants

// WorkStatus is the lifecycle state of a WorkUnit.
type WorkStatus string

// Stable values (exposed on the intake surface as-is).
const (
	StatusPending    WorkStatus = "pending"    // created, waiting for an admission slot
	StatusProcessing WorkStatus = "processing" // claimed by a worker, extraction in flight
	StatusDone       WorkStatus = "done"       // >=1 candidate persisted
	StatusFailed     WorkStatus = "failed"     // terminal failure, see error detail
)

// IsTerminal reports whether no further transition may leave s.
func (s WorkStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal edge of the state machine.
func CanTransition(from, to WorkStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusDone || to == StatusFailed
	default:
		return false
	}
}
