package chaos

// Outcome is the terminal state of a single request passing the gate.
type Outcome int

const (
	// OutcomeForwarded means the continuation was (or must be) invoked.
	OutcomeForwarded Outcome = iota
	// OutcomeFailed means the synthetic failure was (or must be) emitted.
	OutcomeFailed
	// OutcomeAborted means the request context ended while the delay was
	// pending. Neither the continuation nor the failure is acted on.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeForwarded:
		return "forwarded"
	case OutcomeFailed:
		return "failed"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
