package intent

// State captures where an Intent is in its verification lifecycle.
//
// The happy path is Pending -> Verifying -> Approved -> Executed. A decision
// against the intent yields Blocked. Expired is reachable from any non-terminal
// state once the deadline elapses and is treated as equivalent to Blocked by
// anyone awaiting a decision (fail-closed).
type State uint8

const (
	// Pending: created, snapshot captured, not yet broadcast to simulators.
	Pending State = iota
	// Verifying: broadcast to simulators, awaiting results.
	Verifying
	// Approved: consensus decided the intent is safe to execute.
	Approved
	// Blocked: consensus decided the intent must not execute.
	Blocked
	// Executed: the execution collaborator confirmed the approved intent ran.
	Executed
	// Expired: deadline elapsed without a decision, or without execution.
	Expired
)

// String returns the lowercase human-readable state name.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Verifying:
		return "verifying"
	case Approved:
		return "approved"
	case Blocked:
		return "blocked"
	case Executed:
		return "executed"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further lifecycle transition is possible.
// Blocked is terminal: a blocked intent never auto-transitions further.
func (s State) Terminal() bool {
	return s == Blocked || s == Executed || s == Expired
}

// Active reports whether the intent still participates in verification, i.e.
// simulator results and state-change events are still relevant to it.
func (s State) Active() bool {
	return s == Pending || s == Verifying
}

// AllowedTransition reports whether moving from one lifecycle state to another
// is legal. Expired is reachable from every non-terminal state.
func AllowedTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == Expired {
		return true
	}
	switch from {
	case Pending:
		return to == Verifying
	case Verifying:
		return to == Approved || to == Blocked
	case Approved:
		return to == Executed
	default:
		return false
	}
}
