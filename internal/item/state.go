package item

// State is the lifecycle position of an item.
type State string

const (
	StateWanted          State = "wanted"
	StateScraping        State = "scraping"
	StateAdding          State = "adding"
	StateChecking        State = "checking"
	StateSleeping        State = "sleeping"
	StateUnreleased      State = "unreleased"
	StatePendingUncached State = "pending_uncached"
	StateCollected       State = "collected"
	StateBlacklisted     State = "blacklisted"
)

// States lists every persisted state in lifecycle order.
var States = []State{
	StateWanted, StateScraping, StateAdding, StateChecking, StateSleeping,
	StateUnreleased, StatePendingUncached, StateCollected, StateBlacklisted,
}

// validTransitions defines allowed state transitions.
// Key is the "from" state, value is the list of valid "to" states.
// Blacklisted is reachable from everywhere so admins can park any item.
var validTransitions = map[State][]State{
	StateWanted:          {StateScraping, StateUnreleased, StateChecking, StateBlacklisted},
	StateScraping:        {StateAdding, StateSleeping, StateChecking, StateWanted, StateBlacklisted},
	StateAdding:          {StateChecking, StatePendingUncached, StateSleeping, StateWanted, StateBlacklisted},
	StateChecking:        {StateCollected, StateWanted, StateBlacklisted},
	StateSleeping:        {StateWanted, StateAdding, StateBlacklisted},
	StateUnreleased:      {StateWanted, StateBlacklisted},
	StatePendingUncached: {StateChecking, StateWanted, StateBlacklisted},
	StateCollected:       {StateAdding, StateWanted, StateBlacklisted},
	StateBlacklisted:     {StateWanted},
}

// Valid reports whether s is a persisted state.
func (s State) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s State) CanTransitionTo(target State) bool {
	for _, v := range validTransitions[s] {
		if v == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a sink of the lifecycle graph.
func (s State) IsTerminal() bool {
	return s == StateCollected || s == StateBlacklisted
}

// holdsNoFill reports whether items in s must have every filled_by field cleared.
func (s State) holdsNoFill() bool {
	switch s {
	case StateWanted, StateScraping, StateUnreleased, StateBlacklisted:
		return true
	}
	return false
}

// allowsUpgradeSnapshot reports whether upgrading_from fields may be set in s.
func (s State) allowsUpgradeSnapshot() bool {
	return s == StateAdding || s == StateChecking
}
