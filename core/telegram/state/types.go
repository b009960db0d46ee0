package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and draft data for a user.
type Session[D any] struct {
	State State
	Data  D
}

// Idle reports whether the session has no active conversation.
func (s Session[D]) Idle() bool {
	return s.State == "" || s.State == StateIdle
}
