package interaction

import "github.com/marcus/folio/internal/store"

// State is the interaction manager's broadcast state.
type State struct {
	ActiveMode  string `json:"activeMode"`
	DefaultMode string `json:"defaultMode"`
	Cursor      string `json:"cursor"`
	Paused      bool   `json:"paused"`
}

// Action types.
const (
	ActionActivateMode   = "INTERACTION/ACTIVATE_MODE"
	ActionSetDefaultMode = "INTERACTION/SET_DEFAULT_MODE"
	ActionSetCursor      = "INTERACTION/SET_CURSOR"
	ActionPause          = "INTERACTION/PAUSE"
	ActionResume         = "INTERACTION/RESUME"
)

// InitialState is the state before any mode is activated.
func InitialState() State {
	return State{
		ActiveMode:  DefaultModeID,
		DefaultMode: DefaultModeID,
		Cursor:      DefaultCursor,
	}
}

// Reduce applies an interaction action. State is a value type, so the input
// is never modified.
func Reduce(state State, action store.Action) State {
	switch action.Type {
	case ActionActivateMode:
		if id, ok := action.Payload.(string); ok {
			state.ActiveMode = id
		}
	case ActionSetDefaultMode:
		if id, ok := action.Payload.(string); ok {
			state.DefaultMode = id
		}
	case ActionSetCursor:
		if c, ok := action.Payload.(string); ok {
			state.Cursor = c
		}
	case ActionPause:
		state.Paused = true
	case ActionResume:
		state.Paused = false
	}
	return state
}
