package export

import "github.com/marcus/folio/internal/store"

// State is the export plugin's broadcast state.
type State struct {
	Exports  int    `json:"exports"`
	LastPath string `json:"lastPath,omitempty"`
	// Error is the last failed export. A successful export clears it.
	Error string `json:"error,omitempty"`
	// HistoryError is set when the history database could not be opened.
	HistoryError string `json:"historyError,omitempty"`
}

// Action types.
const (
	ActionExported      = "EXPORT/EXPORTED"
	ActionFailed        = "EXPORT/FAILED"
	ActionSeed          = "EXPORT/SEED"
	ActionHistoryFailed = "EXPORT/HISTORY_FAILED"
)

// InitialState is the state before any export.
func InitialState() State { return State{} }

// Reduce applies an export action.
func Reduce(state State, action store.Action) State {
	switch action.Type {
	case ActionExported:
		if path, ok := action.Payload.(string); ok {
			state.Exports++
			state.LastPath = path
			state.Error = ""
		}
	case ActionFailed:
		if msg, ok := action.Payload.(string); ok {
			state.Error = msg
		}
	case ActionHistoryFailed:
		if msg, ok := action.Payload.(string); ok {
			state.HistoryError = msg
		}
	case ActionSeed:
		if n, ok := action.Payload.(int); ok {
			state.Exports = n
		}
	}
	return state
}
