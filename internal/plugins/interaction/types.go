package interaction

import (
	"errors"

	"github.com/marcus/folio/internal/event"
)

// ErrUnknownMode is returned when activating a mode that was never registered.
var ErrUnknownMode = errors.New("interaction: unknown mode")

// DefaultModeID is the mode active when nothing else claims pointer input.
const DefaultModeID = "pointerMode"

// DefaultCursor is used when neither a claim nor the active mode sets one.
const DefaultCursor = "auto"

// NoPage marks a pointer event outside every page.
const NoPage = -1

// ScopeKind says where a mode or handler applies.
type ScopeKind string

const (
	ScopeGlobal ScopeKind = "global"
	ScopePage   ScopeKind = "page"
)

// InteractionMode describes a named pointer mode such as "highlight".
type InteractionMode struct {
	ID        string    `yaml:"id" json:"id"`
	Scope     ScopeKind `yaml:"scope" json:"scope"`
	Exclusive bool      `yaml:"exclusive" json:"exclusive"`
	Cursor    string    `yaml:"cursor" json:"cursor,omitempty"`
}

// Scope restricts always-active handlers to the whole viewer or one page.
type Scope struct {
	Kind      ScopeKind
	PageIndex int
}

// GlobalScope applies everywhere.
func GlobalScope() Scope { return Scope{Kind: ScopeGlobal} }

// PageScope applies to one page.
func PageScope(pageIndex int) Scope { return Scope{Kind: ScopePage, PageIndex: pageIndex} }

// PointerEventType enumerates pointer events.
type PointerEventType string

const (
	PointerDown  PointerEventType = "pointerdown"
	PointerUp    PointerEventType = "pointerup"
	PointerMove  PointerEventType = "pointermove"
	PointerLeave PointerEventType = "pointerleave"
	Click        PointerEventType = "click"
	DoubleClick  PointerEventType = "dblclick"
	Wheel        PointerEventType = "wheel"
)

// Point is a position in page-local cells.
type Point struct {
	X, Y int
}

// PointerEvent is a pointer event routed to handlers.
type PointerEvent struct {
	Type      PointerEventType
	Point     Point
	PageIndex int // NoPage when outside every page
	Button    string
	Shift     bool
	Ctrl      bool
	Alt       bool
}

// OnPage reports whether the event happened over a page.
func (e PointerEvent) OnPage() bool { return e.PageIndex >= 0 }

// PointerEventHandlers holds optional callbacks per event type.
type PointerEventHandlers struct {
	OnPointerDown  func(PointerEvent)
	OnPointerUp    func(PointerEvent)
	OnPointerMove  func(PointerEvent)
	OnPointerLeave func(PointerEvent)
	OnClick        func(PointerEvent)
	OnDoubleClick  func(PointerEvent)
	OnWheel        func(PointerEvent)
}

// callback returns the handler for the event type, or nil.
func (h PointerEventHandlers) callback(t PointerEventType) func(PointerEvent) {
	switch t {
	case PointerDown:
		return h.OnPointerDown
	case PointerUp:
		return h.OnPointerUp
	case PointerMove:
		return h.OnPointerMove
	case PointerLeave:
		return h.OnPointerLeave
	case Click:
		return h.OnClick
	case DoubleClick:
		return h.OnDoubleClick
	case Wheel:
		return h.OnWheel
	}
	return nil
}

// HandlerRegistration registers handlers that run only while ModeID is
// active, optionally only for one page.
type HandlerRegistration struct {
	ModeID    string
	Handlers  PointerEventHandlers
	PageIndex *int
}

// AlwaysRegistration registers handlers that run regardless of mode.
type AlwaysRegistration struct {
	Scope    Scope
	Handlers PointerEventHandlers
}

// ModeChange is delivered to OnModeChange listeners. Mode equals Previous
// when the active mode was re-registered with a different definition.
type ModeChange struct {
	Mode     string
	Previous string
}

// HandlerChange is delivered when handlers are added or removed.
type HandlerChange struct {
	ModeID     string // empty for always-active handlers
	Scope      Scope
	Registered bool
}

// Capability is the consumer-facing surface of the interaction manager.
type Capability interface {
	RegisterMode(mode InteractionMode) error
	Modes() []InteractionMode
	Activate(modeID string) error
	ActivateDefaultMode()
	Finish()
	SetDefaultMode(modeID string) error
	DefaultMode() string
	ActiveMode() string
	ActiveInteractionMode() (InteractionMode, bool)
	ActiveModeIsExclusive() bool

	SetCursor(token, cursor string, priority int)
	RemoveCursor(token string)
	CurrentCursor() string

	RegisterHandlers(reg HandlerRegistration) event.Unsubscribe
	RegisterAlways(reg AlwaysRegistration) event.Unsubscribe
	HandlersFor(pageIndex int) []PointerEventHandlers
	DispatchPointer(ev PointerEvent) int

	Pause()
	Resume()
	IsPaused() bool

	State() State
	OnStateChange(fn func(State)) event.Unsubscribe
	OnModeChange(fn func(ModeChange)) event.Unsubscribe
	OnCursorChange(fn func(string)) event.Unsubscribe
	OnHandlerChange(fn func(HandlerChange)) event.Unsubscribe
}
