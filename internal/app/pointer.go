package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/folio/internal/plugins/interaction"
)

const doubleClickWindow = 400 * time.Millisecond

// pointerTracker turns terminal mouse reports into pointer events. Terminals
// report press, release, motion and wheel; leave, click and double click are
// derived here.
type pointerTracker struct {
	hoverPage int

	down     bool
	downPage int
	downX    int
	downY    int

	lastClick     time.Time
	lastClickX    int
	lastClickY    int
	lastClickPage int
}

func newPointerTracker() *pointerTracker {
	return &pointerTracker{hoverPage: interaction.NoPage, lastClickPage: interaction.NoPage}
}

func buttonName(b tea.MouseButton) string {
	switch b {
	case tea.MouseButtonLeft:
		return "left"
	case tea.MouseButtonMiddle:
		return "middle"
	case tea.MouseButtonRight:
		return "right"
	case tea.MouseButtonWheelUp:
		return "wheelUp"
	case tea.MouseButtonWheelDown:
		return "wheelDown"
	}
	return ""
}

func isWheel(b tea.MouseButton) bool {
	return b == tea.MouseButtonWheelUp || b == tea.MouseButtonWheelDown ||
		b == tea.MouseButtonWheelLeft || b == tea.MouseButtonWheelRight
}

// translate returns the pointer events msg produces, in dispatch order.
func (t *pointerTracker) translate(msg tea.MouseMsg, l layout, now time.Time) []interaction.PointerEvent {
	page, pt := l.hit(msg.X, msg.Y)
	base := interaction.PointerEvent{
		Point:     pt,
		PageIndex: page,
		Button:    buttonName(msg.Button),
		Shift:     msg.Shift,
		Ctrl:      msg.Ctrl,
		Alt:       msg.Alt,
	}
	with := func(typ interaction.PointerEventType) interaction.PointerEvent {
		ev := base
		ev.Type = typ
		return ev
	}

	var out []interaction.PointerEvent
	if page != t.hoverPage && t.hoverPage != interaction.NoPage {
		out = append(out, interaction.PointerEvent{Type: interaction.PointerLeave, PageIndex: t.hoverPage})
	}
	t.hoverPage = page

	switch {
	case msg.Action == tea.MouseActionPress && isWheel(msg.Button):
		out = append(out, with(interaction.Wheel))

	case msg.Action == tea.MouseActionPress:
		t.down, t.downPage, t.downX, t.downY = true, page, msg.X, msg.Y
		out = append(out, with(interaction.PointerDown))

	case msg.Action == tea.MouseActionRelease:
		out = append(out, with(interaction.PointerUp))
		if t.down && t.downPage == page && t.downX == msg.X && t.downY == msg.Y {
			out = append(out, with(interaction.Click))
			if now.Sub(t.lastClick) <= doubleClickWindow &&
				t.lastClickPage == page && t.lastClickX == msg.X && t.lastClickY == msg.Y {
				out = append(out, with(interaction.DoubleClick))
				t.lastClick = time.Time{}
			} else {
				t.lastClick, t.lastClickX, t.lastClickY, t.lastClickPage = now, msg.X, msg.Y, page
			}
		}
		t.down = false

	case msg.Action == tea.MouseActionMotion:
		out = append(out, with(interaction.PointerMove))
	}
	return out
}
