package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/folio/internal/engine"
	"github.com/marcus/folio/internal/plugins/export"
)

// ErrorMsg reports an asynchronous failure.
type ErrorMsg struct {
	Err error
}

// ExportDoneMsg is sent when a download finishes.
type ExportDoneMsg struct {
	Record export.Record
	Err    error
}

// DocumentEventMsg wraps an engine watch event.
type DocumentEventMsg struct {
	Event engine.Event
}

// watchStartedMsg carries the engine's event channel into Update.
type watchStartedMsg struct {
	events <-chan engine.Event
}

// TickMsg expires toasts.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func startWatch(ctx context.Context, eng engine.Engine) tea.Cmd {
	return func() tea.Msg {
		events, err := eng.Watch(ctx)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return watchStartedMsg{events: events}
	}
}

func waitForEvent(events <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return DocumentEventMsg{Event: ev}
	}
}

func downloadCmd(ctx context.Context, c export.Capability) tea.Cmd {
	return func() tea.Msg {
		rec, err := c.Download(ctx)
		return ExportDoneMsg{Record: rec, Err: err}
	}
}
