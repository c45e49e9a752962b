package app

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var dangerModalStyle = modalStyle.BorderForeground(lipgloss.Color("196"))

// errorDetail flattens joined errors into one line each.
func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		out := ""
		for i, e := range joined.Unwrap() {
			if i > 0 {
				out += "\n"
			}
			out += "• " + e.Error()
		}
		return out
	}
	return err.Error()
}

// renderErrorModal shows the last error with its full detail.
func (m Model) renderErrorModal() string {
	w := m.screen.width - 4
	if w > 90 {
		w = 90
	}
	if w < 30 {
		w = 30
	}
	body := errorStyle.Render("Error") + "\n\n" + errorDetail(m.lastError) + "\n\n" +
		mutedStyle.Render("y copy · esc dismiss")
	box := dangerModalStyle.Width(w).Render(body)
	return lipgloss.Place(m.screen.width, m.screen.height-headerRows-footerRows, lipgloss.Center, lipgloss.Center, box)
}

// updateErrorModal handles keys while the error modal is open.
func (m Model) updateErrorModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Yank):
		m.yankError()
	case msg.String() == "esc" || key.Matches(msg, m.keys.Errors):
		m.dismissErrorModal()
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	}
	return m, nil
}

func (m *Model) dismissErrorModal() {
	m.showErrors = false
	m.lastError = nil
	m.statusIsError = false
	m.statusMsg = ""
}

// yankError copies the error detail to the system clipboard.
func (m *Model) yankError() {
	detail := errorDetail(m.lastError)
	if detail == "" {
		return
	}
	if err := m.writeClipboard(detail); err != nil {
		m.ShowToast("Copy failed: "+err.Error(), 2*time.Second)
		return
	}
	m.ShowToast("Copied error", 2*time.Second)
}
