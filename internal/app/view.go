package app

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/folio/internal/plugin"
	"github.com/marcus/folio/internal/ui"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	badgeStyle     = lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("57")).Foreground(lipgloss.Color("230"))
	exclusiveStyle = badgeStyle.Background(lipgloss.Color("160"))
	pausedStyle    = badgeStyle.Background(lipgloss.Color("214")).Foreground(lipgloss.Color("0"))
	toastStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	markStyle      = lipgloss.NewStyle().Background(lipgloss.Color("226")).Foreground(lipgloss.Color("0"))
	dragStyle      = lipgloss.NewStyle().Background(lipgloss.Color("117")).Foreground(lipgloss.Color("0"))
	modalStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(1, 2)

	pageStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Width(pageWidth - 2).
			Height(pageHeight - 2)
	hoverPageStyle = pageStyle.BorderForeground(lipgloss.Color("39"))
	lockPageStyle  = pageStyle.BorderForeground(lipgloss.Color("160"))
)

// View renders the model.
func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}
	var body string
	switch {
	case m.showHelp:
		body = m.renderModal("Keys", m.help.FullHelpView(m.keys.FullHelp()))
	case m.showInspector:
		body = m.renderModal("State", m.renderInspector())
	case m.showPlugins:
		body = m.renderModal("Plugins", m.renderPlugins())
	case m.showErrors:
		body = m.renderErrorModal()
	default:
		body = m.renderPages()
	}

	bodyHeight := m.screen.height - headerRows - footerRows
	if bodyHeight < 0 {
		bodyHeight = 0
	}
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderStatus(), m.help.View(m.keys))
}

func (m Model) renderHeader() string {
	st := m.im.State()
	name := m.docName
	if name == "" {
		name = "no document"
	}
	left := headerStyle.Render("folio") + " " + name + mutedStyle.Render(fmt.Sprintf(" · %d pages", m.screen.pages))

	badges := []string{badgeStyle.Render(st.ActiveMode)}
	if m.exclusive.Value() {
		badges = append(badges, exclusiveStyle.Render("page exclusive"))
	}
	if st.Paused {
		badges = append(badges, pausedStyle.Render("paused"))
	}
	return ui.JoinStatus(left, strings.Join(badges, " "), m.screen.width)
}

func (m Model) renderStatus() string {
	st := m.im.State()
	view := m.canvas.snapshot()

	left := fmt.Sprintf("cursor: %s", st.Cursor)
	if view.hoverPage >= 0 {
		left += fmt.Sprintf("  page %d @ %d,%d", view.hoverPage+1, view.hoverPoint.X, view.hoverPoint.Y)
	}
	if view.lastEvent != "" {
		left += mutedStyle.Render("  " + view.lastEvent)
	}

	if m.statusMsg != "" {
		style := toastStyle
		if m.statusIsError {
			style = errorStyle
		}
		left = style.Render(m.statusMsg)
	}

	right := ""
	if m.exportState.Provides().IsPresent() {
		es := m.exportState.Get()
		right = mutedStyle.Render(fmt.Sprintf("exports: %d", es.Exports))
		if es.HistoryError != "" {
			right = mutedStyle.Render(fmt.Sprintf("exports: %d (no history)", es.Exports))
		}
		if es.Error != "" {
			right = errorStyle.Render("export: " + es.Error)
		}
	}
	return m.truncate.Truncate(ui.JoinStatus(left, right, m.screen.width), m.screen.width, "…")
}

func (m Model) renderPages() string {
	if m.screen.pages == 0 {
		return mutedStyle.Render("No pages.")
	}
	view := m.canvas.snapshot()
	l := newLayout(m.screen.width, m.screen.height, m.screen.pages, view.scroll)
	exclusive := m.exclusive.Value()

	var rows []string
	for row := 0; row < l.visibleRows(); row++ {
		var boxes []string
		for col := 0; col < l.cols; col++ {
			i := (l.scroll+row)*l.cols + col
			if i >= l.pages {
				break
			}
			if col > 0 {
				boxes = append(boxes, strings.Repeat(" ", pageGap))
			}
			boxes = append(boxes, m.renderPage(i, view, exclusive))
		}
		if len(boxes) == 0 {
			break
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	}
	return strings.Join(rows, "\n\n")
}

func (m Model) renderPage(i int, view canvasView, exclusive bool) string {
	innerW, innerH := pageWidth-2, pageHeight-2
	label := fmt.Sprintf("Page %d", i+1)

	var active *span
	if view.drag != nil && view.drag.page == i {
		s := spanOf(view.drag.start, view.drag.cur)
		active = &s
	}

	lines := make([]string, innerH)
	for y := 0; y < innerH; y++ {
		var b strings.Builder
		text := ""
		if y == innerH/2 {
			text = ui.Center(label, innerW)
		}
		for x := 0; x < innerW; x++ {
			ch := " "
			if text != "" {
				ch = string([]rune(text)[x])
			}
			switch {
			case active != nil && active.contains(x, y):
				b.WriteString(dragStyle.Render(ch))
			case highlighted(view.highlights[i], x, y):
				b.WriteString(markStyle.Render(ch))
			default:
				b.WriteString(ch)
			}
		}
		lines[y] = b.String()
	}

	style := pageStyle
	switch {
	case exclusive && view.hoverPage == i:
		style = lockPageStyle
	case view.hoverPage == i:
		style = hoverPageStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func highlighted(spans []span, x, y int) bool {
	for _, s := range spans {
		if s.contains(x, y) {
			return true
		}
	}
	return false
}

func (m Model) renderModal(title, content string) string {
	w := m.screen.width - 4
	if w > 90 {
		w = 90
	}
	if w < 20 {
		w = 20
	}
	box := modalStyle.Width(w).Render(headerStyle.Render(title) + "\n\n" + content)
	return lipgloss.Place(m.screen.width, m.screen.height-headerRows-footerRows, lipgloss.Center, lipgloss.Center, box)
}

type pluginStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// inspectorJSON is the state inspector's document.
func (m Model) inspectorJSON() ([]byte, error) {
	var plugins []pluginStatus
	for _, id := range m.registry.IDs() {
		ps := pluginStatus{ID: id, Status: m.registry.Status(id).String()}
		if err := m.registry.Err(id); err != nil {
			ps.Error = err.Error()
		}
		plugins = append(plugins, ps)
	}
	doc := map[string]any{
		"interaction":   m.im.State(),
		"pageExclusive": m.exclusive.Value(),
		"plugins":       plugins,
	}
	if m.exportState.Provides().IsPresent() {
		doc["export"] = m.exportState.Get()
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (m Model) renderInspector() string {
	data, err := m.inspectorJSON()
	if err != nil {
		return errorStyle.Render(err.Error())
	}
	var b strings.Builder
	if err := quick.Highlight(&b, string(data), "json", "terminal256", "monokai"); err != nil {
		return string(data)
	}
	return b.String()
}

// pluginsMarkdown describes every registered plugin.
func (m Model) pluginsMarkdown() string {
	var b strings.Builder
	ids := m.registry.IDs()
	sort.Strings(ids)
	for _, id := range ids {
		man, _ := m.registry.Manifest(id)
		fmt.Fprintf(&b, "## %s\n\n`%s` v%s · **%s**\n\n", man.DisplayName(), id, man.Version, m.registry.Status(id))
		if man.Description != "" {
			b.WriteString(man.Description + "\n\n")
		}
		if len(man.Requires) > 0 {
			fmt.Fprintf(&b, "Requires: %s\n\n", strings.Join(man.Requires, ", "))
		}
		if err := m.registry.Err(id); err != nil {
			fmt.Fprintf(&b, "> %v\n\n", err)
		}
		if p, ok := m.registry.Get(id).Get(); ok {
			if dp, ok := p.(plugin.DiagnosticProvider); ok {
				for _, d := range dp.Diagnostics() {
					fmt.Fprintf(&b, "- %s: %s (%s)\n", d.ID, d.Detail, d.Status)
				}
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func (m Model) renderPlugins() string {
	md := m.pluginsMarkdown()
	width := m.screen.width - 12
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}
