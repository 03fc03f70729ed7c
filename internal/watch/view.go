package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/crmon/internal/cluster"
	"github.com/rileyhilliard/crmon/internal/ui"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ui.ColorInfo)
	tabStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(ui.ColorMuted)
	activeStyle = tabStyle.Foreground(ui.ColorPrimary).Bold(true).Underline(true)
	footerStyle = lipgloss.NewStyle().Foreground(ui.ColorMuted)
)

func (m Model) render() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")
	if m.showHelp {
		b.WriteString(renderHelp())
	} else {
		b.WriteString(m.renderPane())
	}
	b.WriteString("\n")
	b.WriteString(m.renderEvents())
	b.WriteString(footerStyle.Render("tab switch  ↑/↓ select  ? help  q quit"))
	return b.String()
}

func (m Model) renderHeader() string {
	online := 0
	for _, h := range m.snap.Hosts {
		if h.Connected {
			online++
		}
	}

	dc := m.snap.DC
	switch {
	case dc == "":
		dc = "none"
	case !m.snap.DCAuthoritative:
		dc += " (fallback)"
	}

	ago := int(m.now().Sub(m.lastUpdate).Seconds())
	updated := "just now"
	if ago > 0 {
		updated = fmt.Sprintf("%ds ago", ago)
	}

	stats := fmt.Sprintf(" | %s | %d/%d hosts online | dc %s | updated %s",
		m.snap.Cluster, online, len(m.snap.Hosts), dc, updated)
	header := titleStyle.Render("crmon watch") + ui.MutedStyle().Render(stats)
	if !m.snap.Ready {
		header += ui.WarningStyle().Render(" | waiting for first status")
	}
	return header
}

func (m Model) renderTabs() string {
	var tabs []string
	for p := PaneHosts; p <= PaneReplication; p++ {
		label := fmt.Sprintf("%d %s", int(p)+1, p)
		if p == m.pane {
			tabs = append(tabs, activeStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderPane() string {
	rows := m.rows()
	if len(rows) == 0 {
		return ui.MutedStyle().Render(fmt.Sprintf("No %s reported yet", m.pane)) + "\n"
	}

	var cols []ui.TableColumn
	switch m.pane {
	case PaneServices:
		cols = ui.ServiceColumns
	case PaneReplication:
		cols = ui.VolumeColumns
	default:
		cols = ui.HostColumns
	}

	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		tableRows[i] = table.Row(r)
	}
	t := ui.NewTable(cols, tableRows, true)
	t.SetCursor(m.selected)
	return t.View() + "\n"
}

func (m Model) renderEvents() string {
	if len(m.events) == 0 {
		return ""
	}
	var b strings.Builder
	for i := len(m.events) - 1; i >= 0; i-- {
		b.WriteString(ui.MutedStyle().Render(describe(m.events[i])))
		b.WriteString("\n")
	}
	return b.String()
}

// describe renders a diff as one log-style line.
func describe(d cluster.Diff) string {
	s := fmt.Sprintf("%s %s %s", d.At.Format("15:04:05"), d.Op, d.Ref)
	if d.Field != "" {
		s += " " + d.Field
	}
	return s
}

func renderHelp() string {
	lines := []string{
		"tab      next pane",
		"1 2 3    hosts / services / replication",
		"↑ k      previous row",
		"↓ j      next row",
		"?  esc   close help",
		"q        quit",
	}
	return ui.HeaderStyle().Render("Keys") + "\n" + strings.Join(lines, "\n") + "\n"
}
