package watch

import tea "github.com/charmbracelet/bubbletea"

// Pane is the table the dashboard shows.
type Pane int

const (
	PaneHosts Pane = iota
	PaneServices
	PaneReplication
)

func (p Pane) String() string {
	switch p {
	case PaneHosts:
		return "hosts"
	case PaneServices:
		return "services"
	case PaneReplication:
		return "replication"
	default:
		return "unknown"
	}
}

// Next cycles to the following pane.
func (p Pane) Next() Pane {
	return Pane((int(p) + 1) % 3)
}

// Key bindings as constants for consistency.
const (
	KeyQuit        = "q"
	KeyQuitAlt     = "ctrl+c"
	KeyNextPane    = "tab"
	KeyHosts       = "1"
	KeyServices    = "2"
	KeyReplication = "3"
	KeySelectPrev  = "up"
	KeySelectPrevK = "k"
	KeySelectNext  = "down"
	KeySelectNextJ = "j"
	KeyToggleHelp  = "?"
	KeyCloseHelp   = "esc"
)

// handleKey processes keyboard input. It reports whether the key was used.
func (m *Model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp && key == KeyCloseHelp {
		m.showHelp = false
		return true, nil
	}

	switch key {
	case KeyQuit, KeyQuitAlt:
		m.quitting = true
		return true, tea.Quit
	case KeyNextPane:
		m.setPane(m.pane.Next())
	case KeyHosts:
		m.setPane(PaneHosts)
	case KeyServices:
		m.setPane(PaneServices)
	case KeyReplication:
		m.setPane(PaneReplication)
	case KeySelectPrev, KeySelectPrevK:
		if m.selected > 0 {
			m.selected--
		}
	case KeySelectNext, KeySelectNextJ:
		if m.selected < m.rowCount()-1 {
			m.selected++
		}
	default:
		return false, nil
	}
	return true, nil
}

func (m *Model) setPane(p Pane) {
	if m.pane != p {
		m.pane = p
		m.selected = 0
	}
}
