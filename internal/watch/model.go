package watch

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/crmon/internal/cluster"
	"github.com/rileyhilliard/crmon/internal/ui"
)

// Source is the cluster the dashboard follows. *cluster.Cluster implements it.
type Source interface {
	Name() string
	Snapshot() cluster.Snapshot
	Notifier() *cluster.Notifier
}

// maxEvents is how many recent diffs the event strip keeps.
const maxEvents = 6

// tickInterval refreshes the "updated Ns ago" header.
const tickInterval = time.Second

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	src  Source
	done <-chan struct{}

	snap       cluster.Snapshot
	events     []cluster.Diff
	lastUpdate time.Time
	now        func() time.Time

	pane     Pane
	selected int
	width    int
	height   int
	showHelp bool
	quitting bool
}

// changedMsg carries diffs drained from the notifier.
type changedMsg []cluster.Diff

// tickMsg refreshes relative times.
type tickMsg time.Time

// NewModel builds a dashboard for src. done, when closed, stops the
// goroutine waiting on the notifier.
func NewModel(src Source, done <-chan struct{}) Model {
	return Model{
		src:        src,
		done:       done,
		snap:       src.Snapshot(),
		lastUpdate: time.Now(),
		now:        time.Now,
	}
}

// Init starts waiting for model changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitCmd(), m.tickCmd())
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.handleKey(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case changedMsg:
		m.apply(msg)
		return m, m.waitCmd()

	case tickMsg:
		return m, m.tickCmd()
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render()
}

// apply refreshes the snapshot after a batch of diffs.
func (m *Model) apply(diffs []cluster.Diff) {
	m.snap = m.src.Snapshot()
	m.lastUpdate = m.now()

	m.events = append(m.events, diffs...)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
	if n := m.rowCount(); m.selected >= n {
		m.selected = max(n-1, 0)
	}
}

// waitCmd blocks until the notifier signals, then drains it.
func (m Model) waitCmd() tea.Cmd {
	n := m.src.Notifier()
	done := m.done
	return func() tea.Msg {
		select {
		case <-n.Ready():
			return changedMsg(n.Drain())
		case <-done:
			return nil
		}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// rows returns the table rows of the current pane.
func (m Model) rows() [][]string {
	switch m.pane {
	case PaneServices:
		return ui.ServiceRows(m.snap.Model)
	case PaneReplication:
		return ui.VolumeRows(m.snap.Model)
	default:
		return ui.HostRows(m.snap.Hosts)
	}
}

func (m Model) rowCount() int {
	return len(m.rows())
}

// Snapshot returns the snapshot currently on screen.
func (m Model) Snapshot() cluster.Snapshot { return m.snap }

// Pane returns the pane currently on screen.
func (m Model) Pane() Pane { return m.pane }

// Selected returns the index of the highlighted row.
func (m Model) Selected() int { return m.selected }
