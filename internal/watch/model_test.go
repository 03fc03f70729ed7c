package watch

import (
	"os"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rileyhilliard/crmon/internal/cluster"
	"github.com/rileyhilliard/crmon/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

type fakeSource struct {
	snap     cluster.Snapshot
	notifier *cluster.Notifier
}

func (f *fakeSource) Name() string                { return f.snap.Cluster }
func (f *fakeSource) Snapshot() cluster.Snapshot  { return f.snap }
func (f *fakeSource) Notifier() *cluster.Notifier { return f.notifier }

func newFakeSource() *fakeSource {
	return &fakeSource{
		notifier: cluster.NewNotifier(),
		snap: cluster.Snapshot{
			Cluster: "prod",
			Ready:   true,
			DC:      "node-a",
			Hosts: []cluster.HostState{
				{Name: "node-a", Connected: true, CRMRunning: true, ClusterStatusOK: true, StorageStatusOK: true, IsDC: true},
				{Name: "node-b", Connected: true, CRMRunning: true, ClusterStatusOK: true, StorageStatusOK: true},
				{Name: "node-c"},
			},
		},
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m
}

func TestPane_Next(t *testing.T) {
	assert.Equal(t, PaneServices, PaneHosts.Next())
	assert.Equal(t, PaneReplication, PaneServices.Next())
	assert.Equal(t, PaneHosts, PaneReplication.Next())
	assert.Equal(t, "replication", PaneReplication.String())
	assert.Equal(t, "unknown", Pane(9).String())
}

func TestModel_PaneKeys(t *testing.T) {
	m := NewModel(newFakeSource(), nil)
	assert.Equal(t, PaneHosts, m.Pane())

	m = press(t, m, "tab")
	assert.Equal(t, PaneServices, m.Pane())

	m = press(t, m, "3")
	assert.Equal(t, PaneReplication, m.Pane())

	m = press(t, m, "1")
	assert.Equal(t, PaneHosts, m.Pane())
}

func TestModel_Selection(t *testing.T) {
	m := NewModel(newFakeSource(), nil)

	m = press(t, m, "up")
	assert.Equal(t, 0, m.Selected(), "stays at the top")

	m = press(t, m, "down", "j", "j", "j")
	assert.Equal(t, 2, m.Selected(), "stops at the last host")

	m = press(t, m, "k")
	assert.Equal(t, 1, m.Selected())

	m = press(t, m, "2")
	assert.Equal(t, 0, m.Selected(), "switching panes resets the selection")
}

func TestModel_Help(t *testing.T) {
	m := NewModel(newFakeSource(), nil)

	m = press(t, m, "?")
	assert.Contains(t, m.View(), "next pane")

	m = press(t, m, "esc")
	assert.NotContains(t, m.View(), "next pane")
}

func TestModel_Quit(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		t.Run(key, func(t *testing.T) {
			m := NewModel(newFakeSource(), nil)
			next, cmd := m.Update(keyMsg(key))
			require.NotNil(t, cmd)
			assert.Equal(t, tea.Quit(), cmd())
			assert.Empty(t, next.(Model).View())
		})
	}
}

func TestModel_ChangedMsgRefreshes(t *testing.T) {
	src := newFakeSource()
	m := NewModel(src, nil)
	m = press(t, m, "j", "j")
	require.Equal(t, 2, m.Selected())

	src.snap.Hosts = src.snap.Hosts[:1]
	src.snap.DC = ""
	diff := cluster.Diff{Op: cluster.OpUpdated, Ref: store.HostRef("node-b"), Field: "connected", At: time.Now()}

	next, cmd := m.Update(changedMsg{diff})
	m = next.(Model)

	assert.NotNil(t, cmd, "keeps waiting for changes")
	assert.Len(t, m.Snapshot().Hosts, 1)
	assert.Equal(t, 0, m.Selected(), "selection clamped to the new row count")
	assert.Contains(t, m.View(), "host:node-b connected")
}

func TestModel_EventsAreCapped(t *testing.T) {
	m := NewModel(newFakeSource(), nil)
	for i := 0; i < maxEvents+3; i++ {
		m.apply([]cluster.Diff{{Op: cluster.OpAdded, Ref: store.ServiceRef("res_Dummy_1")}})
	}
	assert.Len(t, m.events, maxEvents)
}

func TestModel_WaitCmd(t *testing.T) {
	src := newFakeSource()
	m := NewModel(src, nil)

	src.notifier.Publish(cluster.Diff{Op: cluster.OpAdded, Ref: store.ServiceRef("res_Dummy_1")})

	msg := m.waitCmd()()
	diffs, ok := msg.(changedMsg)
	require.True(t, ok)
	require.Len(t, diffs, 1)
	assert.Equal(t, store.ServiceRef("res_Dummy_1"), diffs[0].Ref)
	assert.Empty(t, src.notifier.Drain())
}

func TestModel_WaitCmdStopsOnDone(t *testing.T) {
	done := make(chan struct{})
	m := NewModel(newFakeSource(), done)

	got := make(chan tea.Msg, 1)
	go func() { got <- m.waitCmd()() }()

	close(done)
	select {
	case msg := <-got:
		assert.Nil(t, msg)
	case <-time.After(time.Second):
		t.Fatal("waitCmd did not return after done was closed")
	}
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel(newFakeSource(), nil)
	next, cmd := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Nil(t, cmd)
	assert.Equal(t, 120, next.(Model).width)
	assert.Equal(t, 40, next.(Model).height)
}
