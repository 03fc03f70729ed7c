package cluster

import (
	"sync"
	"time"

	"github.com/rileyhilliard/crmon/internal/store"
)

// Op is what happened to the object a Diff refers to.
type Op string

const (
	OpAdded   Op = "added"
	OpUpdated Op = "updated"
	OpRemoved Op = "removed"
)

// Diff describes one model change. Diffs are values; consumers re-read the
// model through Resolve or Snapshot for current state.
type Diff struct {
	Op  Op
	Ref store.Ref
	// Field names the flag that changed for OpUpdated, e.g. "connected".
	Field string
	At    time.Time
}

// Notifier is a single-consumer queue of diffs. Any number of publishes
// before the consumer wakes up collapse into one ready signal.
type Notifier struct {
	mu      sync.Mutex
	pending []Diff
	ready   chan struct{}
}

// NewNotifier returns an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{ready: make(chan struct{}, 1)}
}

// Publish queues diffs and signals the consumer. It never blocks.
func (n *Notifier) Publish(diffs ...Diff) {
	if len(diffs) == 0 {
		return
	}
	now := time.Now()
	n.mu.Lock()
	for _, d := range diffs {
		if d.At.IsZero() {
			d.At = now
		}
		n.pending = append(n.pending, d)
	}
	n.mu.Unlock()

	select {
	case n.ready <- struct{}{}:
	default:
	}
}

// Ready receives a value when diffs are pending.
func (n *Notifier) Ready() <-chan struct{} {
	return n.ready
}

// Drain returns and clears the pending diffs in publish order.
func (n *Notifier) Drain() []Diff {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.pending
	n.pending = nil
	return out
}

// queued returns how many diffs are waiting for Drain.
func (n *Notifier) queued() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}
