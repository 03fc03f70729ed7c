package poll

import (
	"context"
	"sync"
)

// Gate is a one-shot latch. It opens on the first Release and stays open.
type Gate struct {
	once sync.Once
	ch   chan struct{}
}

// NewGate returns a closed gate.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Release opens the gate. It reports true only for the call that opened it.
func (g *Gate) Release() bool {
	opened := false
	g.once.Do(func() {
		close(g.ch)
		opened = true
	})
	return opened
}

// Done is closed once the gate has been released.
func (g *Gate) Done() <-chan struct{} {
	return g.ch
}

// Released reports whether the gate is open.
func (g *Gate) Released() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the gate opens or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
