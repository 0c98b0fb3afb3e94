// Package readiness holds the one-way "SDK initialised" flag that every call
// waits on before it is dispatched.
package readiness

import (
	"context"
	"sync"
)

// Gate starts closed and opens exactly once. The first Wait on a closed gate
// fires the init trigger; later waiters only park.
type Gate struct {
	initOnce  sync.Once
	readyOnce sync.Once
	ready     chan struct{}
	init      func()
}

// New returns a closed gate. init may be nil.
func New(init func()) *Gate {
	return &Gate{ready: make(chan struct{}), init: init}
}

// Wait returns nil once the gate is open, or ctx.Err() if ctx ends first.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	default:
	}
	g.Trigger()
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs the init function if it has not run yet.
func (g *Gate) Trigger() {
	g.initOnce.Do(func() {
		if g.init != nil {
			g.init()
		}
	})
}

// Signal opens the gate. Later calls are no-ops.
func (g *Gate) Signal() {
	g.readyOnce.Do(func() { close(g.ready) })
}

func (g *Gate) IsReady() bool {
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}

// Done is closed when the gate opens.
func (g *Gate) Done() <-chan struct{} { return g.ready }
