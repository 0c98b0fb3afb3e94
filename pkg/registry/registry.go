// Package registry tracks in-flight calls by id until their response arrives.
package registry

import (
	"context"
	"fmt"
	"sync"
)

// Waiter is resolved at most once with the response for its id.
type Waiter[R any] interface {
	resolve(R)
}

// Future parks a caller until the call resolves.
type Future[R any] struct {
	ch chan R
}

func NewFuture[R any]() *Future[R] { return &Future[R]{ch: make(chan R, 1)} }

func (f *Future[R]) resolve(r R) { f.ch <- r }

// Wait blocks until the future resolves or ctx is done. A result that is
// already resolved wins over a done ctx.
func (f *Future[R]) Wait(ctx context.Context) (R, error) {
	select {
	case r := <-f.ch:
		return r, nil
	case <-ctx.Done():
		select {
		case r := <-f.ch:
			return r, nil
		default:
		}
		var zero R
		return zero, ctx.Err()
	}
}

// Callback is a waiter that invokes a function on resolution. The function runs
// on the goroutine delivering the response.
type Callback[R any] func(R)

func (c Callback[R]) resolve(r R) { c(r) }

// Registry maps call ids to waiters. Removing an entry and resolving it happen
// as one step, so no id is ever resolved twice.
type Registry[R any] struct {
	mu      sync.Mutex
	pending map[int64]Waiter[R]
}

func New[R any]() *Registry[R] {
	return &Registry[R]{pending: make(map[int64]Waiter[R])}
}

// Register adds a waiter for id. Registering an id twice is a programming error
// and panics.
func (r *Registry[R]) Register(id int64, w Waiter[R]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.pending[id]; dup {
		panic(fmt.Sprintf("registry: call id %d already registered", id))
	}
	r.pending[id] = w
}

// Resolve removes the waiter for id and hands it result. It returns false when
// no waiter is registered, for example when the caller already gave up.
func (r *Registry[R]) Resolve(id int64, result R) bool {
	r.mu.Lock()
	w, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	w.resolve(result)
	return true
}

// Forget removes the waiter for id without resolving it.
func (r *Registry[R]) Forget(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[id]
	delete(r.pending, id)
	return ok
}

// Len returns the number of in-flight calls.
func (r *Registry[R]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
