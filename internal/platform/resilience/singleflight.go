package resilience

import (
	"context"
	"sync"
)

// SingleFlight collapses concurrent loads of the same key into one call.
// The shared call runs detached from any single caller's cancellation, so a
// caller that gives up does not fail the others.
type SingleFlight[T any] struct {
	mu       sync.Mutex
	inflight map[string]*flight[T]
}

type flight[T any] struct {
	done chan struct{}
	val  T
	err  error
	dups int
}

// Do runs fn once per key among concurrent callers. shared reports whether
// the result was also handed to another caller.
func (g *SingleFlight[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (val T, err error, shared bool) {
	g.mu.Lock()
	if g.inflight == nil {
		g.inflight = make(map[string]*flight[T])
	}
	if f, ok := g.inflight[key]; ok {
		f.dups++
		g.mu.Unlock()
		select {
		case <-f.done:
			return f.val, f.err, true
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err(), true
		}
	}

	f := &flight[T]{done: make(chan struct{})}
	g.inflight[key] = f
	g.mu.Unlock()

	go func() {
		defer close(f.done)
		f.val, f.err = fn(context.WithoutCancel(ctx))
		g.mu.Lock()
		delete(g.inflight, key)
		g.mu.Unlock()
	}()

	select {
	case <-f.done:
		g.mu.Lock()
		shared = f.dups > 0
		g.mu.Unlock()
		return f.val, f.err, shared
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err(), false
	}
}
