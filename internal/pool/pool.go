// Package pool bounds the number of requests in flight during a run.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultSize is the in-flight cap used when a non-positive size is given.
const DefaultSize = 1000

// Group runs functions on their own goroutines while holding one of a fixed
// number of slots. Go blocks the caller until a slot is free, so a spawn loop
// feeding a Group is throttled once the cap is reached.
type Group struct {
	slots    chan struct{}
	wg       sync.WaitGroup
	inFlight atomic.Int64
	peak     atomic.Int64
}

// New creates a Group with the given number of slots.
func New(size int) *Group {
	if size <= 0 {
		size = DefaultSize
	}
	return &Group{slots: make(chan struct{}, size)}
}

// Go waits for a free slot and runs fn on a new goroutine. It returns the
// context error without running fn if ctx is cancelled first.
func (g *Group) Go(ctx context.Context, fn func()) error {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	g.wg.Add(1)
	n := g.inFlight.Add(1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	go func() {
		defer func() {
			g.inFlight.Add(-1)
			<-g.slots
			g.wg.Done()
		}()
		fn()
	}()
	return nil
}

// Wait blocks until every function started with Go has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Size returns the number of slots.
func (g *Group) Size() int {
	return cap(g.slots)
}

// Peak returns the highest number of functions that ran at the same time.
func (g *Group) Peak() int64 {
	return g.peak.Load()
}
