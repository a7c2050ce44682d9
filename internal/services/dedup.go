package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type fetchCall struct {
	done chan struct{}
	data []byte
	err  error
}

// Deduplicator coalesces concurrent fetches of the same key onto a single
// in-flight call. The first caller becomes the leader and runs the fetch;
// everyone else blocks until the leader finishes and receives the same
// payload and error.
type Deduplicator struct {
	mu     sync.Mutex
	calls  map[string]*fetchCall
	logger *logrus.Entry
}

func NewDeduplicator(logger *logrus.Logger) *Deduplicator {
	return &Deduplicator{
		calls:  make(map[string]*fetchCall),
		logger: logger.WithField("component", "dedup"),
	}
}

// RunExclusive runs fn at most once per key across concurrent callers.
// shared reports whether the result came from another caller's fetch.
//
// The leader runs fn detached from its own cancellation so a completed
// fetch always reaches the waiters and the cache; a waiter whose context
// expires stops waiting and gets the context error instead.
func (d *Deduplicator) RunExclusive(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) (data []byte, shared bool, err error) {
	d.mu.Lock()
	if call, ok := d.calls[key]; ok {
		d.mu.Unlock()
		dedupSharedFetches.Inc()
		select {
		case <-call.done:
			return call.data, true, call.err
		case <-ctx.Done():
			return nil, true, ctx.Err()
		}
	}

	call := &fetchCall{done: make(chan struct{})}
	d.calls[key] = call
	d.mu.Unlock()

	// The in-flight entry must go away on every exit path, a leaked key
	// would block all future fetches of it forever.
	defer func() {
		if r := recover(); r != nil {
			call.err = fmt.Errorf("fetch panicked: %v", r)
			d.finish(key, call)
			panic(r)
		}
		d.finish(key, call)
	}()

	call.data, call.err = fn(context.WithoutCancel(ctx))
	return call.data, false, call.err
}

func (d *Deduplicator) finish(key string, call *fetchCall) {
	d.mu.Lock()
	delete(d.calls, key)
	d.mu.Unlock()
	close(call.done)
}

// Pending returns the number of keys with a fetch currently in flight.
func (d *Deduplicator) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}
