// Package writeorder serializes mutations per document.
//
// Calls for the same key run strictly in call order, one at a time, no
// matter how long each takes. A failed call is reported to its own caller
// only; the next call starts normally. Keys are dropped once their chain
// settles. Ordering holds within one process only.
package writeorder

import (
	"context"
	"sync"
)

// Func is a queued mutation.
type Func func(ctx context.Context) error

// ticket is one link of a per-key chain.
type ticket struct {
	done chan struct{}
}

// Pending is a handle on a queued mutation.
type Pending struct {
	done chan struct{}
	err  error
}

// Wait blocks until the mutation has run and returns its error.
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}

// Done is closed once the mutation has run.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Queue is a set of per-key mutation chains.
type Queue struct {
	mu      sync.Mutex
	tails   map[string]*ticket
	pending map[string]int
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{
		tails:   make(map[string]*ticket),
		pending: make(map[string]int),
	}
}

// Enqueue appends fn to the chain for key and returns immediately.
//
// The position in the chain is fixed before Enqueue returns, so the call
// order of Enqueue is the execution order. fn runs after every earlier
// call for key has finished, successfully or not.
func (q *Queue) Enqueue(ctx context.Context, key string, fn Func) *Pending {
	t := &ticket{done: make(chan struct{})}
	p := &Pending{done: make(chan struct{})}

	q.mu.Lock()
	prev := q.tails[key]
	q.tails[key] = t
	q.pending[key]++
	q.mu.Unlock()

	go func() {
		if prev != nil {
			<-prev.done
		}

		p.err = run(ctx, fn)

		q.mu.Lock()
		q.pending[key]--
		if q.pending[key] == 0 {
			delete(q.pending, key)
		}
		if q.tails[key] == t {
			delete(q.tails, key)
		}
		q.mu.Unlock()

		close(t.done)
		close(p.done)
	}()

	return p
}

// Do enqueues fn and waits for it.
func (q *Queue) Do(ctx context.Context, key string, fn Func) error {
	return q.Enqueue(ctx, key, fn).Wait()
}

// Pending returns the number of unfinished calls for key.
func (q *Queue) Pending(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending[key]
}

// Len returns the number of keys with unfinished calls.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tails)
}

// run calls fn, converting a panic into an error so the chain keeps moving.
func run(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn(ctx)
}
