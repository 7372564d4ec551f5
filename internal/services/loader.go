package services

import (
	"context"
	"sync"
)

// Ticket identifies one fetch started through a Loader.
type Ticket struct {
	Seq uint64
	Ctx context.Context
}

// Loader gates fetches by sequence number. Starting a fetch cancels the one
// in flight, and only the latest fetch's result is accepted.
type Loader[T any] struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Start cancels any fetch in flight and returns a ticket for a new one.
func (l *Loader[T]) Start(parent context.Context) Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	l.seq++
	return Ticket{Seq: l.seq, Ctx: ctx}
}

// IsCurrent reports whether seq belongs to the latest fetch.
func (l *Loader[T]) IsCurrent(seq uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return seq == l.seq
}

// Seq returns the latest sequence number.
func (l *Loader[T]) Seq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Finish accepts r when it belongs to the latest fetch. Stale results are
// reported with ok == false and must be dropped.
func (l *Loader[T]) Finish(seq uint64, r Result[T]) (Result[T], bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if seq != l.seq {
		return Result[T]{}, false
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	return r, true
}

// Cancel abandons the fetch in flight, if any. Its result will be stale.
func (l *Loader[T]) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.seq++
}

// Run is Start, fetch and Finish in one synchronous call.
func (l *Loader[T]) Run(parent context.Context, fetch func(context.Context) Result[T]) (Result[T], bool) {
	t := l.Start(parent)
	return l.Finish(t.Seq, fetch(t.Ctx))
}
