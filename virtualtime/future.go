package virtualtime

import (
	"sync"

	"github.com/joeycumines/netloop/netlog"
)

// state mirrors eventloop's PromiseState (eventloop/promise.go): a future
// starts Pending and moves, irreversibly, to Resolved or Rejected.
type state int32

const (
	pending state = iota
	resolved
	rejected
)

// Future is a read-only view of a value that will eventually be produced by
// work scheduled on a Loop, or by a caller external to the loop entirely.
// It is the read half of a Future/Promise pair shared by wsupgrade and the
// loop.
type Future[T any] struct {
	mu     sync.Mutex
	st     state
	val    T
	err    error
	waiter []chan struct{}
}

// Promise is the write half of a Future[T]. Exactly one of Resolve/Reject
// may take effect; subsequent calls are no-ops, matching promise/A+
// settle-once semantics (eventloop/promise.go's Resolve/Reject).
type Promise[T any] struct {
	f *Future[T]
}

// NewFuture creates a linked (Future, Promise) pair in the Pending state.
func NewFuture[T any]() (*Future[T], Promise[T]) {
	f := &Future[T]{}
	return f, Promise[T]{f: f}
}

// Succeeded returns an already-resolved Future, useful for building chains
// that sometimes short-circuit (e.g. buildUpgradeResponse merging headers
// with nothing left to await).
func Succeeded[T any](val T) *Future[T] {
	f := &Future[T]{st: resolved, val: val}
	return f
}

// Failed returns an already-rejected Future.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{st: rejected, err: err}
	return f
}

// Resolve fulfills the future with val. A no-op if already settled.
func (p Promise[T]) Resolve(val T) { p.f.settle(val, nil) }

// Reject fails the future with err. A no-op if already settled, and a no-op
// if err is nil (use Resolve for success).
func (p Promise[T]) Reject(err error) {
	if err == nil {
		return
	}
	var zero T
	p.f.settle(zero, err)
}

func (f *Future[T]) settle(val T, err error) {
	f.mu.Lock()
	if f.st != pending {
		f.mu.Unlock()
		return
	}
	f.val, f.err = val, err
	if err != nil {
		f.st = rejected
	} else {
		f.st = resolved
	}
	waiters := f.waiter
	f.waiter = nil
	f.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

// Done returns a channel that is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.st != pending {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	ch := make(chan struct{})
	f.waiter = append(f.waiter, ch)
	return ch
}

// Get returns the settled value/error. It does not block; callers await
// completion via Done(), a Loop's AwaitFuture, or a chaining combinator.
func (f *Future[T]) Get() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, f.err
}

// IsPending reports whether the future has not yet settled.
func (f *Future[T]) IsPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st == pending
}

// Map returns a new Future that resolves to fn(v) once f resolves, or
// propagates f's rejection unchanged. Grounded on eventloop's ChainedPromise
// Then/flatMap family (eventloop/promise.go); simplified to two
// combinators, map and flatMap (wsupgrade chains its steps with FlatMap).
func Map[T, R any](f *Future[T], fn func(T) R) *Future[R] {
	out, p := NewFuture[R]()
	go func() {
		<-f.Done()
		v, err := f.Get()
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(fn(v))
	}()
	return out
}

// FlatMap chains f into a future-producing function, flattening the result.
// Rejections at either stage propagate to the output future unchanged.
func FlatMap[T, R any](f *Future[T], fn func(T) *Future[R]) *Future[R] {
	out, p := NewFuture[R]()
	go func() {
		<-f.Done()
		v, err := f.Get()
		if err != nil {
			p.Reject(err)
			return
		}
		next := fn(v)
		if next == nil {
			netlog.L().Err().Err(ErrLoopTerminated).Log("virtualtime: FlatMap callback returned nil future")
			p.Reject(ErrLoopTerminated)
			return
		}
		<-next.Done()
		nv, nerr := next.Get()
		if nerr != nil {
			p.Reject(nerr)
			return
		}
		p.Resolve(nv)
	}()
	return out
}

// Cascade forwards src's eventual result onto dst: whatever src resolves or
// rejects with, dst does too. This is the combinator that bridges a
// loop-bound future into a plain, externally awaitable one.
func Cascade[T any](src *Future[T], dst Promise[T]) {
	go func() {
		<-src.Done()
		v, err := src.Get()
		if err != nil {
			dst.Reject(err)
			return
		}
		dst.Resolve(v)
	}()
}
