// Package virtualtime implements a deterministic, time-controllable event
// loop. It is single-threaded by queue — every mutation of the task heap
// and the insertion-order counter happens on one serial executor
// goroutine — while remaining safe to drive from any number of caller
// goroutines. The debug-build promise-creation registry is the exception:
// entries are added from the submitting goroutine and the registry guards
// itself with a mutex.
//
// Grounded on the teacher's eventloop.Loop (eventloop/loop.go) and its
// CAS-based lifecycle state machine (eventloop/state.go), simplified for a
// clock that never advances except when a caller says so: there is no I/O
// poller, no wake pipe, and no Sleeping state.
package virtualtime

import (
	"container/heap"
	"context"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/joeycumines/netloop/netlog"
	"golang.org/x/sync/errgroup"
)

// Loop is a deterministic, virtual-time task scheduler. The zero value is
// not usable; construct one with NewLoop.
type Loop struct {
	state *fastState

	now         atomic.Int64
	idCounter   atomic.Uint64
	taskCounter uint64   // serial-executor-confined
	queue       taskHeap // serial-executor-confined

	registry *registry

	cmds            chan func()
	loopGoroutineID atomic.Uint64
	drainDone       chan struct{}
}

// NewLoop creates an empty loop with now == 0, in StateAwake.
func NewLoop() *Loop {
	l := &Loop{
		state:     newFastState(),
		cmds:      make(chan func(), 4096),
		drainDone: make(chan struct{}),
		registry:  newRegistry(),
	}
	go l.serve()
	return l
}

// serve is the serial executor: the sole goroutine that ever touches queue
// and taskCounter directly.
func (l *Loop) serve() {
	l.loopGoroutineID.Store(goroutineID())
	defer close(l.drainDone)
	for fn := range l.cmds {
		l.safeRun(fn)
	}
}

func (l *Loop) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			netlog.L().Err().Str("panic", stringify(r)).Log("virtualtime: recovered panic in scheduled work")
		}
	}()
	fn()
}

func stringify(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "non-error panic value"
}

// isLoopThread reports whether the calling goroutine is the serial
// executor itself.
func (l *Loop) isLoopThread() bool {
	id := l.loopGoroutineID.Load()
	return id != 0 && goroutineID() == id
}

// runOnSerial executes fn with exclusive access to loop-internal state. If
// called from the loop's own goroutine it runs fn inline immediately —
// mutual exclusion is already guaranteed by construction, and there is
// nothing to wait for. Otherwise it hands fn to the serial executor and
// blocks until it has run.
func (l *Loop) runOnSerial(fn func()) {
	if l.isLoopThread() {
		fn()
		return
	}
	done := make(chan struct{})
	l.cmds <- func() {
		fn()
		close(done)
	}
	<-done
}

// postOnSerial enqueues fn for later, asynchronous execution on the serial
// executor. Used for fire-and-forget mutations (task submission,
// cancellation) issued from outside the loop.
func (l *Loop) postOnSerial(fn func()) {
	l.cmds <- fn
}

// Now returns the current virtual time, as a duration since loop creation.
func (l *Loop) Now() time.Duration {
	return time.Duration(l.now.Load())
}

// State returns the loop's current lifecycle state.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// Execute is sugar for scheduling work at the current now: it runs on the
// next advancement, ordered after anything already due.
func (l *Loop) Execute(work func()) Scheduled {
	return l.ScheduleTaskAt(l.now.Load(), work)
}

// ScheduleTask enqueues work to run once virtual time reaches delay from
// now, reading now at call time.
func (l *Loop) ScheduleTask(delay time.Duration, work func()) Scheduled {
	return l.ScheduleTaskAt(l.now.Load()+int64(delay), work)
}

// ScheduleTaskAt enqueues work to run once virtual time reaches the given
// absolute deadline (a duration since loop creation).
func (l *Loop) ScheduleTaskAt(deadline int64, work func()) Scheduled {
	id := l.idCounter.Add(1)
	fut, prom := NewFuture[struct{}]()
	l.registry.track(id)

	t := &scheduledTask{
		id:        id,
		readyTime: deadline,
		work: func() {
			l.registry.untrack(id)
			work()
			prom.Resolve(struct{}{})
		},
		failHandler: func(err error) {
			l.registry.untrack(id)
			prom.Reject(err)
		},
	}

	push := func() {
		if !l.state.CanAcceptWork() {
			t.failHandler(ErrShutdown)
			return
		}
		t.insertOrder = l.taskCounter
		l.taskCounter++
		heap.Push(&l.queue, t)
	}

	if l.isLoopThread() {
		push()
	} else {
		l.postOnSerial(push)
	}

	cancel := func() {
		remove := func() {
			// Mark canceled unconditionally: a task already popped out of
			// the heap into an in-flight batch (advanceLocked) is no
			// longer reachable by removeByID, but the batch loop still
			// checks this flag before running it. Untrack regardless of
			// whether the heap still held it, since either way the task's
			// future is now never going to settle.
			t.canceled = true
			l.queue.removeByID(id)
			l.registry.untrack(id)
		}
		if l.isLoopThread() {
			remove()
		} else {
			l.postOnSerial(remove)
		}
	}

	return Scheduled{Future: fut, cancel: cancel}
}

// Run advances time to the current now, executing every task whose
// readyTime is already due. It never moves now forward.
func (l *Loop) Run() {
	l.runOnSerial(func() {
		l.advanceLocked(l.now.Load())
	})
}

// AdvanceTimeBy advances now by delta, executing due tasks in order. A
// negative delta is a complete no-op: unlike AdvanceTimeTo, it does not
// even run tasks already due at the current now.
func (l *Loop) AdvanceTimeBy(delta time.Duration) {
	if delta < 0 {
		return
	}
	l.runOnSerial(func() {
		l.advanceLocked(l.now.Load() + int64(delta))
	})
}

// AdvanceTimeTo advances now to t if t is after the current now, executing
// due tasks along the way. If t is not after now, now is left unchanged but
// any task with readyTime <= now still runs, and now can never move
// backward.
func (l *Loop) AdvanceTimeTo(t time.Duration) {
	l.runOnSerial(func() {
		l.advanceLocked(int64(t))
	})
}

// advanceLocked pops and runs every batch of same-deadline tasks with
// readyTime <= newTime, in ascending (readyTime, insertOrder) order, moving
// now to each batch's deadline before running it and to newTime once the
// queue is exhausted or empty. A task scheduled by another task's own work
// enters the heap mid-loop and is only picked up by a later iteration of
// this same loop, never the batch already popped. Must run on the serial
// executor.
func (l *Loop) advanceLocked(target int64) {
	l.state.TryTransition(StateAwake, StateRunning)

	newTime := target
	if now := l.now.Load(); now > newTime {
		newTime = now
	}

	for len(l.queue) > 0 && l.queue[0].readyTime <= newTime {
		due := l.queue[0].readyTime

		var batch []*scheduledTask
		for len(l.queue) > 0 && l.queue[0].readyTime == due {
			batch = append(batch, heap.Pop(&l.queue).(*scheduledTask))
		}

		l.now.Store(due)

		for _, t := range batch {
			if t.canceled {
				continue
			}
			l.safeRun(t.work)
		}
	}

	l.now.Store(newTime)
}

// ExecuteInContext runs work with the loop's exclusive access guarantee:
// no other scheduled task interleaves with it. If called from the loop's
// own goroutine (e.g. from inside another task) it runs inline, since that
// guarantee already holds; otherwise it round-trips through the serial
// executor.
func ExecuteInContext[R any](l *Loop, work func() R) R {
	var result R
	l.runOnSerial(func() {
		result = work()
	})
	return result
}

// AwaitFuture blocks the calling goroutine until f settles or timeout
// elapses, driving the loop forward with repeated Run calls in the
// meantime. It must not be called from the loop's own goroutine: nothing
// else could then ever advance the loop, so the wait would never complete.
// Grounded on the teacher's promise.AwaitFuture (eventloop/promise.go),
// which runs three concurrent sub-tasks — a forwarder that completes when f
// settles, a spinner that repeatedly calls Run, and a timeout — coordinated
// with golang.org/x/sync/errgroup.
func AwaitFuture[T any](l *Loop, f *Future[T], timeout time.Duration) (T, error) {
	var zero T
	if l.isLoopThread() {
		return zero, ErrUnsafeWait
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-f.Done():
			cancel()
			return nil
		case <-ctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// Run once more: f may have settled between the last tick
				// and cancellation, and this is the only remaining chance
				// to observe it before Get() below.
				l.Run()
				return nil
			case <-ticker.C:
				l.Run()
			}
		}
	})

	if timeout > 0 {
		g.Go(func() error {
			t := time.NewTimer(timeout)
			defer t.Stop()
			select {
			case <-t.C:
				cancel()
				return ErrTimeoutAwaitingFuture
			case <-ctx.Done():
				return nil
			}
		})
	}

	err := g.Wait()
	if f.IsPending() {
		if err == nil {
			err = ErrTimeoutAwaitingFuture
		}
		return zero, err
	}
	return f.Get()
}

// ShutdownGracefully transitions the loop to StateTerminating, drains every
// task already enqueued (running each in deadline order, advancing now
// accordingly), then transitions to StateTerminated. Any task submitted
// once draining has begun — whether from another goroutine or from a
// draining task's own work — observes its future rejected with
// ErrShutdown instead of running. In debug builds, it panics if any
// promise created during the loop's lifetime never settled.
func (l *Loop) ShutdownGracefully(ctx context.Context) error {
	// The transition runs on the serial executor so that every submission
	// already posted to it is pushed (and later drained) before the state
	// starts rejecting new work.
	var started bool
	l.runOnSerial(func() {
		started = l.state.TryTransition(StateAwake, StateTerminating) ||
			l.state.TryTransition(StateRunning, StateTerminating)
	})
	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		l.runOnSerial(func() {
			l.advanceLocked(math.MaxInt64)
		})
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.state.Store(StateTerminated)

	l.registry.assertEmpty()

	return nil
}

// goroutineID returns the numeric id of the calling goroutine, parsed from
// the runtime stack trace header. Used only for the loop-reentrancy check.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
