package virtualtime

import "sync/atomic"

// LoopState is the lifecycle state of a Loop. Grounded on the teacher's
// eventloop.LoopState/FastState (eventloop/state.go), trimmed of the
// Sleeping state: a virtual-time loop never blocks in a real I/O poll, so
// there is nothing to be "asleep" waiting on. Awake means "constructed, not
// yet run"; Running covers both "currently advancing" and "idle between
// advances" since both are driven synchronously by the caller.
type LoopState uint32

const (
	// StateAwake indicates the loop has been created but Run/AdvanceTime
	// has never been called.
	StateAwake LoopState = iota
	// StateRunning indicates Run/AdvanceTime has been called at least once
	// and the loop is available to accept further work.
	StateRunning
	// StateTerminating indicates ShutdownGracefully has been called and the
	// loop is draining previously-enqueued tasks.
	StateTerminating
	// StateTerminated indicates shutdown has completed; the loop accepts no
	// further work.
	StateTerminated
)

func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free loop-state holder, mirroring the CAS discipline
// of eventloop.FastState: temporary states transition via TryTransition,
// the terminal state is set with Store.
type fastState struct {
	v atomic.Uint32
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint32(StateAwake))
	return s
}

func (s *fastState) Load() LoopState {
	return LoopState(s.v.Load())
}

func (s *fastState) Store(state LoopState) {
	s.v.Store(uint32(state))
}

func (s *fastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// CanAcceptWork reports whether a task submitted right now would actually
// be queued rather than immediately rejected with ErrShutdown: true for
// StateAwake/StateRunning, false once draining has begun or finished.
func (s *fastState) CanAcceptWork() bool {
	switch s.Load() {
	case StateAwake, StateRunning:
		return true
	default:
		return false
	}
}
