package virtualtime

import "github.com/cockroachdb/errors"

// Sentinel error values for the loop: callers compare with errors.Is, and
// wrapped variants produced at package boundaries (via errors.Wrapf) still
// satisfy that comparison.
var (
	// ErrTimeoutAwaitingFuture is returned by AwaitFuture when the source
	// future does not settle before the supplied timeout elapses.
	ErrTimeoutAwaitingFuture = errors.New("virtualtime: timeout awaiting future")

	// ErrShutdown is the failure reason given to tasks (and the futures of
	// tasks) that are submitted to a loop that is draining during, or has
	// finished, ShutdownGracefully.
	ErrShutdown = errors.New("virtualtime: loop is shutting down")

	// ErrLoopTerminated is returned by operations attempted after a loop
	// has completed shutdown.
	ErrLoopTerminated = errors.New("virtualtime: loop has terminated")

	// ErrUnsafeWait is a programmer-error signal returned when AwaitFuture
	// is invoked from a goroutine that is, itself, running on the loop's
	// serial executor. Waiting on the loop from the loop deadlocks by
	// construction.
	ErrUnsafeWait = errors.New("virtualtime: cannot wait on the loop from the loop")
)
