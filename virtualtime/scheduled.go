package virtualtime

// Scheduled is the handle returned by Loop.ScheduleTask: a future for the
// task's own result (distinct from whatever the task's work closure
// produces directly — Go's type system makes a single generic result
// awkward for a heterogeneous work queue, so Scheduled carries a
// Future[struct{}] that settles when the task runs or is rejected by a
// shutting-down loop) plus a Cancel operation.
type Scheduled struct {
	// Future settles with a nil result once the task has executed, or
	// fails with ErrShutdown if the task was submitted after
	// ShutdownGracefully began. It never settles if the task is cancelled before
	// running — cancellation does not automatically fail the associated
	// future.
	Future *Future[struct{}]

	cancel func()
}

// Cancel removes the task from the loop's queue by id. It is a no-op if
// the task has already run or does not exist. Safe to call from any
// goroutine; if called from outside the loop's serial executor, the
// removal is posted there and happens asynchronously but before any
// later-submitted work runs.
func (s Scheduled) Cancel() {
	s.cancel()
}
