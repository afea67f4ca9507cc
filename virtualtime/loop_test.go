package virtualtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_ExecuteRunsOnNextRun(t *testing.T) {
	l := NewLoop()
	var ran bool
	l.Execute(func() { ran = true })
	assert.False(t, ran, "Execute must not run inline")
	l.Run()
	assert.True(t, ran)
}

func TestLoop_DeterministicOrdering(t *testing.T) {
	l := NewLoop()
	var order []string
	var mu sync.Mutex
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	l.ScheduleTask(2*time.Millisecond, record("C"))
	l.ScheduleTask(0, record("A"))
	l.ScheduleTask(1*time.Millisecond, record("B"))

	l.AdvanceTimeBy(5 * time.Millisecond)

	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestLoop_SameDeadlineFIFO(t *testing.T) {
	l := NewLoop()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		l.ScheduleTaskAt(10, func() { order = append(order, i) })
	}
	l.AdvanceTimeBy(10)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLoop_NowIsMonotonic(t *testing.T) {
	l := NewLoop()
	l.ScheduleTaskAt(100, func() {})
	l.AdvanceTimeBy(100)
	assert.Equal(t, 100*time.Nanosecond, l.Now())

	// AdvanceTimeTo with a smaller target never moves now backward.
	l.AdvanceTimeTo(10)
	assert.Equal(t, 100*time.Nanosecond, l.Now())
}

func TestLoop_AdvanceTimeByNegativeIsNoOp(t *testing.T) {
	l := NewLoop()
	var ran bool
	l.Execute(func() { ran = true })
	l.AdvanceTimeBy(-1)
	assert.False(t, ran)
	assert.Equal(t, time.Duration(0), l.Now())
}

func TestLoop_AdvanceTimeToRunsDueTasksWithoutMovingNowBackward(t *testing.T) {
	l := NewLoop()
	l.AdvanceTimeBy(50)
	var ran bool
	l.Execute(func() { ran = true })

	l.AdvanceTimeTo(10) // less than current now (50)
	assert.True(t, ran, "AdvanceTimeTo must still run already-due tasks")
	assert.Equal(t, 50*time.Nanosecond, l.Now())
}

func TestLoop_CancelPreventsExecution(t *testing.T) {
	l := NewLoop()
	var ran bool
	s := l.ScheduleTask(time.Millisecond, func() { ran = true })
	s.Cancel()
	l.AdvanceTimeBy(time.Second)
	assert.False(t, ran)
	assert.True(t, s.Future.IsPending(), "cancellation must not settle the future")
}

func TestLoop_TaskEnqueuedDuringBatchWaitsForNextIteration(t *testing.T) {
	l := NewLoop()
	var order []string
	l.ScheduleTaskAt(0, func() {
		order = append(order, "first")
		l.ScheduleTaskAt(0, func() {
			order = append(order, "nested")
		})
	})
	l.ScheduleTaskAt(0, func() {
		order = append(order, "second")
	})

	l.AdvanceTimeBy(0)

	assert.Equal(t, []string{"first", "second", "nested"}, order)
}

func TestLoop_ShutdownGracefullyDrainsAndFailsLateSubmissions(t *testing.T) {
	l := NewLoop()
	var ranOrder []int
	for i := 0; i < 3; i++ {
		i := i
		l.ScheduleTaskAt(int64(i), func() { ranOrder = append(ranOrder, i) })
	}

	// Scheduled from within a task running during the drain: state is
	// already StateTerminating by the time any drained task executes, so
	// this must be rejected rather than run, even though it is submitted
	// from the loop's own goroutine.
	var duringDrain Scheduled
	l.ScheduleTaskAt(1, func() {
		duringDrain = l.ScheduleTask(0, func() {})
	})

	err := l.ShutdownGracefully(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, ranOrder)
	assert.True(t, l.Now() >= 2)
	assert.Equal(t, StateTerminated, l.State())

	_, lateErr := duringDrain.Future.Get()
	assert.ErrorIs(t, lateErr, ErrShutdown)

	afterShutdown := l.ScheduleTask(0, func() {})
	<-afterShutdown.Future.Done()
	_, err2 := afterShutdown.Future.Get()
	assert.ErrorIs(t, err2, ErrShutdown)
}

func TestLoop_ScheduledTaskFutureResolvesOnRun(t *testing.T) {
	l := NewLoop()
	s := l.ScheduleTask(0, func() {})
	l.Run()
	<-s.Future.Done()
	_, err := s.Future.Get()
	assert.NoError(t, err)
}

func TestAwaitFuture_ResolvesWhileLoopIsDrivenConcurrently(t *testing.T) {
	l := NewLoop()
	s := l.ScheduleTask(5*time.Millisecond, func() {})

	go func() {
		for i := 0; i < 20; i++ {
			time.Sleep(time.Millisecond)
			l.AdvanceTimeBy(time.Millisecond)
		}
	}()

	_, err := AwaitFuture(l, s.Future, 2*time.Second)
	assert.NoError(t, err)
}

func TestAwaitFuture_TimesOut(t *testing.T) {
	l := NewLoop()
	s := l.ScheduleTask(time.Hour, func() {})
	_, err := AwaitFuture(l, s.Future, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeoutAwaitingFuture)
}

func TestAwaitFuture_FromLoopThreadIsRejected(t *testing.T) {
	l := NewLoop()
	resultCh := make(chan error, 1)
	l.Execute(func() {
		other, _ := NewFuture[int]()
		_, err := AwaitFuture(l, other, time.Second)
		resultCh <- err
	})
	l.Run()
	select {
	case err := <-resultCh:
		assert.ErrorIs(t, err, ErrUnsafeWait)
	case <-time.After(time.Second):
		t.Fatal("work never ran")
	}
}

func TestExecuteInContext_RunsExclusively(t *testing.T) {
	l := NewLoop()
	result := ExecuteInContext(l, func() int { return 99 })
	assert.Equal(t, 99, result)
}
