package virtualtime

import "container/heap"

// scheduledTask is the concrete record behind the public Scheduled handle:
// id, readyTime (ns since loop creation), insertOrder (the FIFO tie-break
// assigned under the serial executor), work, and failHandler (invoked with
// ErrShutdown if the task is submitted once shutdown has begun).
type scheduledTask struct {
	id          uint64
	readyTime   int64
	insertOrder uint64
	work        func()
	failHandler func(error)
	canceled    bool
}

// taskHeap is a min-heap ordered by (readyTime, insertOrder), the total
// order deterministic scheduling requires. Grounded on the teacher's
// timerHeap (eventloop/loop.go), generalized from a single time.Time field
// to the two-key comparison virtual scheduling needs.
type taskHeap []*scheduledTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].readyTime != h[j].readyTime {
		return h[i].readyTime < h[j].readyTime
	}
	return h[i].insertOrder < h[j].insertOrder
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*scheduledTask))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// removeByID scans for and removes the task with the given id. O(n), which
// is acceptable because cancellations are rare relative to executions.
// Returns true if a task was found and removed.
func (h *taskHeap) removeByID(id uint64) bool {
	for i, t := range *h {
		if t.id == id {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}
