package daemon

import "container/heap"

// messageHeap orders messages by ascending Priority. Ties between equal
// priorities resolve in heap order, not FIFO; callers must not rely on
// arrival order among equal priorities.
type messageHeap[T any] []Message[T]

func (h messageHeap[T]) Len() int           { return len(h) }
func (h messageHeap[T]) Less(i, j int) bool { return h[i].Priority < h[j].Priority }
func (h messageHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *messageHeap[T]) Push(x any) {
	*h = append(*h, x.(Message[T]))
}

func (h *messageHeap[T]) Pop() any {
	old := *h
	n := len(old)
	msg := old[n-1]
	*h = old[:n-1]
	return msg
}

// queue is the daemon's priority store. It is not synchronized; every
// call happens under the daemon's mutex.
type queue[T any] struct {
	heap messageHeap[T]
}

func (q *queue[T]) push(msg Message[T]) {
	heap.Push(&q.heap, msg)
}

// pop returns the lowest-priority-value message, or ok=false on an empty
// queue. It never blocks; waiting is the daemon's job, not the queue's.
func (q *queue[T]) pop() (Message[T], bool) {
	if len(q.heap) == 0 {
		var zero Message[T]
		return zero, false
	}
	return heap.Pop(&q.heap).(Message[T]), true
}

func (q *queue[T]) len() int { return len(q.heap) }
