package sound

import "sync"

// stoppedQueue is a FIFO of instance ids filled by runtime goroutines and
// drained by the update goroutine.
type stoppedQueue struct {
	mu    sync.Mutex
	items []InstanceID
}

func (q *stoppedQueue) push(id InstanceID) {
	if q == nil {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()
}

// drain returns all queued ids and clears the queue.
func (q *stoppedQueue) drain() []InstanceID {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

func (q *stoppedQueue) len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
