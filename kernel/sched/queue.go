package sched

import "container/heap"

// Queue is a wait queue of execution contexts. Implementations are not safe
// for concurrent use; the owning object serializes access.
type Queue interface {
	Push(*EC)
	Pop() *EC
	Len() int
}

// FIFOQueue releases waiters in arrival order.
type FIFOQueue struct {
	items []*EC
}

// Push appends ec to the queue.
func (q *FIFOQueue) Push(ec *EC) {
	q.items = append(q.items, ec)
}

// Pop removes and returns the oldest waiter or nil if the queue is empty.
func (q *FIFOQueue) Pop() *EC {
	if len(q.items) == 0 {
		return nil
	}

	ec := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return ec
}

// Len returns the number of queued waiters.
func (q *FIFOQueue) Len() int { return len(q.items) }

// PrioQueue releases the waiter with the highest priority first. Waiters with
// equal priority are released in arrival order.
type PrioQueue struct {
	h   prioHeap
	seq uint64
}

type prioItem struct {
	ec  *EC
	seq uint64
}

type prioHeap []prioItem

func (h prioHeap) Len() int { return len(h) }
func (h prioHeap) Less(i, j int) bool {
	if h[i].ec.prio != h[j].ec.prio {
		return h[i].ec.prio > h[j].ec.prio
	}
	return h[i].seq < h[j].seq
}
func (h prioHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *prioHeap) Push(x interface{}) { *h = append(*h, x.(prioItem)) }
func (h *prioHeap) Pop() interface{} {
	old := *h
	item := old[len(old)-1]
	*h = old[:len(old)-1]
	return item
}

// Push adds ec to the queue.
func (q *PrioQueue) Push(ec *EC) {
	q.seq++
	heap.Push(&q.h, prioItem{ec: ec, seq: q.seq})
}

// Pop removes and returns the highest priority waiter or nil if the queue is
// empty.
func (q *PrioQueue) Pop() *EC {
	if q.h.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.h).(prioItem).ec
}

// Len returns the number of queued waiters.
func (q *PrioQueue) Len() int { return q.h.Len() }
