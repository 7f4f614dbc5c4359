package reminder

import (
	"container/heap"
	"time"
)

// entry is one pending reminder.
type entry struct {
	taskID int64
	fireAt time.Time
	due    time.Time
	token  string
	index  int
}

// queue is a min-heap of entries ordered by fireAt.
type queue []*entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].fireAt.Equal(q[j].fireAt) {
		return q[i].taskID < q[j].taskID
	}
	return q[i].fireAt.Before(q[j].fireAt)
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

func (q *queue) push(e *entry) { heap.Push(q, e) }

func (q *queue) remove(e *entry) {
	if e.index >= 0 && e.index < len(*q) && (*q)[e.index] == e {
		heap.Remove(q, e.index)
	}
}

func (q queue) peek() *entry {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

func (q *queue) pop() *entry { return heap.Pop(q).(*entry) }
