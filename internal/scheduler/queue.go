package scheduler

import "container/heap"

type item struct {
	ev  Event
	seq uint64
}

// eventQueue is a min-heap on (time, enqueue order).
type eventQueue []item

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if ti, tj := q[i].ev.Time(), q[j].ev.Time(); ti != tj {
		return ti < tj
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)   { *q = append(*q, x.(item)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = item{}
	*q = old[:n-1]
	return it
}

func (q eventQueue) peek() Event { return q[0].ev }

func (q *eventQueue) push(ev Event, seq uint64) { heap.Push(q, item{ev: ev, seq: seq}) }
func (q *eventQueue) pop() Event                { return heap.Pop(q).(item).ev }
