package reqqueue

import (
	"container/heap"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/clock"
)

// DeadlinePriority orders entries by enqueueTimestamp + arrivalDelay; lower
// deadline sorts first, ties broken by insertion order (spec.md §4.3).
type DeadlinePriority struct {
	DeadlineUs int64
	seq        int64
}

func FromNow(nowUs int64, arrivalDelayUs int64) DeadlinePriority {
	return DeadlinePriority{DeadlineUs: nowUs + arrivalDelayUs}
}

// Expresser sends an Interest for a DataRequest on the face executor,
// installing callbacks that land back on the face executor queue. Outcomes
// are reported via req.setStatus from inside the face adapter.
type Expresser interface {
	Express(req *DataRequest) error
}

type entry struct {
	req      *DataRequest
	priority DeadlinePriority
	index    int
}

type heapImpl []*entry

func (h heapImpl) Len() int { return len(h) }
func (h heapImpl) Less(i, j int) bool {
	if h[i].priority.DeadlineUs != h[j].priority.DeadlineUs {
		return h[i].priority.DeadlineUs < h[j].priority.DeadlineUs
	}
	return h[i].priority.seq < h[j].priority.seq
}
func (h heapImpl) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *heapImpl) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *heapImpl) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Queue is the Interest Request Queue: a priority queue of DataRequests
// drained opportunistically onto the face executor.
type Queue struct {
	h         heapImpl
	expresser Expresser
	clock     clock.Clock
	seqCount  int64
}

func New(expresser Expresser, c clock.Clock) *Queue {
	return &Queue{expresser: expresser, clock: c}
}

// Enqueue adds req at the given priority and immediately drains the queue.
func (q *Queue) Enqueue(req *DataRequest, priority DeadlinePriority) {
	priority.seq = q.seqCount
	q.seqCount++
	heap.Push(&q.h, &entry{req: req, priority: priority})
	q.Drain()
}

// EnqueueHighPriority jumps req to the front of the queue, used by the
// retransmission controller (spec.md §4.8).
func (q *Queue) EnqueueHighPriority(req *DataRequest) {
	heap.Push(&q.h, &entry{req: req, priority: DeadlinePriority{DeadlineUs: -1, seq: q.seqCount}})
	q.seqCount++
	q.Drain()
}

// Drain repeatedly pops the front entry and expresses it until the queue is
// empty. Dispatch order equals priority order.
func (q *Queue) Drain() {
	for q.h.Len() > 0 {
		e := heap.Pop(&q.h).(*entry)
		req := e.req
		req.RequestTsUs = q.clock.NowUs()
		if err := q.expresser.Express(req); err != nil {
			req.setStatus(StatusTimeout)
			continue
		}
		req.setStatus(StatusExpressed)
	}
}

// Reset drops all pending entries without firing status events.
func (q *Queue) Reset() {
	q.h = nil
}

func (q *Queue) Len() int { return q.h.Len() }
