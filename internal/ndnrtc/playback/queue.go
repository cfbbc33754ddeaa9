// Package playback implements the Playback Queue (spec.md §4.6): orders
// Ready slots by publishTimestampMs and hands them to the playout extractor.
package playback

import (
	"sort"
	"sync"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/buffer"
)

// Entry pairs a Ready slot with the publish timestamp used for ordering.
type Entry struct {
	Slot              *buffer.Slot
	PublishTimestampMs int64
}

// Extractor is invoked on the head entry by Pop; it returns transferring
// the slot to Locked for the duration of the call.
type Extractor func(slot *buffer.Slot, playTimeMs int64)

// Queue orders Ready slots by publishTimestampMs (spec.md §4.6). It is
// touched from both the face executor (push on Buffer's onNewData) and the
// renderer executor (Pop from the playout extractor); the spec's recursive
// mutex is adapted to a plain sync.Mutex with no public method calling
// another while holding the lock.
type Queue struct {
	mu             sync.Mutex
	entries        []Entry
	samplePeriodMs int64
	pendingMs      int64
}

func New(samplePeriodMs int64) *Queue {
	return &Queue{samplePeriodMs: samplePeriodMs}
}

// Push inserts a newly Ready slot, keeping entries sorted by
// publishTimestampMs (ties broken by insertion order: stable sort).
func (q *Queue) Push(slot *buffer.Slot, publishTimestampMs int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, Entry{Slot: slot, PublishTimestampMs: publishTimestampMs})
	sort.SliceStable(q.entries, func(i, j int) bool {
		return q.entries[i].PublishTimestampMs < q.entries[j].PublishTimestampMs
	})
}

// Pop invokes extract(slot, playTimeMs) on the head slot (which transitions
// to Locked for the call's duration), computes playTimeMs as the gap to the
// next slot's timestamp (or the nominal sample period if empty). The slot
// stays Locked after extract returns; Pop does not release it to the Buffer
// or the slot pool. The parameter is the literal function type
// (not Extractor) so *Queue satisfies playout.Queue's Pop signature exactly.
func (q *Queue) Pop(extract func(slot *buffer.Slot, playTimeMs int64)) bool {
	q.mu.Lock()
	if len(q.entries) == 0 {
		q.mu.Unlock()
		return false
	}
	head := q.entries[0]
	q.entries = q.entries[1:]

	var playTimeMs int64
	if len(q.entries) > 0 {
		playTimeMs = q.entries[0].PublishTimestampMs - head.PublishTimestampMs
	} else {
		playTimeMs = q.samplePeriodMs
	}
	head.Slot.State = buffer.StateLocked
	q.mu.Unlock()

	extract(head.Slot, playTimeMs)
	return true
}

// Size returns the playable duration in ms: the gap from now to the head's
// publish timestamp, plus the sum of gaps between subsequent ready slots.
func (q *Queue) Size(nowMs int64) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return 0
	}
	total := q.entries[0].PublishTimestampMs - nowMs
	if total < 0 {
		total = 0
	}
	for i := 1; i < len(q.entries); i++ {
		total += q.entries[i].PublishTimestampMs - q.entries[i-1].PublishTimestampMs
	}
	return total
}

// PendingSize adds the expected duration of outstanding (pre-Ready) slots,
// tracked via SetPendingMs by the caller (the FSM/Pipeliner knows how many
// samples are outstanding and the nominal sample period).
func (q *Queue) PendingSize() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingMs
}

func (q *Queue) SetPendingMs(ms int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pendingMs = ms
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// SamplePeriodMs returns the nominal inter-sample period used as the
// fallback playTimeMs when Pop empties the queue.
func (q *Queue) SamplePeriodMs() int64 { return q.samplePeriodMs }
