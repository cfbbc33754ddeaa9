// Package decode implements the Decode Queue (spec.md §4.12): a bounded
// ring of already-decoded images keyed by their original sample sequence
// number, supporting both forward and reverse playback.
package decode

import (
	"sync"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/buffer"
)

// Decoder turns an assembled frame slot's payload into an Image. Returning
// an error drops the push (the slot is skipped rather than rendered).
type Decoder interface {
	Decode(slot *buffer.Slot) (Image, error)
}

// Image is a non-owning decoded-frame view; the zero value is "no image".
type Image struct {
	SampleNo uint64
	Width    int
	Height   int
	Pixels   []byte
}

func (img Image) Empty() bool { return img.Pixels == nil }

// Queue is the bounded, sequence-ordered ring described in spec.md §4.12.
// Capacity is typically 3xGOP so reverse playback can keep at least one GOP
// in memory.
type Queue struct {
	mu       sync.Mutex
	decoder  Decoder
	capacity int

	entries []Image // ordered by ascending SampleNo, oldest first
	cursor  int     // index into entries of the "current" image
	hasCursor bool
}

func New(decoder Decoder, capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{decoder: decoder, capacity: capacity}
}

// Push decodes slot's payload and inserts it in sequence order. If the ring
// is at capacity the oldest entry is evicted first. A decode error is
// returned and nothing is inserted.
func (q *Queue) Push(slot *buffer.Slot) error {
	img, err := q.decoder.Decode(slot)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	insertAt := len(q.entries)
	for i, e := range q.entries {
		if img.SampleNo < e.SampleNo {
			insertAt = i
			break
		}
		if img.SampleNo == e.SampleNo {
			q.entries[i] = img
			return nil
		}
	}
	q.entries = append(q.entries, Image{})
	copy(q.entries[insertAt+1:], q.entries[insertAt:])
	q.entries[insertAt] = img

	if insertAt <= q.cursor {
		q.cursor++
	}
	if !q.hasCursor {
		q.cursor = insertAt
		q.hasCursor = true
	}

	if len(q.entries) > q.capacity {
		q.entries = q.entries[1:]
		q.cursor--
		if q.cursor < 0 {
			q.cursor = 0
		}
	}
	return nil
}

// Seek advances the cursor by +/-delta, returning the delta actually
// achieved (0 if the cursor is already at an edge in that direction).
func (q *Queue) Seek(delta int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.hasCursor || len(q.entries) == 0 {
		return 0
	}
	target := q.cursor + delta
	if target < 0 {
		target = 0
	}
	if target > len(q.entries)-1 {
		target = len(q.entries) - 1
	}
	achieved := target - q.cursor
	q.cursor = target
	return achieved
}

// Get returns the image at cursor+skip, or an empty Image if out of range.
func (q *Queue) Get(skip int) Image {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.hasCursor {
		return Image{}
	}
	idx := q.cursor + skip
	if idx < 0 || idx >= len(q.entries) {
		return Image{}
	}
	return q.entries[idx]
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
