package playback

import (
	"testing"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/buffer"
)

func readySlot() *buffer.Slot {
	pool := buffer.NewSlotPool()
	s := pool.Acquire()
	s.State = buffer.StateReady
	return s
}

func TestPushOrdersByPublishTimestamp(t *testing.T) {
	q := New(33)
	s1, s2, s3 := readySlot(), readySlot(), readySlot()
	q.Push(s2, 200)
	q.Push(s1, 100)
	q.Push(s3, 300)

	var order []*buffer.Slot
	for q.Len() > 0 {
		q.Pop(func(slot *buffer.Slot, _ int64) { order = append(order, slot) })
	}
	if len(order) != 3 || order[0] != s1 || order[1] != s2 || order[2] != s3 {
		t.Fatalf("expected pop order s1,s2,s3")
	}
}

func TestPopComputesPlayTimeAsGapToNext(t *testing.T) {
	q := New(33)
	s1, s2 := readySlot(), readySlot()
	q.Push(s1, 100)
	q.Push(s2, 175)

	var gotPlayTime int64
	q.Pop(func(_ *buffer.Slot, playTimeMs int64) { gotPlayTime = playTimeMs })
	if gotPlayTime != 75 {
		t.Fatalf("expected playTime 75 (gap to next), got %d", gotPlayTime)
	}
}

func TestPopUsesSamplePeriodWhenQueueBecomesEmpty(t *testing.T) {
	q := New(33)
	s1 := readySlot()
	q.Push(s1, 100)

	var gotPlayTime int64
	q.Pop(func(_ *buffer.Slot, playTimeMs int64) { gotPlayTime = playTimeMs })
	if gotPlayTime != 33 {
		t.Fatalf("expected nominal sample period 33 when queue empties, got %d", gotPlayTime)
	}
}

func TestPopLocksSlotDuringExtraction(t *testing.T) {
	q := New(33)
	s1 := readySlot()
	q.Push(s1, 100)

	var stateDuringExtract buffer.State
	q.Pop(func(slot *buffer.Slot, _ int64) { stateDuringExtract = slot.State })
	if stateDuringExtract != buffer.StateLocked {
		t.Fatalf("expected slot Locked during extraction, got %v", stateDuringExtract)
	}
}

func TestSizeSumsGapsAcrossReadySlots(t *testing.T) {
	q := New(33)
	q.Push(readySlot(), 1100)
	q.Push(readySlot(), 1200)
	q.Push(readySlot(), 1350)

	got := q.Size(1000)
	want := int64(100 + 100 + 150)
	if got != want {
		t.Fatalf("expected size %d, got %d", want, got)
	}
}

func TestPendingSizeRoundTrip(t *testing.T) {
	q := New(33)
	q.SetPendingMs(99)
	if got := q.PendingSize(); got != 99 {
		t.Fatalf("expected pending size 99, got %d", got)
	}
}

func TestPopOnEmptyQueueReturnsFalse(t *testing.T) {
	q := New(33)
	if q.Pop(func(*buffer.Slot, int64) {}) {
		t.Fatalf("expected Pop to return false on empty queue")
	}
}
