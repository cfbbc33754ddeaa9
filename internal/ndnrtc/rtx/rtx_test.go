package rtx

import (
	"testing"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/buffer"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/reqqueue"
)

type fakeDrd struct{ original, cached float64 }

func (f fakeDrd) GetOriginalEstimation() float64 { return f.original }
func (f fakeDrd) GetCachedEstimation() float64   { return f.cached }

type fakePlayback struct{ size, pending int64 }

func (f fakePlayback) Size(int64) int64  { return f.size }
func (f fakePlayback) PendingSize() int64 { return f.pending }

type fakeRequeuer struct{ requeued []*reqqueue.DataRequest }

func (f *fakeRequeuer) EnqueueHighPriority(req *reqqueue.DataRequest) {
	f.requeued = append(f.requeued, req)
}

func newSlot(class name.SampleClass) *buffer.Slot {
	pool := buffer.NewSlotPool()
	s := pool.Acquire()
	s.Info.SampleClassVal = class
	s.State = buffer.StateAssembling
	s.Requested = map[string]*reqqueue.DataRequest{
		"seg0": {Name: name.Name{name.Generic("seg0")}},
	}
	return s
}

func TestOnNewRequestKeyDeadlineUsesGopTimes(t *testing.T) {
	c := New(fakeDrd{original: 100, cached: 80}, fakePlayback{}, &fakeRequeuer{}, 30, 33, FeatureFlags{})
	s := newSlot(name.SampleKey)
	c.OnNewRequest(1000, s)
	if c.ActiveCount() != 1 {
		t.Fatalf("expected slot tracked")
	}
	if c.activeSlots[s].deadlineMs != 1000+30*33 {
		t.Fatalf("expected key deadline %d, got %d", 1000+30*33, c.activeSlots[s].deadlineMs)
	}
}

func TestSweepRetransmitsWhenDeadlineNearerThanMinDrd(t *testing.T) {
	requeuer := &fakeRequeuer{}
	c := New(fakeDrd{original: 100, cached: 80}, fakePlayback{size: 0, pending: 0}, requeuer, 30, 33, FeatureFlags{})
	s := newSlot(name.SampleDelta)
	c.OnNewRequest(1000, s) // deadline = 1000 (size+pending=0)

	c.OnNewData(1000, buffer.Receipt{})
	if len(requeuer.requeued) != 1 {
		t.Fatalf("expected 1 retransmission, got %d", len(requeuer.requeued))
	}
}

func TestSweepDropsReadySlotsFromActiveSet(t *testing.T) {
	requeuer := &fakeRequeuer{}
	c := New(fakeDrd{original: 100, cached: 80}, fakePlayback{}, requeuer, 30, 33, FeatureFlags{})
	s := newSlot(name.SampleDelta)
	c.OnNewRequest(1000, s)
	s.State = buffer.StateReady

	c.OnNewData(1000, buffer.Receipt{})
	if c.ActiveCount() != 0 {
		t.Fatalf("expected Ready slot dropped from active set")
	}
}

func TestSweepRetransmitsAtMostOncePerBreach(t *testing.T) {
	requeuer := &fakeRequeuer{}
	c := New(fakeDrd{original: 100, cached: 80}, fakePlayback{}, requeuer, 30, 33, FeatureFlags{})
	s := newSlot(name.SampleDelta)
	c.OnNewRequest(1000, s)

	c.OnNewData(1000, buffer.Receipt{})
	c.OnNewData(1000, buffer.Receipt{}) // same breach, should not retransmit again
	if len(requeuer.requeued) != 1 {
		t.Fatalf("expected exactly 1 retransmission across repeated sweeps of the same breach, got %d", len(requeuer.requeued))
	}
}

func TestSweepSkipsWhenDeadlineFarEnough(t *testing.T) {
	requeuer := &fakeRequeuer{}
	c := New(fakeDrd{original: 100, cached: 80}, fakePlayback{size: 1000, pending: 0}, requeuer, 30, 33, FeatureFlags{})
	s := newSlot(name.SampleDelta)
	c.OnNewRequest(0, s) // deadline = 1000, far from now=0

	c.OnNewData(0, buffer.Receipt{})
	if len(requeuer.requeued) != 0 {
		t.Fatalf("expected no retransmission when deadline is comfortably far, got %d", len(requeuer.requeued))
	}
}

func TestPeriodicTickOnlyFiresWhenFlagSet(t *testing.T) {
	requeuer := &fakeRequeuer{}
	c := New(fakeDrd{original: 100, cached: 80}, fakePlayback{}, requeuer, 30, 33, FeatureFlags{PeriodicTick: false})
	s := newSlot(name.SampleDelta)
	c.OnNewRequest(1000, s)

	c.Tick(1000)
	if len(requeuer.requeued) != 0 {
		t.Fatalf("expected Tick to no-op when PeriodicTick flag is unset")
	}

	c2 := New(fakeDrd{original: 100, cached: 80}, fakePlayback{}, requeuer, 30, 33, FeatureFlags{PeriodicTick: true})
	s2 := newSlot(name.SampleDelta)
	c2.OnNewRequest(1000, s2)
	c2.Tick(1000)
	if len(requeuer.requeued) != 1 {
		t.Fatalf("expected Tick to sweep when PeriodicTick flag is set")
	}
}
