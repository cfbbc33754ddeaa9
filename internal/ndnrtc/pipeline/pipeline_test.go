package pipeline

import (
	"testing"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/buffer"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/pipelinectl"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/reqqueue"
)

type fakeEstimator struct{ nData, nParity int }

func (f fakeEstimator) ExpectedSegments(name.SampleClass) (int, int) { return f.nData, f.nParity }

type fakeEnqueuer struct{ enqueued []*reqqueue.DataRequest }

func (f *fakeEnqueuer) Enqueue(req *reqqueue.DataRequest, _ reqqueue.DeadlinePriority) {
	f.enqueued = append(f.enqueued, req)
}

type fakeBufPlaceholder struct{ called bool }

func (f *fakeBufPlaceholder) Requested(reqs []*reqqueue.DataRequest) (*buffer.Slot, error) {
	f.called = true
	return nil, nil
}

func newTestPipeliner(nData, nParity int, enq *fakeEnqueuer, useFEC bool) *Pipeliner {
	nonce := uint32(0)
	return New(fakeEstimator{nData: nData, nParity: nParity}, enq, &fakeBufPlaceholder{},
		name.Name{name.Generic("client")}, 1, name.StreamVideo, "camera", 1, "hi",
		func() int64 { return 0 },
		func() uint32 { nonce++; return nonce },
		WithFEC(useFEC))
}

func TestExpressNextBatchSizesFromEstimator(t *testing.T) {
	enq := &fakeEnqueuer{}
	p := newTestPipeliner(4, 2, enq, true)
	reqs := p.ExpressNextBatch()
	if len(reqs) != 7 {
		t.Fatalf("expected 4 data + 2 parity + 1 manifest = 7 requests, got %d", len(reqs))
	}
	if len(enq.enqueued) != 7 {
		t.Fatalf("expected 7 enqueued requests, got %d", len(enq.enqueued))
	}
}

func TestExpressNextBatchWithoutFECSkipsParity(t *testing.T) {
	enq := &fakeEnqueuer{}
	p := newTestPipeliner(4, 2, enq, false)
	reqs := p.ExpressNextBatch()
	if len(reqs) != 5 {
		t.Fatalf("expected 4 data + 1 manifest = 5 requests, got %d", len(reqs))
	}
}

func TestExpressNextBatchAdvancesSampleNo(t *testing.T) {
	enq := &fakeEnqueuer{}
	p := newTestPipeliner(1, 0, enq, false)
	p.SetNextSampleNo(5)
	p.ExpressNextBatch()
	if p.NextSampleNo() != 6 {
		t.Fatalf("expected next sample number 6 after batch, got %d", p.NextSampleNo())
	}
}

func TestExpressRightmostHasNoSegmentComponent(t *testing.T) {
	enq := &fakeEnqueuer{}
	p := newTestPipeliner(1, 0, enq, false)
	req := p.ExpressRightmost()
	info, err := name.Extract(req.Name)
	if err != nil {
		t.Fatalf("expected rightmost name to parse as a thread-level prefix, got %v", err)
	}
	if info.HasSegNo || info.HasSeqNo {
		t.Fatalf("expected rightmost name %s to carry no sample or segment component", req.Name)
	}
}

func fsmHarness(isVideo bool) (*FSM, *fakeEnqueuer) {
	enq := &fakeEnqueuer{}
	p := newTestPipeliner(1, 0, enq, false)
	ic := pipelinectl.NewInterestControl()
	lc := pipelinectl.NewLatencyControl(nil, 1, 2, 1)
	f := NewFSM(p, ic, lc, isVideo, func() int64 { return 0 })
	return f, enq
}

func TestFSMStartGoesToWaitForRightmost(t *testing.T) {
	f, enq := fsmHarness(true)
	f.Start()
	if f.State() != StateWaitForRightmost {
		t.Fatalf("expected WaitForRightmost, got %v", f.State())
	}
	if len(enq.enqueued) != 1 {
		t.Fatalf("expected rightmost Interest enqueued")
	}
}

func TestFSMSegmentInWaitForRightmostGoesToWaitForInitialThenChasing(t *testing.T) {
	f, _ := fsmHarness(true)
	f.Start()
	f.OnSegment(name.Info{SampleNo: 10, SampleClassVal: name.SampleKey}, pipelinectl.KeepPipeline)
	if f.State() != StateWaitForInitial {
		t.Fatalf("expected WaitForInitial, got %v", f.State())
	}
	f.OnSegment(name.Info{SampleNo: 11, SampleClassVal: name.SampleKey}, pipelinectl.KeepPipeline)
	if f.State() != StateChasing {
		t.Fatalf("expected Chasing, got %v", f.State())
	}
}

func TestFSMDecreaseInChasingGoesToAdjusting(t *testing.T) {
	f, _ := fsmHarness(true)
	f.Start()
	f.OnSegment(name.Info{SampleNo: 10}, pipelinectl.KeepPipeline)  // -> WaitForInitial
	f.OnSegment(name.Info{SampleNo: 11}, pipelinectl.KeepPipeline)  // -> Chasing
	f.OnSegment(name.Info{SampleNo: 12}, pipelinectl.DecreasePipeline)
	if f.State() != StateAdjusting {
		t.Fatalf("expected Adjusting, got %v", f.State())
	}
}

func TestFSMIncreaseInAdjustingGoesToFetching(t *testing.T) {
	f, _ := fsmHarness(true)
	f.Start()
	f.OnSegment(name.Info{SampleNo: 10}, pipelinectl.KeepPipeline)
	f.OnSegment(name.Info{SampleNo: 11}, pipelinectl.KeepPipeline)
	f.OnSegment(name.Info{SampleNo: 12}, pipelinectl.DecreasePipeline)
	f.OnSegment(name.Info{SampleNo: 13}, pipelinectl.IncreasePipeline)
	if f.State() != StateFetching {
		t.Fatalf("expected Fetching, got %v", f.State())
	}
}

func TestFSMIncreaseInFetchingGoesBackToAdjusting(t *testing.T) {
	f, _ := fsmHarness(true)
	f.Start()
	f.OnSegment(name.Info{SampleNo: 10}, pipelinectl.KeepPipeline)
	f.OnSegment(name.Info{SampleNo: 11}, pipelinectl.KeepPipeline)
	f.OnSegment(name.Info{SampleNo: 12}, pipelinectl.DecreasePipeline)
	f.OnSegment(name.Info{SampleNo: 13}, pipelinectl.IncreasePipeline)
	f.OnSegment(name.Info{SampleNo: 14}, pipelinectl.IncreasePipeline)
	if f.State() != StateAdjusting {
		t.Fatalf("expected catch-up-lost transition back to Adjusting, got %v", f.State())
	}
}

func TestFSMTimeoutInWaitForInitialResetsAfterThreeTimeouts(t *testing.T) {
	f, _ := fsmHarness(true)
	f.Start()
	f.OnSegment(name.Info{SampleNo: 10}, pipelinectl.KeepPipeline) // -> WaitForInitial
	f.OnTimeout()
	f.OnTimeout()
	if f.State() != StateWaitForInitial {
		t.Fatalf("expected to remain in WaitForInitial before 3rd timeout, got %v", f.State())
	}
	f.OnTimeout()
	if f.State() != StateIdle {
		t.Fatalf("expected Idle after 3rd timeout, got %v", f.State())
	}
}

func TestFSMStarvationFromChasingResetsAndRestarts(t *testing.T) {
	f, _ := fsmHarness(true)
	f.Start()
	f.OnSegment(name.Info{SampleNo: 10}, pipelinectl.KeepPipeline)
	f.OnSegment(name.Info{SampleNo: 11}, pipelinectl.KeepPipeline)
	f.OnStarvation()
	if f.State() != StateWaitForRightmost {
		t.Fatalf("expected starvation to Reset then Start back into WaitForRightmost, got %v", f.State())
	}
}

func TestFSMLatchSuppressesStaleSegmentsAfterReset(t *testing.T) {
	f, _ := fsmHarness(true)
	f.Start()
	f.OnSegment(name.Info{SampleNo: 10}, pipelinectl.KeepPipeline)
	f.pipeliner.SetNextSampleNo(20)
	f.Reset() // latch deltaSeq = 20
	f.Start()

	before := f.State()
	f.OnSegment(name.Info{SampleNo: 15, SampleClassVal: name.SampleDelta}, pipelinectl.KeepPipeline)
	if f.State() != before {
		t.Fatalf("expected stale segment (seq 15 < latch 20) to be ignored, state changed to %v", f.State())
	}
}
