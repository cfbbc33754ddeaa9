package pipelinectl

import "testing"

func TestInterestControlRecomputeFromDrdAndRate(t *testing.T) {
	ic := NewInterestControl()
	ic.TargetRateUpdate(30)
	ic.OnDrdUpdate(100, 0)
	// W_target = ceil(2*0.1*30) = 6; lower=max(3,6)=6; upper=12
	if ic.LowerLimit() != 6 {
		t.Fatalf("expected lower limit 6, got %v", ic.LowerLimit())
	}
	if ic.UpperLimit() != 12 {
		t.Fatalf("expected upper limit 12, got %v", ic.UpperLimit())
	}
}

func TestInterestControlIncrementDecrementBounds(t *testing.T) {
	ic := NewInterestControl()
	if ic.Decrement() {
		t.Fatalf("expected decrement to fail at pipelineSize 0")
	}
	for i := 0; i < int(ic.PipelineLimit()); i++ {
		if !ic.Increment() {
			t.Fatalf("expected increment %d to succeed within limit", i)
		}
	}
	if ic.Increment() {
		t.Fatalf("expected increment beyond limit to fail")
	}
}

func TestInterestControlBurstRaisesLimit(t *testing.T) {
	ic := NewInterestControl()
	ic.TargetRateUpdate(30)
	ic.OnDrdUpdate(100, 0)
	before := ic.PipelineLimit()
	ic.Burst()
	if ic.PipelineLimit() <= before {
		t.Fatalf("expected burst to raise pipeline limit above %v, got %v", before, ic.PipelineLimit())
	}
	if ic.PipelineLimit() > ic.UpperLimit() {
		t.Fatalf("expected burst clipped to upper limit %v, got %v", ic.UpperLimit(), ic.PipelineLimit())
	}
}

func TestInterestControlWithholdLowersLimit(t *testing.T) {
	ic := NewInterestControl()
	ic.TargetRateUpdate(30)
	ic.OnDrdUpdate(100, 0)
	ic.Burst()
	before := ic.PipelineLimit()
	ic.Withhold()
	if ic.PipelineLimit() >= before {
		t.Fatalf("expected withhold to lower pipeline limit below %v, got %v", before, ic.PipelineLimit())
	}
	if ic.PipelineLimit() < ic.LowerLimit() {
		t.Fatalf("expected withheld limit to stay at or above lower bound")
	}
}

type fakeThreshold struct{ last float64 }

func (f *fakeThreshold) SetThreshold(ms float64) { f.last = ms }

func TestLatencyControlSetsPlayoutThresholdFromDrd(t *testing.T) {
	th := &fakeThreshold{}
	lc := NewLatencyControl(th, 2, 3, 2)
	lc.SetSamplePeriod(33)
	lc.OnDrdUpdate(100, 10)
	want := 2*100.0 + 4*10.0
	if th.last != want {
		t.Fatalf("expected threshold %v, got %v", want, th.last)
	}
}

func TestLatencyControlThresholdLowerBounded(t *testing.T) {
	th := &fakeThreshold{}
	lc := NewLatencyControl(th, 2, 3, 2)
	lc.SetSamplePeriod(1000) // minPipelineMs = 3*1000 = 3000, far above alpha*drd+beta*dev
	lc.OnDrdUpdate(1, 1)
	if th.last != 3000 {
		t.Fatalf("expected threshold lower-bounded to 3000, got %v", th.last)
	}
}

func TestLatencyControlEmitsIncreaseWhenStableAtTargetRate(t *testing.T) {
	lc := NewLatencyControl(nil, 1, 2, 100)
	lc.SetTargetRate(30) // expected period ~33.33ms
	lc.SetSamplePeriod(33)

	lc.OnOriginalSegmentArrival(0, 100, 1) // seeds lastArrival, no command yet
	var last Command
	for i := 1; i <= 3; i++ {
		last = lc.OnOriginalSegmentArrival(int64(i)*33, 100, 1)
	}
	if last != IncreasePipeline {
		t.Fatalf("expected IncreasePipeline once stable at target rate, got %v", last)
	}
}

func TestLatencyControlSwitchesToWaitingForStabilityOnDrdBump(t *testing.T) {
	lc := NewLatencyControl(nil, 1, 2, 1)
	lc.SetTargetRate(30)
	lc.SetSamplePeriod(33)
	lc.OnDrdUpdate(100, 1)
	lc.OnDrdUpdate(500, 1) // big bump relative to deviation 1 and threshold 1

	lc.OnOriginalSegmentArrival(0, 500, 1)
	cmd := lc.OnOriginalSegmentArrival(10, 500, 1) // much faster than target period -> consumer ahead
	if cmd != DecreasePipeline {
		t.Fatalf("expected DecreasePipeline in waiting-for-stability while arrivals are fast, got %v", cmd)
	}
}
