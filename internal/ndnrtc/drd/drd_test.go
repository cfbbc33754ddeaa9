package drd

import "testing"

type recordingObserver struct {
	originalCalls int
	cachedCalls   int
	drdCalls      int
	lastOrder     []string
}

func (r *recordingObserver) OnOriginalDrdUpdate(value, deviation float64) {
	r.originalCalls++
	r.lastOrder = append(r.lastOrder, "original")
}

func (r *recordingObserver) OnCachedDrdUpdate(value, deviation float64) {
	r.cachedCalls++
	r.lastOrder = append(r.lastOrder, "cached")
}

func (r *recordingObserver) OnDrdUpdate(value, deviation float64) {
	r.drdCalls++
	r.lastOrder = append(r.lastOrder, "drd")
}

func TestInitialEstimationBeforeAnyOriginalSample(t *testing.T) {
	e := New()
	if got := e.GetOriginalEstimation(); got != defaultInitialEstimationMs {
		t.Fatalf("expected default initial estimation %v, got %v", defaultInitialEstimationMs, got)
	}
}

func TestWithInitialEstimationOverride(t *testing.T) {
	e := New(WithInitialEstimation(200))
	if got := e.GetOriginalEstimation(); got != 200 {
		t.Fatalf("expected overridden initial estimation 200, got %v", got)
	}
}

func TestNewValueUpdatesOriginalWindowIndependently(t *testing.T) {
	e := New()
	ts := int64(0)
	for i := 0; i < 10; i++ {
		e.NewValue(ts, 100, true, 5)
		ts += 10
	}
	if !e.originalDrd.HasValue() {
		t.Fatalf("expected original window to have value")
	}
	if e.cachedDrd.HasValue() {
		t.Fatalf("expected cached window untouched")
	}
	if got := e.GetOriginalEstimation(); got != 100 {
		t.Fatalf("expected original estimation 100, got %v", got)
	}
}

func TestCachedEstimationFallsBackToOriginal(t *testing.T) {
	e := New(WithInitialEstimation(150))
	if got := e.GetCachedEstimation(); got != 150 {
		t.Fatalf("expected cached to fall back to initial estimation, got %v", got)
	}
	ts := int64(0)
	for i := 0; i < 10; i++ {
		e.NewValue(ts, 80, true, 0)
		ts += 10
	}
	if got := e.GetCachedEstimation(); got != 80 {
		t.Fatalf("expected cached to fall back to original average 80, got %v", got)
	}
}

func TestObserverNotificationOrder(t *testing.T) {
	e := New()
	obs := &recordingObserver{}
	e.Subscribe(obs)

	ts := int64(0)
	for i := 0; i < 10; i++ {
		e.NewValue(ts, 100, true, 0)
		ts += 10
	}
	if obs.originalCalls != 1 || obs.drdCalls != 1 || obs.cachedCalls != 0 {
		t.Fatalf("expected one original+drd notification, got original=%d cached=%d drd=%d",
			obs.originalCalls, obs.cachedCalls, obs.drdCalls)
	}
	if len(obs.lastOrder) != 2 || obs.lastOrder[0] != "original" || obs.lastOrder[1] != "drd" {
		t.Fatalf("expected order [original drd], got %v", obs.lastOrder)
	}

	obs.lastOrder = nil
	for i := 0; i < 10; i++ {
		e.NewValue(ts, 50, false, 0)
		ts += 10
	}
	if obs.cachedCalls != 1 || obs.drdCalls != 2 {
		t.Fatalf("expected one cached notification and a second drd notification, got cached=%d drd=%d",
			obs.cachedCalls, obs.drdCalls)
	}
	if len(obs.lastOrder) != 2 || obs.lastOrder[0] != "cached" || obs.lastOrder[1] != "drd" {
		t.Fatalf("expected order [cached drd], got %v", obs.lastOrder)
	}
}

func TestGenerationDelayTracksSeparatelyFromRtt(t *testing.T) {
	e := New()
	ts := int64(0)
	for i := 0; i < 10; i++ {
		e.NewValue(ts, 100, true, 20)
		ts += 10
	}
	if got := e.GenerationDelay(); got != 20 {
		t.Fatalf("expected generation delay 20, got %v", got)
	}
}

func TestResetPreservesInitialEstimation(t *testing.T) {
	e := New(WithInitialEstimation(175))
	ts := int64(0)
	for i := 0; i < 10; i++ {
		e.NewValue(ts, 90, true, 0)
		ts += 10
	}
	e.Reset()
	if e.originalDrd.HasValue() {
		t.Fatalf("expected original window cleared after reset")
	}
	if got := e.GetOriginalEstimation(); got != 175 {
		t.Fatalf("expected initial estimation preserved at 175, got %v", got)
	}
}
