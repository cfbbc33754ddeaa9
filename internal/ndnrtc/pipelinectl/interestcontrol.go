// Package pipelinectl implements the DRD-driven controllers (spec.md §4.7):
// InterestControl (pipeline/lambda) and LatencyControl (playout threshold
// and increase/decrease pipeline commands).
package pipelinectl

import "math"

const minPipelineSize = 3

// InterestControl holds the outstanding-sample pipeline limit W and its
// current size, recomputing bounds from DRD and target sample rate.
type InterestControl struct {
	pipelineLimit float64 // W
	pipelineSize  int
	lowerLimit    float64
	upperLimit    float64

	drd  float64
	rate float64

	// fixed, when >0, pins pipelineLimit and disables DRD-driven recompute
	// (the consumer tool's --pp-size N override, 0=auto).
	fixed float64
}

func NewInterestControl() *InterestControl {
	ic := &InterestControl{lowerLimit: minPipelineSize, upperLimit: 2 * minPipelineSize}
	ic.pipelineLimit = ic.lowerLimit
	return ic
}

// SetFixedLimit pins the pipeline limit to n, bypassing DRD-driven
// recompute. n<=0 reverts to automatic (DRD-derived) sizing.
func (ic *InterestControl) SetFixedLimit(n float64) {
	ic.fixed = n
	if n > 0 {
		ic.pipelineLimit = n
		ic.lowerLimit = n
		ic.upperLimit = n
	}
}

// recompute applies the default strategy: W_target = ceil(2*DRD*rate),
// lower = max(MinPipelineSize, W_target), upper = 2*W_target.
func (ic *InterestControl) recompute() {
	if ic.fixed > 0 {
		return
	}
	if ic.drd <= 0 || ic.rate <= 0 {
		return
	}
	wTarget := math.Ceil(2 * ic.drd / 1000.0 * ic.rate)
	lower := math.Max(minPipelineSize, wTarget)
	upper := 2 * wTarget
	ic.lowerLimit = lower
	ic.upperLimit = upper
	if ic.pipelineLimit < ic.lowerLimit {
		ic.pipelineLimit = ic.lowerLimit
	}
	if ic.pipelineLimit > ic.upperLimit {
		ic.pipelineLimit = ic.upperLimit
	}
}

// OnDrdUpdate recomputes (lower, upper) and clips W (spec.md §4.7).
func (ic *InterestControl) OnDrdUpdate(drdMs, _ float64) {
	ic.drd = drdMs
	ic.recompute()
}

// TargetRateUpdate stores the target sample rate and recomputes.
func (ic *InterestControl) TargetRateUpdate(rate float64) {
	ic.rate = rate
	ic.recompute()
}

// Increment adjusts pipelineSize with bounds checks, returns success.
func (ic *InterestControl) Increment() bool {
	if float64(ic.pipelineSize+1) > ic.pipelineLimit {
		return false
	}
	ic.pipelineSize++
	return true
}

// Decrement adjusts pipelineSize with bounds checks, returns success.
func (ic *InterestControl) Decrement() bool {
	if ic.pipelineSize == 0 {
		return false
	}
	ic.pipelineSize--
	return true
}

// Burst raises W by half, clipped to upper.
func (ic *InterestControl) Burst() {
	ic.pipelineLimit += ic.pipelineLimit / 2
	if ic.pipelineLimit > ic.upperLimit {
		ic.pipelineLimit = ic.upperLimit
	}
}

// Withhold binary-searches downward between current W and lower.
func (ic *InterestControl) Withhold() {
	mid := (ic.pipelineLimit + ic.lowerLimit) / 2
	ic.pipelineLimit = mid
}

// MarkLowerLimit clamps lower to n (used by the FSM when transitioning into
// Adjusting to snapshot the current limit).
func (ic *InterestControl) MarkLowerLimit(n float64) {
	ic.lowerLimit = n
	if ic.pipelineLimit < ic.lowerLimit {
		ic.pipelineLimit = ic.lowerLimit
	}
}

func (ic *InterestControl) PipelineLimit() float64 { return ic.pipelineLimit }
func (ic *InterestControl) PipelineSize() int       { return ic.pipelineSize }
func (ic *InterestControl) LowerLimit() float64     { return ic.lowerLimit }
func (ic *InterestControl) UpperLimit() float64     { return ic.upperLimit }
