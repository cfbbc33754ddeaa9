package estimators

import "math"

// SlidingAverage maintains a running sum and sample list over a Window,
// emitting Value() and recomputing Variance()/Deviation() every time the
// window signals limit-reached (spec.md §4.1).
type SlidingAverage struct {
	window     Window
	samples    []float64
	timestamps []int64
	sum        float64

	value    float64
	variance float64
	hasValue bool
}

func NewSlidingAverage(w Window) *SlidingAverage {
	return &SlidingAverage{window: w}
}

// NewValue appends a sample observed at time ts (ms). Returns true if the
// window's limit-reached fired and Value()/Variance() were recomputed.
func (a *SlidingAverage) NewValue(ts int64, v float64) bool {
	a.samples = append(a.samples, v)
	a.timestamps = append(a.timestamps, ts)
	a.sum += v

	limitReached := a.window.Observe(ts)

	cut := a.window.Truncate(a.timestamps, ts)
	if cut > 0 {
		for _, old := range a.samples[:cut] {
			a.sum -= old
		}
		a.samples = a.samples[cut:]
		a.timestamps = a.timestamps[cut:]
	}

	if limitReached && len(a.samples) > 0 {
		a.recompute()
	}
	return limitReached
}

func (a *SlidingAverage) recompute() {
	n := float64(len(a.samples))
	mean := a.sum / n
	var varSum float64
	for _, v := range a.samples {
		d := v - mean
		varSum += d * d
	}
	a.value = mean
	a.variance = varSum / n
	a.hasValue = true
}

// Value returns the current mean. Before the first recompute it returns the
// running mean of the samples held so far, or zero if there are none.
func (a *SlidingAverage) Value() float64 {
	if !a.hasValue && len(a.samples) > 0 {
		n := float64(len(a.samples))
		return a.sum / n
	}
	return a.value
}

func (a *SlidingAverage) Variance() float64 { return a.variance }
func (a *SlidingAverage) Deviation() float64 {
	return math.Sqrt(a.variance)
}

func (a *SlidingAverage) HasValue() bool { return len(a.samples) > 0 }
func (a *SlidingAverage) SampleCount() int { return len(a.samples) }

// Reset clears all accumulated samples.
func (a *SlidingAverage) Reset() {
	a.samples = nil
	a.timestamps = nil
	a.sum = 0
	a.value = 0
	a.variance = 0
	a.hasValue = false
}
