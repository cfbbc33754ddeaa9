package estimators

// FrequencyMeter emits value = 1000*(N-1)/(t_last-t_first) once at least two
// samples fit the window (spec.md §4.1). Used to measure the rate at which
// original segments arrive (feeds LatencyControl's stability check).
type FrequencyMeter struct {
	window     Window
	timestamps []int64
}

func NewFrequencyMeter(w Window) *FrequencyMeter {
	return &FrequencyMeter{window: w}
}

// NewValue records an occurrence at time ts (ms).
func (f *FrequencyMeter) NewValue(ts int64) {
	f.timestamps = append(f.timestamps, ts)
	f.window.Observe(ts)
	cut := f.window.Truncate(f.timestamps, ts)
	if cut > 0 {
		f.timestamps = f.timestamps[cut:]
	}
}

// Value returns the instantaneous frequency in Hz, or 0 if fewer than two
// samples are in the window.
func (f *FrequencyMeter) Value() float64 {
	n := len(f.timestamps)
	if n < 2 {
		return 0
	}
	span := f.timestamps[n-1] - f.timestamps[0]
	if span <= 0 {
		return 0
	}
	return 1000.0 * float64(n-1) / float64(span)
}

func (f *FrequencyMeter) SampleCount() int { return len(f.timestamps) }

func (f *FrequencyMeter) Reset() { f.timestamps = nil }
