// Package drd implements the Data Retrieval Delay estimator (spec.md §4.2):
// two independent windowed averages, one for replies that actually hit the
// producer (original) and one for everything else (cached), plus a
// generation-delay window. Separating the two keeps a burst of
// content-store hits during catch-up from collapsing the RTT estimate.
package drd

import "github.com/ndnrtc/fetch-engine/internal/ndnrtc/estimators"

const defaultInitialEstimationMs = 150.0

// Observer is notified when a DRD window's value moves. Observers see the
// post-update value and deviation.
type Observer interface {
	OnOriginalDrdUpdate(valueMs, deviationMs float64)
	OnCachedDrdUpdate(valueMs, deviationMs float64)
	OnDrdUpdate(valueMs, deviationMs float64)
}

// Estimator maintains originalDrd, cachedDrd, and a generationDelay window
// and fans out observer notifications in the order spec.md §4.2 names:
// (onOriginalDrdUpdate | onCachedDrdUpdate), then onDrdUpdate.
type Estimator struct {
	originalDrd     *estimators.SlidingAverage
	cachedDrd       *estimators.SlidingAverage
	generationDelay *estimators.SlidingAverage

	initialEstimationMs float64
	observers           []Observer
}

// Option configures an Estimator at construction. The three averaging
// windows are fixed sample-count windows of 10 samples each and are not
// configurable.
type Option func(*Estimator)

// WithInitialEstimation overrides the seed DRD used before any original
// reply has arrived (default 150ms, spec.md §4.2).
func WithInitialEstimation(ms float64) Option {
	return func(e *Estimator) { e.initialEstimationMs = ms }
}

func New(opts ...Option) *Estimator {
	e := &Estimator{
		originalDrd:         estimators.NewSlidingAverage(estimators.NewSampleWindow(10)),
		cachedDrd:           estimators.NewSlidingAverage(estimators.NewSampleWindow(10)),
		generationDelay:     estimators.NewSlidingAverage(estimators.NewSampleWindow(10)),
		initialEstimationMs: defaultInitialEstimationMs,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Estimator) Subscribe(o Observer) { e.observers = append(e.observers, o) }

// NewValue records one reply's round-trip time (drdMs), whether it was
// original (isOriginal), and its generation delay (dGen, may be 0 for
// cached/meta replies).
func (e *Estimator) NewValue(ts int64, drdMs float64, isOriginal bool, dGen float64) {
	e.generationDelay.NewValue(ts, dGen)

	if isOriginal {
		moved := e.originalDrd.NewValue(ts, drdMs)
		if moved {
			e.notify(e.originalDrd.Value(), e.originalDrd.Deviation(), true)
		}
		return
	}

	moved := e.cachedDrd.NewValue(ts, drdMs)
	if moved {
		e.notify(e.cachedDrd.Value(), e.cachedDrd.Deviation(), false)
	}
}

func (e *Estimator) notify(value, deviation float64, original bool) {
	for _, o := range e.observers {
		if original {
			o.OnOriginalDrdUpdate(value, deviation)
		} else {
			o.OnCachedDrdUpdate(value, deviation)
		}
	}
	for _, o := range e.observers {
		o.OnDrdUpdate(value, deviation)
	}
}

// GetOriginalEstimation returns the original-reply average, or the
// configured initial estimation if no original reply has ever arrived.
func (e *Estimator) GetOriginalEstimation() float64 {
	if !e.originalDrd.HasValue() {
		return e.initialEstimationMs
	}
	return e.originalDrd.Value()
}

// GetCachedEstimation returns the cached-reply average, falling back to the
// original estimation (cached replies should never be slower than original).
func (e *Estimator) GetCachedEstimation() float64 {
	if !e.cachedDrd.HasValue() {
		return e.GetOriginalEstimation()
	}
	return e.cachedDrd.Value()
}

func (e *Estimator) OriginalDeviation() float64 { return e.originalDrd.Deviation() }
func (e *Estimator) CachedDeviation() float64   { return e.cachedDrd.Deviation() }

func (e *Estimator) GenerationDelay() float64 {
	if !e.generationDelay.HasValue() {
		return 0
	}
	return e.generationDelay.Value()
}

// Reset clears both RTT windows and the generation-delay window; the
// configured initial estimation is preserved.
func (e *Estimator) Reset() {
	e.originalDrd.Reset()
	e.cachedDrd.Reset()
	e.generationDelay.Reset()
}
