package pipelinectl

import "math"

// Command is LatencyControl's verdict on each segment arrival (spec.md
// §4.7), read by the Pipeline-Control FSM.
type Command int

const (
	KeepPipeline Command = iota
	IncreasePipeline
	DecreasePipeline
)

// latencyState is LatencyControl's own two-state machine, distinct from the
// Command it emits.
type latencyState int

const (
	waitingForChange latencyState = iota
	waitingForStability
)

// StabilityEstimator declares a run stable when consecutive inter-arrival
// times lie within +/-k*deviation of the DRD-implied period for N
// consecutive samples.
type StabilityEstimator struct {
	K               float64
	RequiredSamples int

	consecutive int
}

func NewStabilityEstimator(k float64, requiredSamples int) *StabilityEstimator {
	return &StabilityEstimator{K: k, RequiredSamples: requiredSamples}
}

// Observe records one inter-arrival sample and reports whether the run is
// now stable.
func (s *StabilityEstimator) Observe(interArrivalMs, expectedPeriodMs, deviationMs float64) bool {
	band := s.K * deviationMs
	if math.Abs(interArrivalMs-expectedPeriodMs) <= band {
		s.consecutive++
	} else {
		s.consecutive = 0
	}
	return s.consecutive >= s.RequiredSamples
}

func (s *StabilityEstimator) Reset() { s.consecutive = 0 }

// DrdChangeEstimator flags a sudden DRD bump: a new DRD value that exceeds
// the previous one by more than Threshold multiples of deviation.
type DrdChangeEstimator struct {
	Threshold float64
	lastDrd   float64
	hasLast   bool
}

func NewDrdChangeEstimator(threshold float64) *DrdChangeEstimator {
	return &DrdChangeEstimator{Threshold: threshold}
}

func (d *DrdChangeEstimator) Observe(drdMs, deviationMs float64) bool {
	bumped := false
	if d.hasLast && deviationMs > 0 && drdMs-d.lastDrd > d.Threshold*deviationMs {
		bumped = true
	}
	d.lastDrd = drdMs
	d.hasLast = true
	return bumped
}

// PlayoutThreshold receives the computed playable-duration gate.
type PlayoutThreshold interface {
	SetThreshold(ms float64)
}

// LatencyControl watches original-segment inter-arrival timing and drives
// the pipeline-size Command the FSM reads on each segment arrival.
type LatencyControl struct {
	stability  *StabilityEstimator
	drdChange  *DrdChangeEstimator
	playout    PlayoutThreshold
	state      latencyState

	// Threshold coefficients: t = Alpha*DRD + Beta*dev, per spec.md §4.7 /
	// §9's open question (source uses alpha=4, comments suggest alpha=2;
	// both kept available as a config knob, default alpha=2).
	Alpha float64
	Beta  float64

	minPipelineMs float64

	rate float64

	lastArrivalMs int64
	hasLastArrival bool
}

func NewLatencyControl(playout PlayoutThreshold, stabilityK float64, stabilityN int, drdChangeThreshold float64) *LatencyControl {
	return &LatencyControl{
		stability: NewStabilityEstimator(stabilityK, stabilityN),
		drdChange: NewDrdChangeEstimator(drdChangeThreshold),
		playout:   playout,
		Alpha:     2,
		Beta:      4,
	}
}

// SetSamplePeriod configures the minimum threshold bound
// (MinPipelineSize*samplePeriod, spec.md §4.7).
func (lc *LatencyControl) SetSamplePeriod(samplePeriodMs float64) {
	lc.minPipelineMs = minPipelineSize * samplePeriodMs
}

func (lc *LatencyControl) SetTargetRate(rate float64) { lc.rate = rate }

// OnDrdUpdate recomputes the playout threshold and runs the DrdChange
// estimator, switching to waiting-for-stability on a detected bump.
func (lc *LatencyControl) OnDrdUpdate(drdMs, deviationMs float64) {
	t := lc.Alpha*drdMs + lc.Beta*deviationMs
	if t < lc.minPipelineMs {
		t = lc.minPipelineMs
	}
	if lc.playout != nil {
		lc.playout.SetThreshold(t)
	}
	if lc.drdChange.Observe(drdMs, deviationMs) {
		lc.state = waitingForStability
		lc.stability.Reset()
	}
}

// OnOriginalSegmentArrival processes one original segment's inter-arrival
// time and returns the Command the FSM should act on.
func (lc *LatencyControl) OnOriginalSegmentArrival(nowMs int64, drdMs, deviationMs float64) Command {
	if !lc.hasLastArrival {
		lc.lastArrivalMs = nowMs
		lc.hasLastArrival = true
		return KeepPipeline
	}
	interArrival := float64(nowMs - lc.lastArrivalMs)
	lc.lastArrivalMs = nowMs

	var expectedPeriod float64
	if lc.rate > 0 {
		expectedPeriod = 1000.0 / lc.rate
	}

	switch lc.state {
	case waitingForChange:
		stable := lc.stability.Observe(interArrival, expectedPeriod, deviationMs)
		if stable && expectedPeriod > 0 && math.Abs(interArrival-expectedPeriod) <= lc.stability.K*deviationMs {
			return IncreasePipeline
		}
		return KeepPipeline
	case waitingForStability:
		if expectedPeriod > 0 && interArrival < expectedPeriod {
			return DecreasePipeline
		}
		lc.state = waitingForChange
		lc.stability.Reset()
		return KeepPipeline
	default:
		return KeepPipeline
	}
}

func (lc *LatencyControl) Reset() {
	lc.state = waitingForChange
	lc.stability.Reset()
	lc.hasLastArrival = false
}
