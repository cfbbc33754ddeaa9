package pipeline

import (
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/pipelinectl"
)

type State int

const (
	StateIdle State = iota
	StateWaitForRightmost
	StateWaitForInitial // WaitForInitialKey (video) or WaitForInitial (audio)
	StateChasing
	StateAdjusting
	StateFetching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitForRightmost:
		return "wait-for-rightmost"
	case StateWaitForInitial:
		return "wait-for-initial"
	case StateChasing:
		return "chasing"
	case StateAdjusting:
		return "adjusting"
	case StateFetching:
		return "fetching"
	default:
		return "unknown"
	}
}

// Observer is notified on every FSM transition.
type Observer func(from, to State, elapsedMs int64)

// InterestControl is the subset of pipelinectl.InterestControl the FSM
// drives directly.
type InterestControl interface {
	Burst()
	Withhold()
	MarkLowerLimit(n float64)
	PipelineLimit() float64
}

// latch prevents stale samples from an earlier epoch affecting the current
// one (spec.md §4.9): only sequence numbers >= the latch are dispatched
// after the next Start.
type latch struct {
	deltaSeq, keySeq uint64
	active           bool
}

// FSM is the Pipeline-Control state machine (spec.md §4.9).
type FSM struct {
	state State

	pipeliner *Pipeliner
	ic        InterestControl
	latency   *pipelinectl.LatencyControl
	isVideo   bool

	timeoutCount int
	enterTimeMs  int64
	pipelineLowerLimitSnapshot float64

	latch latch

	observers []Observer
	nowMs     func() int64
}

func NewFSM(p *Pipeliner, ic InterestControl, lc *pipelinectl.LatencyControl, isVideo bool, nowMs func() int64) *FSM {
	return &FSM{pipeliner: p, ic: ic, latency: lc, isVideo: isVideo, nowMs: nowMs}
}

func (f *FSM) OnTransition(o Observer) { f.observers = append(f.observers, o) }

func (f *FSM) transition(to State) {
	elapsed := f.nowMs() - f.enterTimeMs
	from := f.state
	f.state = to
	f.enterTimeMs = f.nowMs()
	for _, o := range f.observers {
		o(from, to, elapsed)
	}
}

// Start fires the Idle->WaitForRightmost transition and expresses a
// rightmost Interest.
func (f *FSM) Start() {
	f.transition(StateWaitForRightmost)
	f.pipeliner.ExpressRightmost()
}

// Reset fires a global Reset: any state -> Idle, recording the latch and
// clearing the timeout count. It does not reset the Buffer, Pipeliner,
// LatencyControl or InterestControl.
func (f *FSM) Reset() {
	f.latch = latch{deltaSeq: f.pipeliner.NextSampleNo(), active: true}
	f.timeoutCount = 0
	f.transition(StateIdle)
}

// passesLatch reports whether seqNo belongs to the current epoch.
func (f *FSM) passesLatch(class name.SampleClass, seqNo uint64) bool {
	if !f.latch.active {
		return true
	}
	if class == name.SampleKey {
		return seqNo >= f.latch.keySeq
	}
	return seqNo >= f.latch.deltaSeq
}

// OnSegment processes one arrived segment's namespace info.
func (f *FSM) OnSegment(info name.Info, latencyCmd pipelinectl.Command) {
	if !f.passesLatch(info.SampleClassVal, info.SampleNo) {
		return
	}

	switch f.state {
	case StateWaitForRightmost:
		f.timeoutCount = 0
		f.pipeliner.SetNextSampleNo(info.SampleNo)
		if f.isVideo {
			f.pipeliner.SetNeedSample(name.SampleKey)
		}
		f.transition(StateWaitForInitial)
		f.pipeliner.ExpressNextBatch()

	case StateWaitForInitial:
		f.transition(StateChasing)
		f.pipeliner.ExpressNextBatch()

	case StateChasing:
		f.pipeliner.ExpressNextBatch()
		if latencyCmd == pipelinectl.DecreasePipeline {
			f.pipelineLowerLimitSnapshot = f.ic.PipelineLimit()
			f.ic.MarkLowerLimit(f.pipelineLowerLimitSnapshot)
			f.transition(StateAdjusting)
		}

	case StateAdjusting:
		if latencyCmd == pipelinectl.IncreasePipeline {
			f.ic.MarkLowerLimit(f.ic.PipelineLimit())
			f.transition(StateFetching)
		} else if latencyCmd == pipelinectl.DecreasePipeline {
			f.ic.Withhold()
		}

	case StateFetching:
		if latencyCmd == pipelinectl.IncreasePipeline {
			f.transition(StateAdjusting)
		}
	}
}

// OnTimeout handles a Timeout event; WaitForRightmost re-issues the
// rightmost Interest and WaitForInitial re-issues the batch, and in either
// state the 3rd timeout resets to Idle instead.
func (f *FSM) OnTimeout() {
	switch f.state {
	case StateWaitForRightmost:
		f.timeoutCount++
		if f.timeoutCount >= 3 {
			f.Reset()
			return
		}
		f.pipeliner.ExpressRightmost()
	case StateWaitForInitial:
		f.timeoutCount++
		if f.timeoutCount >= 3 {
			f.Reset()
			return
		}
		f.pipeliner.ExpressNextBatch()
	}
}

// OnStarvation handles an absence of segment arrivals for the starvation
// window: Chasing/Adjusting/Fetching -> Idle, then restarts Start.
func (f *FSM) OnStarvation() {
	switch f.state {
	case StateChasing, StateAdjusting, StateFetching:
		f.Reset()
		f.Start()
	}
}

func (f *FSM) State() State { return f.state }
