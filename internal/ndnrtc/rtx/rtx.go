// Package rtx implements the Retransmission Controller (spec.md §4.8):
// tracks a playback deadline per outstanding slot and re-expresses pending
// segment Interests once a deadline is about to be missed.
package rtx

import (
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/buffer"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/reqqueue"
)

// DrdSource supplies the two DRD estimations the controller compares a
// deadline against.
type DrdSource interface {
	GetOriginalEstimation() float64
	GetCachedEstimation() float64
}

// PlaybackSizes supplies the playback queue's current/pending sizes used to
// compute a Delta sample's deadline.
type PlaybackSizes interface {
	Size(nowMs int64) int64
	PendingSize() int64
}

// Requeuer re-expresses a pending segment Interest at a higher priority.
type Requeuer interface {
	EnqueueHighPriority(req *reqqueue.DataRequest)
}

// FeatureFlags controls the two historically-divergent RtxController
// behaviors named in spec.md §9: whether retransmission scheduling runs
// only on Buffer events, or also on a periodic tick.
type FeatureFlags struct {
	PeriodicTick bool
}

type active struct {
	slot          *buffer.Slot
	deadlineMs    int64
	retriedOnce   map[string]bool // per-segment: retransmitted since the last detected breach
	breachPending bool
}

// Controller observes Buffer's onNewRequest/onNewData events (spec.md
// §4.8).
type Controller struct {
	drd       DrdSource
	playback  PlaybackSizes
	requeuer  Requeuer
	flags     FeatureFlags
	gopSize   int
	samplePeriodMs int64

	activeSlots map[*buffer.Slot]*active
}

func New(drd DrdSource, playback PlaybackSizes, requeuer Requeuer, gopSize int, samplePeriodMs int64, flags FeatureFlags) *Controller {
	return &Controller{
		drd: drd, playback: playback, requeuer: requeuer,
		gopSize: gopSize, samplePeriodMs: samplePeriodMs, flags: flags,
		activeSlots: make(map[*buffer.Slot]*active),
	}
}

// OnNewRequest records a playback deadline for slot, per sample class.
func (c *Controller) OnNewRequest(nowMs int64, slot *buffer.Slot) {
	var deadline int64
	if slot.Info.SampleClassVal == name.SampleKey {
		deadline = nowMs + int64(c.gopSize)*c.samplePeriodMs
	} else {
		deadline = nowMs + c.playback.Size(nowMs) + c.playback.PendingSize()
	}
	c.activeSlots[slot] = &active{slot: slot, deadlineMs: deadline, retriedOnce: make(map[string]bool)}
}

// OnNewData walks the active set; per spec.md §4.8, once a slot reaches
// Ready (or is released) it drops out.
func (c *Controller) OnNewData(nowMs int64, _ buffer.Receipt) {
	c.sweep(nowMs)
}

// Tick runs the same sweep on a periodic timer when FeatureFlags.PeriodicTick
// is set (the alternate RtxController behavior preserved from spec.md §9).
func (c *Controller) Tick(nowMs int64) {
	if !c.flags.PeriodicTick {
		return
	}
	c.sweep(nowMs)
}

func (c *Controller) sweep(nowMs int64) {
	minDrd := c.drd.GetOriginalEstimation()
	if cached := c.drd.GetCachedEstimation(); cached < minDrd {
		minDrd = cached
	}

	for slot, a := range c.activeSlots {
		if slot.State == buffer.StateReady || slot.State == buffer.StateLocked {
			delete(c.activeSlots, slot)
			continue
		}

		needsRtx := float64(a.deadlineMs-nowMs) < minDrd
		if !needsRtx {
			a.breachPending = false
			continue
		}
		if a.breachPending {
			// already retransmitted for this breach; require a new one
			continue
		}
		a.breachPending = true
		for k := range a.retriedOnce {
			delete(a.retriedOnce, k)
		}
		for segKey, req := range slot.Requested {
			if a.retriedOnce[segKey] {
				continue
			}
			req.RetransmitCount++
			slot.RetransmitCount++
			c.requeuer.EnqueueHighPriority(req)
			a.retriedOnce[segKey] = true
		}
	}
}

// ActiveCount reports how many slots are currently tracked, for tests.
func (c *Controller) ActiveCount() int { return len(c.activeSlots) }
