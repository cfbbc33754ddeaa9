package buffer

import (
	"fmt"
	"sync"

	"github.com/ndnrtc/fetch-engine/internal/errs"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/packet"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/reqqueue"
)

// Receipt describes a state-changing Buffer event delivered to observers
// (spec.md §4.5's BufferReceipt).
type Receipt struct {
	Slot     *Slot
	Segment  *reqqueue.DataRequest
	OldState State
}

type NewRequestObserver func(slot *Slot)
type NewDataObserver func(Receipt)
type ResetObserver func()

// Buffer exclusively owns all active slots (spec.md §3 ownership rule). The
// spec's recursive mutex (shared by the face and renderer executors) is
// adapted here to a plain sync.Mutex: every public method takes the lock
// exactly once and never calls another public method while holding it.
type Buffer struct {
	mu   sync.Mutex
	pool *SlotPool

	active map[string]*Slot // keyed by sample prefix string

	onNewRequest []NewRequestObserver
	onNewData    []NewDataObserver
	onReset      []ResetObserver
}

func New(pool *SlotPool) *Buffer {
	return &Buffer{pool: pool, active: make(map[string]*Slot)}
}

func (b *Buffer) OnNewRequest(f NewRequestObserver) { b.onNewRequest = append(b.onNewRequest, f) }
func (b *Buffer) OnNewData(f NewDataObserver)        { b.onNewData = append(b.onNewData, f) }
func (b *Buffer) OnReset(f ResetObserver)            { b.onReset = append(b.onReset, f) }

// Requested records a batch of Interests that all derive the same sample
// prefix, allocating or reusing a slot and transitioning Free->New
// (spec.md §4.5).
func (b *Buffer) Requested(reqs []*reqqueue.DataRequest) (*Slot, error) {
	if len(reqs) == 0 {
		return nil, errs.NewBadRequestSet("buffer.Requested", fmt.Errorf("empty request batch"))
	}
	for _, r := range reqs {
		if !r.Info.HasSegNo {
			return nil, errs.NewBadRequestSet("buffer.Requested", fmt.Errorf("request %s has no segment component", r.Name))
		}
	}

	samplePrefix := reqs[0].Info.Prefix(name.LevelSample).String()
	for _, r := range reqs[1:] {
		if r.Info.Prefix(name.LevelSample).String() != samplePrefix {
			return nil, errs.NewBadRequestSet("buffer.Requested", fmt.Errorf("requests do not share a sample prefix"))
		}
	}

	b.mu.Lock()
	slot, exists := b.active[samplePrefix]
	if !exists {
		slot = b.pool.Acquire()
		slot.Prefix = reqs[0].Info.Prefix(name.LevelSample)
		slot.Info = reqs[0].Info
		slot.State = StateNew
		b.active[samplePrefix] = slot
	}
	for _, r := range reqs {
		slot.Requested[r.Name.String()] = r
	}
	observers := append([]NewRequestObserver(nil), b.onNewRequest...)
	b.mu.Unlock()

	for _, o := range observers {
		o(slot)
	}
	return slot, nil
}

// SegmentMeta is learned from the first-arrived segment header of a slot:
// nDataSegments, nParitySegments, and (for video) the playback number.
type SegmentMeta struct {
	NDataSegments   int
	NParitySegments int
	PlaybackNo      int
}

// Received processes one arrived segment. meta is consulted only on the
// first segment of a slot (spec.md §4.5: "SegmentMeta from the segment
// header on first arrival gives nDataSegments...").
func (b *Buffer) Received(req *reqqueue.DataRequest, header packet.DataSegmentHeader, meta SegmentMeta) error {
	samplePrefix := req.Info.Prefix(name.LevelSample).String()

	b.mu.Lock()
	slot, exists := b.active[samplePrefix]
	if !exists {
		b.mu.Unlock()
		return errs.NewUnknownSegment("buffer.Received", fmt.Errorf("no active slot for %s", req.Name))
	}
	if slot.State == StateReady || slot.State == StateLocked {
		b.mu.Unlock()
		return nil // discarded: slot already assembled, traced by caller
	}

	key := req.Name.String()
	delete(slot.Requested, key)
	slot.Fetched[key] = req
	req.Header = header

	if !slot.HasSegmentMeta {
		slot.NDataSegments = meta.NDataSegments
		slot.NParitySegments = meta.NParitySegments
		slot.PlaybackNo = meta.PlaybackNo
		if slot.NDataSegments == 0 {
			slot.NDataSegments = 1
		}
		slot.HasSegmentMeta = true
	}
	if slot.FirstSegmentTsUs == 0 {
		slot.FirstSegmentTsUs = req.ReplyTsUs
	}
	slot.AssembledBytes += len(req.Data)
	if slot.NDataSegments > 0 {
		slot.AssembledFraction = float64(len(slot.Fetched)) / float64(slot.NDataSegments)
	}

	oldState := slot.State
	if slot.State == StateNew {
		slot.State = StateAssembling
	}

	var receipt Receipt
	transitioned := false
	if slot.State == StateAssembling && slot.readyToAssemble() {
		slot.State = StateReady
		receipt = Receipt{Slot: slot, Segment: req, OldState: oldState}
		transitioned = true
	}
	observers := append([]NewDataObserver(nil), b.onNewData...)
	b.mu.Unlock()

	if transitioned {
		for _, o := range observers {
			o(receipt)
		}
	}
	return nil
}

// IsRequested is a membership test for outstanding segment names.
func (b *Buffer) IsRequested(segmentName name.Name) bool {
	info, err := name.Extract(segmentName)
	if err != nil {
		return false
	}
	samplePrefix := info.Prefix(name.LevelSample).String()

	b.mu.Lock()
	defer b.mu.Unlock()
	slot, exists := b.active[samplePrefix]
	if !exists {
		return false
	}
	_, ok := slot.Requested[segmentName.String()]
	return ok
}

// Reset releases all active slots back to the pool and notifies observers.
func (b *Buffer) Reset() {
	b.mu.Lock()
	slots := make([]*Slot, 0, len(b.active))
	for k, s := range b.active {
		slots = append(slots, s)
		delete(b.active, k)
	}
	observers := append([]ResetObserver(nil), b.onReset...)
	b.mu.Unlock()

	for _, s := range slots {
		if s.State != StateLocked {
			b.pool.Release(s)
		}
	}
	for _, o := range observers {
		o()
	}
}

// Release returns a Locked slot (owned by playout) back to the pool once
// playout is done with it.
func (b *Buffer) Release(slot *Slot) {
	b.pool.Release(slot)
}
