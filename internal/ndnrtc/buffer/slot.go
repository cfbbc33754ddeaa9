// Package buffer implements BufferSlot, SlotPool, and Buffer (spec.md §3,
// §4.5): per-sample reassembly state, segment-receipt bookkeeping, and the
// Ready/Locked lifecycle that hands frames to the Playback Queue.
package buffer

import (
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/packet"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/reqqueue"
)

type State int

const (
	StateFree State = iota
	StateNew
	StateAssembling
	StateReady
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateNew:
		return "new"
	case StateAssembling:
		return "assembling"
	case StateReady:
		return "ready"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

type VerificationStatus int

const (
	VerificationUnknown VerificationStatus = iota
	VerificationFailed
	VerificationVerified
)

// Slot is a per-sample record (spec.md §3's BufferSlot).
type Slot struct {
	Prefix name.Name
	Info   name.Info

	Requested map[string]*reqqueue.DataRequest
	Fetched   map[string]*reqqueue.DataRequest

	FirstSegmentTsUs int64
	AssembledTsUs    int64

	AssembledBytes    int
	AssembledFraction float64

	NDataSegments   int
	NParitySegments int
	PlaybackNo      int
	HasSegmentMeta  bool

	RetransmitCount int

	Verification VerificationStatus
	Manifest      *packet.Manifest

	State State
}

func newSlot() *Slot {
	return &Slot{
		Requested: make(map[string]*reqqueue.DataRequest),
		Fetched:   make(map[string]*reqqueue.DataRequest),
		State:     StateFree,
	}
}

func (s *Slot) reset() {
	s.Prefix = nil
	s.Info = name.Info{}
	for k := range s.Requested {
		delete(s.Requested, k)
	}
	for k := range s.Fetched {
		delete(s.Fetched, k)
	}
	s.FirstSegmentTsUs = 0
	s.AssembledTsUs = 0
	s.AssembledBytes = 0
	s.AssembledFraction = 0
	s.NDataSegments = 0
	s.NParitySegments = 0
	s.PlaybackNo = 0
	s.HasSegmentMeta = false
	s.RetransmitCount = 0
	s.Verification = VerificationUnknown
	s.Manifest = nil
	s.State = StateFree
}

// readyToAssemble reports whether enough original-or-parity slices have arrived to
// reconstruct the frame payload (spec.md §3 invariant). Only Data/Parity
// segments count toward assembly; a fetched manifest segment (requested
// alongside the batch for validation) is neither.
func (s *Slot) readyToAssemble() bool {
	if !s.HasSegmentMeta {
		return false
	}
	dataCount, parityCount := 0, 0
	for _, r := range s.Fetched {
		switch r.Info.SegmentClassVal {
		case name.SegmentData:
			dataCount++
		case name.SegmentParity:
			parityCount++
		}
	}
	return dataCount >= s.NDataSegments || dataCount+parityCount >= s.NDataSegments
}
