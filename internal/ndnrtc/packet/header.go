// Package packet implements the frame wire format (spec.md §4.4): segment
// header layout, frame slicing/merging, Reed-Solomon FEC, and manifests.
package packet

import (
	"encoding/binary"
	"errors"
	"math"
)

var errShortHeader = errors.New("packet: segment too short for header")

// protocolOverhead accounts for the outer Data packet's signature and name
// TLV framing that the segment payload budget must leave room for.
const protocolOverhead = 64

// DataSegmentHeader is the fixed layout carried by every segment (spec.md
// §4.4): u32 interestNonce; f64 interestArrivalMs; f64 generationDelayMs.
type DataSegmentHeader struct {
	InterestNonce    uint32
	InterestArrivalMs float64
	GenerationDelayMs float64
}

const dataSegmentHeaderLen = 4 + 8 + 8

func (h DataSegmentHeader) Len() int { return dataSegmentHeaderLen }

func (h DataSegmentHeader) Marshal() []byte {
	b := make([]byte, dataSegmentHeaderLen)
	binary.LittleEndian.PutUint32(b[0:4], h.InterestNonce)
	binary.LittleEndian.PutUint64(b[4:12], math.Float64bits(h.InterestArrivalMs))
	binary.LittleEndian.PutUint64(b[12:20], math.Float64bits(h.GenerationDelayMs))
	return b
}

func unmarshalDataSegmentHeader(b []byte) (DataSegmentHeader, error) {
	if len(b) < dataSegmentHeaderLen {
		return DataSegmentHeader{}, errShortHeader
	}
	return DataSegmentHeader{
		InterestNonce:     binary.LittleEndian.Uint32(b[0:4]),
		InterestArrivalMs: math.Float64frombits(binary.LittleEndian.Uint64(b[4:12])),
		GenerationDelayMs: math.Float64frombits(binary.LittleEndian.Uint64(b[12:20])),
	}, nil
}

// VideoFrameSegmentHeader extends DataSegmentHeader with video-specific
// fields: i32 totalSegmentsNum + i32 playbackNo + i32 pairedSequenceNo + i32
// paritySegmentsNum.
type VideoFrameSegmentHeader struct {
	DataSegmentHeader
	TotalSegmentsNum  int32
	PlaybackNo        int32
	PairedSequenceNo  int32
	ParitySegmentsNum int32
}

const videoFrameSegmentHeaderLen = dataSegmentHeaderLen + 4*4

func (h VideoFrameSegmentHeader) Len() int { return videoFrameSegmentHeaderLen }

func (h VideoFrameSegmentHeader) Marshal() []byte {
	b := make([]byte, videoFrameSegmentHeaderLen)
	copy(b, h.DataSegmentHeader.Marshal())
	off := dataSegmentHeaderLen
	binary.LittleEndian.PutUint32(b[off:], uint32(h.TotalSegmentsNum))
	binary.LittleEndian.PutUint32(b[off+4:], uint32(h.PlaybackNo))
	binary.LittleEndian.PutUint32(b[off+8:], uint32(h.PairedSequenceNo))
	binary.LittleEndian.PutUint32(b[off+12:], uint32(h.ParitySegmentsNum))
	return b
}

func UnmarshalVideoFrameSegmentHeader(b []byte) (VideoFrameSegmentHeader, error) {
	if len(b) < videoFrameSegmentHeaderLen {
		return VideoFrameSegmentHeader{}, errShortHeader
	}
	base, err := unmarshalDataSegmentHeader(b[:dataSegmentHeaderLen])
	if err != nil {
		return VideoFrameSegmentHeader{}, err
	}
	off := dataSegmentHeaderLen
	return VideoFrameSegmentHeader{
		DataSegmentHeader: base,
		TotalSegmentsNum:  int32(binary.LittleEndian.Uint32(b[off:])),
		PlaybackNo:        int32(binary.LittleEndian.Uint32(b[off+4:])),
		PairedSequenceNo:  int32(binary.LittleEndian.Uint32(b[off+8:])),
		ParitySegmentsNum: int32(binary.LittleEndian.Uint32(b[off+12:])),
	}, nil
}

// IsOriginal classifies a received segment per spec.md §4.4: true iff the
// segment header's echoed nonce equals the satisfying Interest's nonce.
func IsOriginal(header DataSegmentHeader, interestNonce uint32) bool {
	return header.InterestNonce == interestNonce
}

// UnmarshalDataSegmentHeader is the exported form used by audio segments,
// which carry no video-specific fields.
func UnmarshalDataSegmentHeader(b []byte) (DataSegmentHeader, error) {
	return unmarshalDataSegmentHeader(b)
}
