package packet

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// SampleType distinguishes key vs delta frames in FrameMeta (spec.md §6).
type SampleType int

const (
	SampleTypeDelta SampleType = iota
	SampleTypeKey
)

// FrameMeta is the per-frame protobuf payload (spec.md §6): capture
// timestamp, data/parity segment counts, GOP position, sample type, and
// producer-measured generation delay. Hand-encoded with protowire rather
// than protoc-generated bindings, since no .proto build step runs here.
type FrameMeta struct {
	CaptureTimestamp time.Time
	DataSegNum       uint32
	ParitySize       uint32
	GopNumber        uint32
	GopPosition      uint32
	Type             SampleType
	GenerationDelayMs float64
}

const (
	fieldFrameMetaCapture    = 1
	fieldFrameMetaDataSegNum = 2
	fieldFrameMetaParitySize = 3
	fieldFrameMetaGopNumber  = 4
	fieldFrameMetaGopPos     = 5
	fieldFrameMetaType       = 6
	fieldFrameMetaGenDelay   = 7
)

func (m FrameMeta) Marshal() []byte {
	var b []byte
	ts := timestamppb.New(m.CaptureTimestamp)
	tsBytes := marshalTimestamp(ts)
	b = protowire.AppendTag(b, fieldFrameMetaCapture, protowire.BytesType)
	b = protowire.AppendBytes(b, tsBytes)
	b = protowire.AppendTag(b, fieldFrameMetaDataSegNum, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.DataSegNum))
	b = protowire.AppendTag(b, fieldFrameMetaParitySize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ParitySize))
	b = protowire.AppendTag(b, fieldFrameMetaGopNumber, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.GopNumber))
	b = protowire.AppendTag(b, fieldFrameMetaGopPos, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.GopPosition))
	b = protowire.AppendTag(b, fieldFrameMetaType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))
	b = protowire.AppendTag(b, fieldFrameMetaGenDelay, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, doubleBits(m.GenerationDelayMs))
	return b
}

func UnmarshalFrameMeta(b []byte) (FrameMeta, error) {
	var m FrameMeta
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return FrameMeta{}, fmt.Errorf("packet: bad FrameMeta tag")
		}
		b = b[n:]
		switch num {
		case fieldFrameMetaCapture:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return FrameMeta{}, fmt.Errorf("packet: bad FrameMeta capture_timestamp")
			}
			ts, err := unmarshalTimestamp(v)
			if err != nil {
				return FrameMeta{}, err
			}
			m.CaptureTimestamp = ts
			b = b[n:]
		case fieldFrameMetaDataSegNum:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return FrameMeta{}, fmt.Errorf("packet: bad FrameMeta dataseg_num")
			}
			m.DataSegNum = uint32(v)
			b = b[n:]
		case fieldFrameMetaParitySize:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return FrameMeta{}, fmt.Errorf("packet: bad FrameMeta parity_size")
			}
			m.ParitySize = uint32(v)
			b = b[n:]
		case fieldFrameMetaGopNumber:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return FrameMeta{}, fmt.Errorf("packet: bad FrameMeta gop_number")
			}
			m.GopNumber = uint32(v)
			b = b[n:]
		case fieldFrameMetaGopPos:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return FrameMeta{}, fmt.Errorf("packet: bad FrameMeta gop_position")
			}
			m.GopPosition = uint32(v)
			b = b[n:]
		case fieldFrameMetaType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return FrameMeta{}, fmt.Errorf("packet: bad FrameMeta type")
			}
			m.Type = SampleType(v)
			b = b[n:]
		case fieldFrameMetaGenDelay:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return FrameMeta{}, fmt.Errorf("packet: bad FrameMeta generation_delay_ms")
			}
			m.GenerationDelayMs = bitsDouble(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return FrameMeta{}, fmt.Errorf("packet: bad FrameMeta unknown field")
			}
			b = b[n:]
		}
	}
	return m, nil
}

// StreamMeta is the long-freshness stream-level protobuf payload.
type StreamMeta struct {
	Width, Height int32
	Bitrate       uint32
	GopSize       uint32
	Description   string
}

const (
	fieldStreamMetaWidth  = 1
	fieldStreamMetaHeight = 2
	fieldStreamMetaBitrate = 3
	fieldStreamMetaGopSize = 4
	fieldStreamMetaDesc    = 5
)

func (m StreamMeta) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldStreamMetaWidth, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Width))
	b = protowire.AppendTag(b, fieldStreamMetaHeight, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Height))
	b = protowire.AppendTag(b, fieldStreamMetaBitrate, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Bitrate))
	b = protowire.AppendTag(b, fieldStreamMetaGopSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.GopSize))
	b = protowire.AppendTag(b, fieldStreamMetaDesc, protowire.BytesType)
	b = protowire.AppendString(b, m.Description)
	return b
}

func UnmarshalStreamMeta(b []byte) (StreamMeta, error) {
	var m StreamMeta
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return StreamMeta{}, fmt.Errorf("packet: bad StreamMeta tag")
		}
		b = b[n:]
		switch num {
		case fieldStreamMetaWidth:
			v, n := protowire.ConsumeVarint(b)
			m.Width = int32(v)
			b = b[n:]
		case fieldStreamMetaHeight:
			v, n := protowire.ConsumeVarint(b)
			m.Height = int32(v)
			b = b[n:]
		case fieldStreamMetaBitrate:
			v, n := protowire.ConsumeVarint(b)
			m.Bitrate = uint32(v)
			b = b[n:]
		case fieldStreamMetaGopSize:
			v, n := protowire.ConsumeVarint(b)
			m.GopSize = uint32(v)
			b = b[n:]
		case fieldStreamMetaDesc:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return StreamMeta{}, fmt.Errorf("packet: bad StreamMeta description")
			}
			m.Description = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return StreamMeta{}, fmt.Errorf("packet: bad StreamMeta unknown field")
			}
			b = b[n:]
		}
	}
	return m, nil
}

// LiveMeta carries producer-observed rate/size estimates, refreshed about
// once per GOP (spec.md §6).
type LiveMeta struct {
	Timestamp         time.Time
	Framerate         float64
	SegnumEstimate    uint32
	FramesizeEstimate uint32
	SegnumDelta       uint32
	SegnumDeltaParity uint32
	SegnumKey         uint32
	SegnumKeyParity   uint32
}

const (
	fieldLiveMetaTimestamp  = 1
	fieldLiveMetaFramerate  = 2
	fieldLiveMetaSegnumEst  = 3
	fieldLiveMetaFramesize  = 4
	fieldLiveMetaSegDelta   = 5
	fieldLiveMetaSegDeltaP  = 6
	fieldLiveMetaSegKey     = 7
	fieldLiveMetaSegKeyP    = 8
)

func (m LiveMeta) Marshal() []byte {
	var b []byte
	ts := timestamppb.New(m.Timestamp)
	b = protowire.AppendTag(b, fieldLiveMetaTimestamp, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalTimestamp(ts))
	b = protowire.AppendTag(b, fieldLiveMetaFramerate, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, doubleBits(m.Framerate))
	b = protowire.AppendTag(b, fieldLiveMetaSegnumEst, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.SegnumEstimate))
	b = protowire.AppendTag(b, fieldLiveMetaFramesize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.FramesizeEstimate))
	b = protowire.AppendTag(b, fieldLiveMetaSegDelta, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.SegnumDelta))
	b = protowire.AppendTag(b, fieldLiveMetaSegDeltaP, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.SegnumDeltaParity))
	b = protowire.AppendTag(b, fieldLiveMetaSegKey, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.SegnumKey))
	b = protowire.AppendTag(b, fieldLiveMetaSegKeyP, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.SegnumKeyParity))
	return b
}

func UnmarshalLiveMeta(b []byte) (LiveMeta, error) {
	var m LiveMeta
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return LiveMeta{}, fmt.Errorf("packet: bad LiveMeta tag")
		}
		b = b[n:]
		switch num {
		case fieldLiveMetaTimestamp:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return LiveMeta{}, fmt.Errorf("packet: bad LiveMeta timestamp")
			}
			ts, err := unmarshalTimestamp(v)
			if err != nil {
				return LiveMeta{}, err
			}
			m.Timestamp = ts
			b = b[n:]
		case fieldLiveMetaFramerate:
			v, n := protowire.ConsumeFixed64(b)
			m.Framerate = bitsDouble(v)
			b = b[n:]
		case fieldLiveMetaSegnumEst:
			v, n := protowire.ConsumeVarint(b)
			m.SegnumEstimate = uint32(v)
			b = b[n:]
		case fieldLiveMetaFramesize:
			v, n := protowire.ConsumeVarint(b)
			m.FramesizeEstimate = uint32(v)
			b = b[n:]
		case fieldLiveMetaSegDelta:
			v, n := protowire.ConsumeVarint(b)
			m.SegnumDelta = uint32(v)
			b = b[n:]
		case fieldLiveMetaSegDeltaP:
			v, n := protowire.ConsumeVarint(b)
			m.SegnumDeltaParity = uint32(v)
			b = b[n:]
		case fieldLiveMetaSegKey:
			v, n := protowire.ConsumeVarint(b)
			m.SegnumKey = uint32(v)
			b = b[n:]
		case fieldLiveMetaSegKeyP:
			v, n := protowire.ConsumeVarint(b)
			m.SegnumKeyParity = uint32(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return LiveMeta{}, fmt.Errorf("packet: bad LiveMeta unknown field")
			}
			b = b[n:]
		}
	}
	return m, nil
}

// marshalTimestamp encodes a timestamppb.Timestamp using the same two-field
// (seconds, nanos) wire shape google.protobuf.Timestamp defines, without
// depending on timestamppb's own Marshal (which requires full proto
// reflection plumbing we don't generate here).
func marshalTimestamp(ts *timestamppb.Timestamp) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ts.GetSeconds()))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ts.GetNanos()))
	return b
}

func unmarshalTimestamp(b []byte) (time.Time, error) {
	var seconds int64
	var nanos int32
	for len(b) > 0 {
		num, _, n := protowire.ConsumeTag(b)
		if n < 0 {
			return time.Time{}, fmt.Errorf("packet: bad Timestamp tag")
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			seconds = int64(v)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			nanos = int32(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, protowire.VarintType, b)
			if n < 0 {
				return time.Time{}, fmt.Errorf("packet: bad Timestamp field")
			}
			b = b[n:]
		}
	}
	return timestamppb.New(time.Unix(seconds, int64(nanos))).AsTime(), nil
}
