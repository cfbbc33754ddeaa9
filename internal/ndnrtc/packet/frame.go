package packet

import (
	"fmt"
	"math"

	"github.com/klauspost/reedsolomon"
)

// SliceParams bounds the per-segment wire budget.
type SliceParams struct {
	SegmentWireSize int // W, default 8000 per spec.md §4.4
	HeaderLen       int // dataSegmentHeaderLen or videoFrameSegmentHeaderLen
}

func (p SliceParams) payloadLen() int {
	return p.SegmentWireSize - p.HeaderLen - protocolOverhead
}

// SliceCount returns ceil(L/payloadLen) for a payload of length L.
func (p SliceParams) SliceCount(payloadLen int) int {
	per := p.payloadLen()
	if per <= 0 {
		return 0
	}
	return int(math.Ceil(float64(payloadLen) / float64(per)))
}

// Slice cuts payload into data segments of payloadLen bytes, the last
// possibly short.
func Slice(payload []byte, p SliceParams) [][]byte {
	per := p.payloadLen()
	if per <= 0 || len(payload) == 0 {
		return nil
	}
	n := p.SliceCount(len(payload))
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		start := i * per
		end := start + per
		if end > len(payload) {
			end = len(payload)
		}
		out = append(out, payload[start:end])
	}
	return out
}

// Merge concatenates data segments back into the original payload. It does
// not trim trailing padding; callers that zero-padded for FEC must truncate
// to the known payload length themselves.
func Merge(segments [][]byte) []byte {
	var total int
	for _, s := range segments {
		total += len(s)
	}
	out := make([]byte, 0, total)
	for _, s := range segments {
		out = append(out, s...)
	}
	return out
}

// FECParams controls Reed-Solomon parity generation (spec.md §4.4).
type FECParams struct {
	Ratio   float64 // default 1.0
	Enabled bool
}

// ParityCount returns nParity = ceil(ratio*nData), minimum 1 when enabled.
func (f FECParams) ParityCount(nData int) int {
	if !f.Enabled || nData <= 0 {
		return 0
	}
	n := int(math.Ceil(f.Ratio * float64(nData)))
	if n < 1 {
		n = 1
	}
	return n
}

// Encode zero-pads payload to nData*payloadLen, slices it into nData data
// segments, and produces nParity Reed-Solomon parity segments of the same
// length.
func Encode(payload []byte, p SliceParams, fec FECParams) (data, parity [][]byte, err error) {
	per := p.payloadLen()
	if per <= 0 {
		return nil, nil, fmt.Errorf("packet: non-positive payload length (wire size too small for header)")
	}
	nData := p.SliceCount(len(payload))
	if nData == 0 {
		nData = 1
	}
	padded := make([]byte, nData*per)
	copy(padded, payload)

	data = make([][]byte, nData)
	for i := 0; i < nData; i++ {
		data[i] = padded[i*per : (i+1)*per]
	}

	nParity := fec.ParityCount(nData)
	if nParity == 0 {
		return data, nil, nil
	}

	enc, err := reedsolomon.New(nData, nParity)
	if err != nil {
		return nil, nil, fmt.Errorf("packet: reedsolomon.New: %w", err)
	}
	shards := make([][]byte, nData+nParity)
	copy(shards, data)
	for i := nData; i < nData+nParity; i++ {
		shards[i] = make([]byte, per)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, nil, fmt.Errorf("packet: reedsolomon encode: %w", err)
	}
	parity = shards[nData:]
	return data, parity, nil
}

// Decode reconstructs the original nData-shard payload from any nData of
// the nData+nParity shards. Missing shards must be nil in shards.
func Decode(shards [][]byte, nData, nParity int) ([]byte, error) {
	if nParity == 0 {
		return Merge(shards), nil
	}
	enc, err := reedsolomon.New(nData, nParity)
	if err != nil {
		return nil, fmt.Errorf("packet: reedsolomon.New: %w", err)
	}
	missing := false
	for _, s := range shards[:nData] {
		if s == nil {
			missing = true
			break
		}
	}
	if missing {
		if rerr := enc.Reconstruct(shards); rerr != nil {
			return nil, fmt.Errorf("packet: reedsolomon reconstruct: %w", rerr)
		}
	}
	return Merge(shards[:nData]), nil
}
