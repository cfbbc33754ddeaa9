// Package publisher is a test-only fixture generator: it produces the exact
// wire bytes (segment names, headers, manifests, meta packets) a producer
// would publish for a sample, so consumer-side tests can drive the fetch
// engine against realistic data without standing up a real producer.
//
// Grounded on the wire formats in packet/frame.go, packet/header.go,
// packet/manifest.go, packet/meta.go and the naming scheme in
// name/namespace.go. The producer side is out of scope for the engine
// itself (spec.md §1); nothing here is imported by cmd/ndnrtc-fetch.
package publisher

import (
	"time"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/packet"
)

// Segment is one named, wire-encoded Data segment a fixture publishes.
type Segment struct {
	Name name.Name
	Wire []byte // header.Marshal() + shard payload
}

// Sample is everything a producer would publish for one frame: the data
// and parity segments plus the signed manifest that lists their digests.
type Sample struct {
	SampleNo     uint64
	DataSegments []Segment
	ParitySegments []Segment
	ManifestName name.Name
	ManifestWire []byte
}

// Segments returns every segment in the sample, data then parity, matching
// manifest digest order (packet.BuildManifest).
func (s Sample) Segments() []Segment {
	out := make([]Segment, 0, len(s.DataSegments)+len(s.ParitySegments))
	out = append(out, s.DataSegments...)
	out = append(out, s.ParitySegments...)
	return out
}

// Publisher builds fixtures for one stream/thread, reusing a base
// name.Info template for every sample it emits.
type Publisher struct {
	base  name.Info
	slice packet.SliceParams
	fec   packet.FECParams
}

// New builds a Publisher. base should have BasePrefix/APIVersion/StreamType/
// StreamName/ThreadName/StreamTS populated; per-sample fields are overwritten.
func New(base name.Info, slice packet.SliceParams, fec packet.FECParams) *Publisher {
	return &Publisher{base: base, slice: slice, fec: fec}
}

// PublishFrame slices payload into data/parity segments, assigns names, and
// builds the accompanying manifest for sampleNo. interestNonce and
// generationDelayMs are stamped into every segment's DataSegmentHeader,
// mirroring what a producer echoes back once it has actually served the
// Interest (spec.md §4.4).
func (p *Publisher) PublishFrame(sampleNo uint64, class name.SampleClass, payload []byte, interestNonce uint32, generationDelayMs float64, gopNumber, gopPosition uint32) (Sample, packet.FrameMeta, error) {
	data, parity, err := packet.Encode(payload, p.slice, p.fec)
	if err != nil {
		return Sample{}, packet.FrameMeta{}, err
	}

	header := packet.DataSegmentHeader{
		InterestNonce:     interestNonce,
		InterestArrivalMs: float64(time.Now().UnixMilli()),
		GenerationDelayMs: generationDelayMs,
	}

	info := p.base
	info.SampleClassVal = class
	info.IsDelta = class == name.SampleDelta
	info.HasSeqNo = true
	info.SampleNo = sampleNo
	info.SegmentClassVal = name.SegmentData
	info.HasSegNo = true

	sample := Sample{SampleNo: sampleNo}
	for i, shard := range data {
		info.SegNo = uint64(i)
		info.IsParity = false
		wire := make([]byte, 0, header.Len()+len(shard))
		wire = append(wire, header.Marshal()...)
		wire = append(wire, shard...)
		sample.DataSegments = append(sample.DataSegments, Segment{Name: info.Prefix(name.LevelSegment), Wire: wire})
	}
	for i, shard := range parity {
		info.SegNo = uint64(i)
		info.IsParity = true
		wire := make([]byte, 0, header.Len()+len(shard))
		wire = append(wire, header.Marshal()...)
		wire = append(wire, shard...)
		sample.ParitySegments = append(sample.ParitySegments, Segment{Name: info.Prefix(name.LevelSegment), Wire: wire})
	}

	// Manifest digests cover each segment's payload as delivered to the
	// consumer (header.Len() stripped off), matching what
	// validator.ValidateSlot hashes against req.Data.
	manifestSegments := make([][]byte, 0, len(data))
	manifestSegments = append(manifestSegments, data...)
	paritySegments := make([][]byte, 0, len(parity))
	paritySegments = append(paritySegments, parity...)
	manifest := packet.BuildManifest(manifestSegments, paritySegments)
	sample.ManifestWire = manifest.Marshal()

	manifestInfo := info
	manifestInfo.SegmentClassVal = name.SegmentManifest
	manifestInfo.IsParity = false
	sample.ManifestName = manifestInfo.Prefix(name.LevelSegment)

	meta := packet.FrameMeta{
		CaptureTimestamp:  time.Now(),
		DataSegNum:        uint32(len(data)),
		ParitySize:        uint32(len(parity)),
		GopNumber:         gopNumber,
		GopPosition:       gopPosition,
		GenerationDelayMs: generationDelayMs,
	}
	if class == name.SampleKey {
		meta.Type = packet.SampleTypeKey
	} else {
		meta.Type = packet.SampleTypeDelta
	}

	return sample, meta, nil
}

// PublishStreamMeta builds the long-freshness StreamMeta packet's name and
// wire encoding, at metaVersion.
func (p *Publisher) PublishStreamMeta(meta packet.StreamMeta, metaVersion uint64) (name.Name, []byte) {
	info := p.base
	info.IsMeta = true
	info.MetaVersion = metaVersion
	info.HasSegNo = true
	info.SegNo = 0
	return info.Prefix(name.LevelSegment), meta.Marshal()
}

// PublishLiveMeta builds the frequently-refreshed LiveMeta packet's name and
// wire encoding, at metaVersion.
func (p *Publisher) PublishLiveMeta(meta packet.LiveMeta, metaVersion uint64) (name.Name, []byte) {
	info := p.base
	info.IsMeta = true
	info.IsLiveMeta = true
	info.MetaVersion = metaVersion
	info.HasSegNo = true
	info.SegNo = 0
	return info.Prefix(name.LevelSegment), meta.Marshal()
}
