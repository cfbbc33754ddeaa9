package engine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/buffer"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/face"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/packet"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/publisher"
)

// buildFixture publishes one key frame small enough to fit in a single data
// segment, with no parity, so the estimator's seeded (1, 0) expectation for
// the first batch matches what was actually produced.
func buildFixture(t *testing.T) (base name.Info, sample publisher.Sample) {
	t.Helper()
	base = name.Info{
		BasePrefix: name.Name{name.Generic("client")},
		APIVersion: 1,
		StreamType: name.StreamVideo,
		StreamName: "camera",
		StreamTS:   1000,
		ThreadName: "hi",
	}
	pub := publisher.New(base, packet.SliceParams{SegmentWireSize: 4096, HeaderLen: packet.DataSegmentHeader{}.Len()}, packet.FECParams{})

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	var err error
	sample, _, err = pub.PublishFrame(0, name.SampleKey, payload, 7, 5, 0, 0)
	if err != nil {
		t.Fatalf("PublishFrame: %v", err)
	}
	if len(sample.DataSegments) != 1 || len(sample.ParitySegments) != 0 {
		t.Fatalf("expected exactly 1 data segment and 0 parity, got %d/%d", len(sample.DataSegments), len(sample.ParitySegments))
	}
	return base, sample
}

func scriptedTransport(t *testing.T, base name.Info, sample publisher.Sample) *face.FakeTransport {
	t.Helper()
	transport := face.NewFakeTransport()
	for _, seg := range sample.Segments() {
		header, err := packet.UnmarshalDataSegmentHeader(seg.Wire)
		if err != nil {
			t.Fatalf("unmarshal header: %v", err)
		}
		transport.SetResponse(seg.Name.String(), face.Outcome{
			Kind:   face.OutcomeData,
			Data:   seg.Wire[header.Len():],
			Header: header,
		})
	}
	transport.SetResponse(sample.ManifestName.String(), face.Outcome{
		Kind: face.OutcomeData,
		Data: sample.ManifestWire,
	})

	rightmostName := base.Prefix(name.LevelThread).String()
	transport.SetResponse(rightmostName, face.Outcome{
		Kind: face.OutcomeData,
		Name: sample.DataSegments[0].Name,
	})
	return transport
}

func TestEngineFetchesAssemblesAndVerifiesOneSample(t *testing.T) {
	base, sample := buildFixture(t)
	transport := scriptedTransport(t, base, sample)

	eng := New(transport, Config{
		BasePrefix:     base.BasePrefix,
		APIVersion:     base.APIVersion,
		StreamType:     base.StreamType,
		StreamName:     base.StreamName,
		StreamTS:       base.StreamTS,
		ThreadName:     base.ThreadName,
		SamplePeriodMs: 33,
		GopSize:        1,
		TargetRate:     30,
	})

	eng.Start()
	defer eng.Stop()

	if got := eng.playbackQ.Len(); got != 1 {
		t.Fatalf("expected exactly one sample pushed to playback, got %d", got)
	}

	var gotSlot *buffer.Slot
	if ok := eng.playbackQ.Pop(func(slot *buffer.Slot, _ int64) { gotSlot = slot }); !ok {
		t.Fatal("expected Pop to return a slot")
	}
	if gotSlot == nil {
		t.Fatal("expected a non-nil slot from Pop")
	}
	if gotSlot.Info.SampleNo != sample.SampleNo {
		t.Fatalf("expected slot for sample %d, got %d", sample.SampleNo, gotSlot.Info.SampleNo)
	}
	if gotSlot.Verification != buffer.VerificationVerified {
		t.Fatalf("expected manifest verification to succeed, got %v", gotSlot.Verification)
	}

	var snapshot bytes.Buffer
	if err := eng.stats.WriteCSV(&snapshot); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.Contains(snapshot.String(), "segments_received_total") {
		t.Fatalf("expected segments_received_total in stats snapshot, got:\n%s", snapshot.String())
	}
}

func TestEngineRightmostRequestCarriesNoSegmentComponent(t *testing.T) {
	base, sample := buildFixture(t)
	transport := scriptedTransport(t, base, sample)

	eng := New(transport, Config{
		BasePrefix:     base.BasePrefix,
		APIVersion:     base.APIVersion,
		StreamType:     base.StreamType,
		StreamName:     base.StreamName,
		StreamTS:       base.StreamTS,
		ThreadName:     base.ThreadName,
		SamplePeriodMs: 33,
		GopSize:        1,
		TargetRate:     30,
	})
	eng.Start()
	defer eng.Stop()

	if len(transport.Sent) == 0 {
		t.Fatal("expected at least one Interest to have been sent")
	}
	first := transport.Sent[0]
	if first.Info.HasSegNo {
		t.Fatalf("expected the first (rightmost-discovery) Interest to carry no segment component, got HasSegNo=true")
	}
}
