package face

import (
	"testing"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/clock"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/packet"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/reqqueue"
)

func testRequest() *reqqueue.DataRequest {
	n := name.Name{name.Generic("test"), name.Segment(0)}
	return reqqueue.New(n, name.Info{}, 42)
}

func TestAdapterDeliversDataOutcome(t *testing.T) {
	transport := NewFakeTransport()
	header := packet.DataSegmentHeader{InterestNonce: 42, GenerationDelayMs: 5}
	req := testRequest()
	transport.SetResponse(req.Name.String(), Outcome{Kind: OutcomeData, Data: []byte("payload"), Header: header})

	c := clock.NewFake(0)
	a := New(transport, c, 2000)

	if err := a.Express(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != reqqueue.StatusData {
		t.Fatalf("expected StatusData, got %v", req.Status)
	}
	if string(req.Data) != "payload" {
		t.Fatalf("expected payload passed through, got %q", req.Data)
	}
	if req.Header.InterestNonce != 42 {
		t.Fatalf("expected header passed through")
	}
}

func TestAdapterAppliesTimeoutOutcome(t *testing.T) {
	transport := NewFakeTransport()
	transport.Default = Outcome{Kind: OutcomeTimeout}
	req := testRequest()

	a := New(transport, clock.NewFake(0), 2000)
	a.Express(req)

	if req.Status != reqqueue.StatusTimeout {
		t.Fatalf("expected StatusTimeout, got %v", req.Status)
	}
	if req.TimeoutCount != 1 {
		t.Fatalf("expected TimeoutCount 1, got %d", req.TimeoutCount)
	}
}

func TestAdapterAppliesNackOutcome(t *testing.T) {
	transport := NewFakeTransport()
	transport.Default = Outcome{Kind: OutcomeNack, IsAppNack: true}
	req := testRequest()

	a := New(transport, clock.NewFake(0), 2000)
	a.Express(req)

	if req.Status != reqqueue.StatusAppNack {
		t.Fatalf("expected StatusAppNack, got %v", req.Status)
	}
	if req.NackCount != 1 {
		t.Fatalf("expected NackCount 1, got %d", req.NackCount)
	}
}

func TestAdapterRecordsSentRequests(t *testing.T) {
	transport := NewFakeTransport()
	req := testRequest()
	a := New(transport, clock.NewFake(0), 2000)
	a.Express(req)

	if len(transport.Sent) != 1 || transport.Sent[0] != req {
		t.Fatalf("expected request recorded on the fake transport")
	}
}
