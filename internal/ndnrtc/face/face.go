// Package face adapts the Interest Request Queue's Expresser surface onto a
// named-data transport (spec.md §5's face executor). Business logic (status
// translation, header parsing) lives here and is transport-agnostic; the
// concrete named-data/ndnd wiring is isolated to ndnd.go so it can be
// swapped or faked in tests without touching this file.
package face

import (
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/clock"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/packet"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/reqqueue"
)

// OutcomeKind classifies how an expressed Interest was resolved.
type OutcomeKind int

const (
	OutcomeData OutcomeKind = iota
	OutcomeTimeout
	OutcomeNack
)

// Outcome is reported back to the Adapter once a Transport learns the fate
// of an expressed Interest.
type Outcome struct {
	Kind      OutcomeKind
	Data      []byte
	Header    packet.DataSegmentHeader
	IsAppNack bool
	// Name is the Data packet's own name, which for a CanBePrefix Interest
	// (e.g. a rightmost-discovery request) extends beyond the request's
	// own name. Left nil to mean "same as the request's name".
	Name name.Name
}

// Transport sends one Interest and invokes onResult exactly once with the
// eventual outcome. Implementations must not block; the callback runs on
// whatever goroutine the transport schedules it on.
type Transport interface {
	ExpressInterest(req *reqqueue.DataRequest, lifetimeMs int64, onResult func(Outcome)) error
}

// Adapter implements reqqueue.Expresser over a Transport, translating
// Outcomes into DataRequest status transitions.
type Adapter struct {
	transport   Transport
	clock       clock.Clock
	lifetimeMs  int64
}

func New(transport Transport, c clock.Clock, defaultLifetimeMs int64) *Adapter {
	return &Adapter{transport: transport, clock: c, lifetimeMs: defaultLifetimeMs}
}

// Express implements reqqueue.Expresser.
func (a *Adapter) Express(req *reqqueue.DataRequest) error {
	return a.transport.ExpressInterest(req, a.lifetimeMs, func(o Outcome) {
		switch o.Kind {
		case OutcomeData:
			req.Deliver(a.clock.NowUs(), o.Data, o.Header, o.Name)
		case OutcomeTimeout:
			req.Timeout()
		case OutcomeNack:
			req.Nack(o.IsAppNack)
		}
	})
}
