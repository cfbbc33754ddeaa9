// Package reqqueue implements the Interest Request Queue (spec.md §4.3): a
// priority queue of in-flight DataRequests, drained onto the face executor.
package reqqueue

import (
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/packet"
)

type Status int

const (
	StatusCreated Status = iota
	StatusExpressed
	StatusTimeout
	StatusAppNack
	StatusNetworkNack
	StatusData
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusExpressed:
		return "expressed"
	case StatusTimeout:
		return "timeout"
	case StatusAppNack:
		return "app-nack"
	case StatusNetworkNack:
		return "network-nack"
	case StatusData:
		return "data"
	default:
		return "unknown"
	}
}

// StatusHandler is invoked exactly once per status transition, registered
// for a specific Status.
type StatusHandler func(*DataRequest)

// DataRequest is a request in flight (spec.md §4.3). Status transitions:
// Created -> Expressed -> (Data | Timeout | NetworkNack | AppNack).
type DataRequest struct {
	Name   name.Name
	Info   name.Info
	Status Status

	RequestTsUs int64
	ReplyTsUs   int64

	RetransmitCount int
	TimeoutCount    int
	NackCount       int

	Nonce uint32

	Data   []byte
	Header packet.DataSegmentHeader

	// ResolvedName is the name actually carried by the arrived Data packet,
	// which for a CanBePrefix (rightmost) Interest differs from Name: it is
	// the full, producer-assigned name the Interest matched.
	ResolvedName name.Name

	handlers map[Status][]StatusHandler
}

func New(n name.Name, info name.Info, nonce uint32) *DataRequest {
	return &DataRequest{Name: n, Info: info, Nonce: nonce, Status: StatusCreated, handlers: make(map[Status][]StatusHandler)}
}

// OnStatus registers a handler to run the next time (and every subsequent
// time) the request transitions into s.
func (r *DataRequest) OnStatus(s Status, h StatusHandler) {
	r.handlers[s] = append(r.handlers[s], h)
}

func (r *DataRequest) setStatus(s Status) {
	r.Status = s
	for _, h := range r.handlers[s] {
		h(r)
	}
}

// Deliver records an arrived Data reply and transitions to StatusData. Called
// by the face adapter from its transport's result callback. resolvedName is
// the Data packet's own name, which for a CanBePrefix Interest can extend
// beyond r.Name.
func (r *DataRequest) Deliver(replyTsUs int64, data []byte, header packet.DataSegmentHeader, resolvedName name.Name) {
	r.ReplyTsUs = replyTsUs
	r.Data = data
	r.Header = header
	if resolvedName != nil {
		r.ResolvedName = resolvedName
	} else {
		r.ResolvedName = r.Name
	}
	r.setStatus(StatusData)
}

// Timeout transitions to StatusTimeout, incrementing TimeoutCount.
func (r *DataRequest) Timeout() {
	r.TimeoutCount++
	r.setStatus(StatusTimeout)
}

// Nack transitions to StatusAppNack or StatusNetworkNack, incrementing
// NackCount.
func (r *DataRequest) Nack(isApp bool) {
	r.NackCount++
	if isApp {
		r.setStatus(StatusAppNack)
	} else {
		r.setStatus(StatusNetworkNack)
	}
}
