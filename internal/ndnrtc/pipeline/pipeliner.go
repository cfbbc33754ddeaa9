// Package pipeline implements the Pipeliner and Pipeline-Control FSM
// (spec.md §4.9, §4.10).
package pipeline

import (
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/buffer"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/reqqueue"
)

const defaultInterestLifetimeMs = 2000

// SampleEstimator supplies the expected number of data/parity segments for
// the next sample class, learned from live-meta.
type SampleEstimator interface {
	ExpectedSegments(class name.SampleClass) (nData, nParity int)
}

// Enqueuer is the Interest Request Queue's enqueue surface, as seen by the
// Pipeliner.
type Enqueuer interface {
	Enqueue(req *reqqueue.DataRequest, priority reqqueue.DeadlinePriority)
}

// BufferPlaceholder is Buffer's Requested surface, as seen by the
// Pipeliner (optional placeholder insertion).
type BufferPlaceholder interface {
	Requested(reqs []*reqqueue.DataRequest) (*buffer.Slot, error)
}

// Pipeliner constructs Interest batches for the next sample and enqueues
// them (spec.md §4.10).
type Pipeliner struct {
	estimator SampleEstimator
	queue     Enqueuer
	buf       BufferPlaceholder

	basePrefix name.Name
	apiVersion uint64
	streamType name.StreamType
	streamName string
	streamTS   uint64
	threadName string

	nextSampleNo  uint64
	needClass     name.SampleClass
	needMetadata  bool
	useFEC        bool
	stride        uint64
	interestLifetimeMs int64
	nowMs         func() int64
	nonce         func() uint32
}

type Option func(*Pipeliner)

func WithInterestLifetime(ms int64) Option {
	return func(p *Pipeliner) { p.interestLifetimeMs = ms }
}

func WithFEC(enabled bool) Option {
	return func(p *Pipeliner) { p.useFEC = enabled }
}

// WithStride sets the sequence-number increment ExpressNextBatch advances
// by (the consumer tool's --pp-step K, default 1).
func WithStride(step uint64) Option {
	return func(p *Pipeliner) { p.stride = step }
}

func New(estimator SampleEstimator, queue Enqueuer, buf BufferPlaceholder,
	basePrefix name.Name, apiVersion uint64, streamType name.StreamType, streamName string,
	streamTS uint64, threadName string, nowMs func() int64, nonce func() uint32, opts ...Option) *Pipeliner {
	p := &Pipeliner{
		estimator: estimator, queue: queue, buf: buf,
		basePrefix: basePrefix, apiVersion: apiVersion, streamType: streamType,
		streamName: streamName, streamTS: streamTS, threadName: threadName,
		interestLifetimeMs: defaultInterestLifetimeMs,
		stride: 1,
		nowMs: nowMs, nonce: nonce,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetNeedSample overrides the next sample class.
func (p *Pipeliner) SetNeedSample(cls name.SampleClass) { p.needClass = cls }

// SetNeedMetadata forces a rightmost Interest on the next express.
func (p *Pipeliner) SetNeedMetadata() { p.needMetadata = true }

func (p *Pipeliner) baseInfo() name.Info {
	return name.Info{
		BasePrefix: p.basePrefix,
		APIVersion: p.apiVersion,
		StreamType: p.streamType,
		StreamName: p.streamName,
		StreamTS:   p.streamTS,
		ThreadName: p.threadName,
	}
}

// ExpressRightmost sends a single Interest under the stream prefix with no
// segment component, used to learn the producer's current sequence number.
func (p *Pipeliner) ExpressRightmost() *reqqueue.DataRequest {
	info := p.baseInfo()
	n := info.Prefix(name.LevelThread)
	req := reqqueue.New(n, info, p.nonce())
	p.queue.Enqueue(req, reqqueue.FromNow(p.nowMs()*1000, p.interestLifetimeMs*1000))
	p.needMetadata = false
	return req
}

// ExpressLiveMeta sends a single Interest for the thread's current LiveMeta
// packet (no version/segment component, so the producer's freshest one is
// matched by CanBePrefix), used to periodically refresh the segment-count
// estimate (spec.md §4.1/§5).
func (p *Pipeliner) ExpressLiveMeta() *reqqueue.DataRequest {
	info := p.baseInfo()
	info.IsMeta = true
	info.IsLiveMeta = true
	n := info.Prefix(name.LevelSample)
	req := reqqueue.New(n, info, p.nonce())
	p.queue.Enqueue(req, reqqueue.FromNow(p.nowMs()*1000, p.interestLifetimeMs*1000))
	return req
}

// ExpressNextBatch constructs the Interest batch for the next sample:
// [seg 0...segDataAvg-1] plus [parity 0...segParityAvg-1] if FEC is enabled.
func (p *Pipeliner) ExpressNextBatch() []*reqqueue.DataRequest {
	nData, nParity := p.estimator.ExpectedSegments(p.needClass)
	if nData <= 0 {
		nData = 1
	}
	info := p.baseInfo()
	info.SampleClassVal = p.needClass
	info.IsDelta = p.needClass != name.SampleKey
	info.SampleNo = p.nextSampleNo
	info.HasSeqNo = true
	info.SegmentClassVal = name.SegmentData
	info.HasSegNo = true

	reqs := make([]*reqqueue.DataRequest, 0, nData+nParity)
	for seg := 0; seg < nData; seg++ {
		segInfo := info
		segInfo.SegNo = uint64(seg)
		n := segInfo.Prefix(name.LevelSegment)
		reqs = append(reqs, reqqueue.New(n, segInfo, p.nonce()))
	}
	if p.useFEC {
		for seg := 0; seg < nParity; seg++ {
			segInfo := info
			segInfo.IsParity = true
			segInfo.SegmentClassVal = name.SegmentParity
			segInfo.SegNo = uint64(seg)
			n := segInfo.Prefix(name.LevelSegment)
			reqs = append(reqs, reqqueue.New(n, segInfo, p.nonce()))
		}
	}

	manifestInfo := info
	manifestInfo.IsParity = false
	manifestInfo.SegmentClassVal = name.SegmentManifest
	reqs = append(reqs, reqqueue.New(manifestInfo.Prefix(name.LevelSegment), manifestInfo, p.nonce()))

	if p.buf != nil {
		if _, err := p.buf.Requested(reqs); err != nil {
			// caller observes via logging; the batch is still dispatched
		}
	}
	deadline := reqqueue.FromNow(p.nowMs()*1000, p.interestLifetimeMs*1000)
	for _, r := range reqs {
		p.queue.Enqueue(r, deadline)
	}
	p.nextSampleNo += p.stride
	return reqs
}

func (p *Pipeliner) SetNextSampleNo(n uint64) { p.nextSampleNo = n }
func (p *Pipeliner) NextSampleNo() uint64      { return p.nextSampleNo }
