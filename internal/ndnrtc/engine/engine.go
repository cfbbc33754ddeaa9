// Package engine wires the NDNRTC consumer fetching components (spec.md
// §2's system overview) into one running pipeline: Interest Request Queue,
// Buffer, DRD/pipeline/latency control, Pipeline-Control FSM, retransmission,
// playback queue, and playout, driven off a single face.Transport.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ndnrtc/fetch-engine/internal/logger"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/buffer"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/clock"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/decode"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/drd"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/face"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/packet"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/pipeline"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/pipelinectl"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/playback"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/playout"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/reqqueue"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/rtx"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/stats"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/validator"
)

const (
	defaultSamplePeriodMs      = 33
	defaultGopSize             = 30
	defaultInterestLifetimeMs  = 2000
	defaultStarvationMs        = 5000
	defaultStarvationCheckMs   = 500
	defaultStabilityK          = 1.0
	defaultStabilityN          = 5
	defaultDrdChangeThreshold  = 2.0
)

// liveMetaRefreshMs derives the periodic LiveMeta refresh interval: about
// once per GOP, matching the producer's own refresh cadence (packet.LiveMeta
// doc comment, spec.md §6).
func liveMetaRefreshMs(gopSize int, samplePeriodMs int64) int64 {
	ms := int64(gopSize) * samplePeriodMs
	if ms <= 0 {
		ms = defaultSamplePeriodMs * defaultGopSize
	}
	return ms
}

// Config describes one fetched stream/thread and its tuning knobs (spec.md
// §6's --pp-size/--pp-step/--pbc-rate/--use-fec surface, plumbed in from
// cmd/ndnrtc-fetch/flags.go).
type Config struct {
	BasePrefix name.Name
	APIVersion uint64
	StreamType name.StreamType
	StreamName string
	StreamTS   uint64
	ThreadName string

	GopSize        int
	SamplePeriodMs int64
	TargetRate     float64
	UseFEC         bool

	// PipelineSize pins the outstanding-sample pipeline limit (--pp-size N);
	// 0 leaves it DRD-driven.
	PipelineSize int
	// SampleStride is the sequence-number increment each batch advances by
	// (--pp-step K); 0 defaults to 1.
	SampleStride uint64

	InterestLifetimeMs  int64
	DecodeQueueCapacity  int
	StarvationTimeoutMs int64
	StarvationCheckMs   int64

	StabilityK          float64
	StabilityN          int
	DrdChangeThreshold  float64

	RtxPeriodicTick bool

	// ManifestChecker verifies a manifest packet's own signature; defaults
	// to validator.NoopChecker when nil.
	ManifestChecker validator.ManifestChecker
	// Decoder turns an assembled video slot into a decode.Image; defaults to
	// FECMergeDecoder (FEC-reconstructs the payload, performs no pixel
	// decode: codec design is out of scope, spec.md §1 Non-goals).
	Decoder decode.Decoder
	// AudioSink receives assembled audio slots; ignored for video streams.
	AudioSink func(slot *buffer.Slot)
}

func (c *Config) normalize() {
	if c.SamplePeriodMs <= 0 {
		c.SamplePeriodMs = defaultSamplePeriodMs
	}
	if c.GopSize <= 0 {
		c.GopSize = defaultGopSize
	}
	if c.TargetRate <= 0 {
		c.TargetRate = 1000.0 / float64(c.SamplePeriodMs)
	}
	if c.InterestLifetimeMs <= 0 {
		c.InterestLifetimeMs = defaultInterestLifetimeMs
	}
	if c.DecodeQueueCapacity <= 0 {
		c.DecodeQueueCapacity = 3 * c.GopSize
	}
	if c.StarvationTimeoutMs <= 0 {
		c.StarvationTimeoutMs = defaultStarvationMs
	}
	if c.StarvationCheckMs <= 0 {
		c.StarvationCheckMs = defaultStarvationCheckMs
	}
	if c.StabilityK <= 0 {
		c.StabilityK = defaultStabilityK
	}
	if c.StabilityN <= 0 {
		c.StabilityN = defaultStabilityN
	}
	if c.DrdChangeThreshold <= 0 {
		c.DrdChangeThreshold = defaultDrdChangeThreshold
	}
	if c.SampleStride <= 0 {
		c.SampleStride = 1
	}
}

// Engine owns one running consumer fetching pipeline for a single
// stream/thread (spec.md §2).
type Engine struct {
	cfg Config
	log slogLogger

	clock clock.Clock

	pool *buffer.SlotPool
	buf  *buffer.Buffer

	reqQueue *reqqueue.Queue
	hook     *enqueueHook

	drd       *drd.Estimator
	ic        *pipelinectl.InterestControl
	latency   *pipelinectl.LatencyControl
	estimator *sampleEstimator

	playbackQ  *playback.Queue
	playoutP   *playout.Playout
	playoutCtl *playout.Control
	decodeQ    *decode.Queue

	rtx       *rtx.Controller
	validator *validator.Validator

	pipeliner *pipeline.Pipeliner
	fsm       *pipeline.FSM

	stats *stats.Collector

	sessionID string
	nonce     atomic.Uint32

	lastActivityMs atomic.Int64
	stopCh         chan struct{}
	wg             sync.WaitGroup
}

// slogLogger is the subset of *slog.Logger the engine calls; aliased so this
// file doesn't need to import log/slog just for the field type.
type slogLogger = interface {
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// New builds an Engine around transport, ready to Start. The returned
// Engine owns no goroutines until Start is called.
func New(transport face.Transport, cfg Config) *Engine {
	cfg.normalize()

	clk := clock.NewSystem()
	pool := buffer.NewSlotPool()
	buf := buffer.New(pool)

	faceAdapter := face.New(transport, clk, cfg.InterestLifetimeMs)
	reqQ := reqqueue.New(faceAdapter, clk)

	drdEst := drd.New()
	ic := pipelinectl.NewInterestControl()
	ic.TargetRateUpdate(cfg.TargetRate)
	if cfg.PipelineSize > 0 {
		ic.SetFixedLimit(float64(cfg.PipelineSize))
	}

	playbackQ := playback.New(cfg.SamplePeriodMs)

	checker := cfg.ManifestChecker
	if checker == nil {
		checker = validator.NoopChecker{}
	}
	val := validator.New(checker)

	sessionID := uuid.New().String()
	log := logger.WithSession(logger.Logger().With("component", "engine"), sessionID, cfg.StreamName)

	e := &Engine{
		cfg:       cfg,
		log:       log,
		clock:     clk,
		pool:      pool,
		buf:       buf,
		reqQueue:  reqQ,
		drd:       drdEst,
		ic:        ic,
		estimator: newSampleEstimator(),
		playbackQ: playbackQ,
		validator: val,
		stats:     stats.New(),
		sessionID: sessionID,
		stopCh:    make(chan struct{}),
	}
	e.nonce.Store(seedNonce())

	var process playout.SampleProcessor
	if cfg.StreamType == name.StreamVideo {
		decoder := cfg.Decoder
		if decoder == nil {
			decoder = FECMergeDecoder{}
		}
		e.decodeQ = decode.New(decoder, cfg.DecodeQueueCapacity)
		process = func(slot *buffer.Slot) {
			if err := e.decodeQ.Push(slot); err != nil {
				e.log.Warn("decode push failed", "error", err)
			}
		}
	} else {
		sink := cfg.AudioSink
		process = func(slot *buffer.Slot) {
			if sink != nil {
				sink(slot)
			}
		}
	}

	e.playoutP = playout.New(playbackQ, process)
	e.playoutCtl = playout.NewControl(e.playoutP, playbackQ, clk.NowMs)

	e.latency = pipelinectl.NewLatencyControl(thresholdSink{playout: e.playoutCtl, stats: e.stats}, cfg.StabilityK, cfg.StabilityN, cfg.DrdChangeThreshold)
	e.latency.SetSamplePeriod(float64(cfg.SamplePeriodMs))
	e.latency.SetTargetRate(cfg.TargetRate)

	e.rtx = rtx.New(drdEst, playbackQ, reqQ, cfg.GopSize, cfg.SamplePeriodMs, rtx.FeatureFlags{PeriodicTick: cfg.RtxPeriodicTick})

	e.hook = &enqueueHook{inner: reqQ, onRightmost: e.onRightmostRequest, onLiveMeta: e.onLiveMetaRequest}

	e.pipeliner = pipeline.New(e.estimator, e.hook, buf,
		cfg.BasePrefix, cfg.APIVersion, cfg.StreamType, cfg.StreamName, cfg.StreamTS, cfg.ThreadName,
		clk.NowMs, e.nextNonce,
		pipeline.WithInterestLifetime(cfg.InterestLifetimeMs),
		pipeline.WithFEC(cfg.UseFEC),
		pipeline.WithStride(cfg.SampleStride))

	e.fsm = pipeline.NewFSM(e.pipeliner, ic, e.latency, cfg.StreamType == name.StreamVideo, clk.NowMs)

	drdEst.Subscribe(e.stats)
	drdEst.Subscribe(interestLatencyFanout{ic: ic, lc: e.latency})

	e.wireObservers()
	return e
}

func seedNonce() uint32 {
	id := uuid.New()
	return uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
}

func (e *Engine) nextNonce() uint32 { return e.nonce.Add(1) }

// wireObservers connects Buffer's request/data events to retransmission,
// playback, and the per-segment status handlers (spec.md §4.5/§4.8/§4.6).
func (e *Engine) wireObservers() {
	e.buf.OnNewRequest(func(slot *buffer.Slot) {
		e.rtx.OnNewRequest(e.clock.NowMs(), slot)
		for _, req := range slot.Requested {
			req := req
			req.OnStatus(reqqueue.StatusData, func(r *reqqueue.DataRequest) { e.onSegmentData(slot, r) })
			req.OnStatus(reqqueue.StatusTimeout, func(r *reqqueue.DataRequest) {
				e.stats.IncTimeouts()
				e.fsm.OnTimeout()
				e.touchActivity()
			})
			req.OnStatus(reqqueue.StatusAppNack, func(r *reqqueue.DataRequest) { e.stats.IncAppNacks() })
			req.OnStatus(reqqueue.StatusNetworkNack, func(r *reqqueue.DataRequest) { e.stats.IncNetworkNacks() })
		}
	})

	e.buf.OnNewData(func(r buffer.Receipt) {
		e.rtx.OnNewData(e.clock.NowMs(), r)
		pub := publishTimestampMs(r.Slot, e.cfg.SamplePeriodMs)
		e.playbackQ.Push(r.Slot, pub)
		e.playoutCtl.OnNewSampleReady()
		e.stats.SetPlayback(e.playbackQ.Len(), e.playbackQ.Size(e.clock.NowMs()))
	})
}

// publishTimestampMs derives a deterministic playback ordering key from the
// sample's namespace identity: stream start epoch plus its nominal offset.
// No producer-side capture timestamp is assembled from the segment payload
// here (frame/codec assembly is out of scope, spec.md §1 Non-goals).
func publishTimestampMs(s *buffer.Slot, samplePeriodMs int64) int64 {
	return int64(s.Info.StreamTS) + int64(s.Info.SampleNo)*samplePeriodMs
}

// onSegmentData processes one arrived data/parity/manifest segment for an
// active slot (spec.md §4.5 BufferReceipt path).
func (e *Engine) onSegmentData(slot *buffer.Slot, req *reqqueue.DataRequest) {
	e.stats.IncSegmentsReceived()
	info := req.Info

	nData, nParity := e.estimator.ExpectedSegments(info.SampleClassVal)
	meta := buffer.SegmentMeta{NDataSegments: nData, NParitySegments: nParity, PlaybackNo: int(info.SampleNo)}
	if err := e.buf.Received(req, req.Header, meta); err != nil {
		e.log.Warn("buffer receive failed", "error", err)
	}

	if info.SegmentClassVal == name.SegmentManifest {
		m := packet.UnmarshalManifest(req.Data)
		slot.Manifest = &m
		if err := e.validator.ValidateSlot(slot, req.Data); err != nil {
			e.log.Warn("manifest validation failed", "error", err)
		}
	} else {
		e.estimator.Observe(info.SampleClassVal, slot.NDataSegments, slot.NParitySegments)
	}

	isOriginal := packet.IsOriginal(req.Header, req.Nonce)
	drdMs := float64(req.ReplyTsUs-req.RequestTsUs) / 1000.0
	e.drd.NewValue(e.clock.NowMs(), drdMs, isOriginal, req.Header.GenerationDelayMs)
	e.stats.SetGenerationDelay(e.drd.GenerationDelay())

	latencyCmd := pipelinectl.KeepPipeline
	if isOriginal {
		latencyCmd = e.latency.OnOriginalSegmentArrival(e.clock.NowMs(), e.drd.GetOriginalEstimation(), e.drd.OriginalDeviation())
	}
	e.fsm.OnSegment(info, latencyCmd)

	e.stats.SetPipeline(e.ic.PipelineSize(), e.ic.PipelineLimit())
	e.stats.SetQueueDepths(e.reqQueue.Len(), e.pool.FreeCount(), e.rtx.ActiveCount())
	e.touchActivity()
}

// onRightmostRequest registers the status handlers for a rightmost-discovery
// Interest (spec.md §4.9's WaitForRightmost): it never flows through
// Buffer.Requested, so it is hooked here instead, at the point the Enqueuer
// decorator observes it leave the Pipeliner.
func (e *Engine) onRightmostRequest(req *reqqueue.DataRequest) {
	req.OnStatus(reqqueue.StatusData, func(r *reqqueue.DataRequest) {
		e.stats.IncSegmentsReceived()
		n := r.ResolvedName
		if n == nil {
			n = r.Name
		}
		info, err := name.Extract(n)
		if err != nil {
			e.log.Warn("rightmost reply name unparseable", "error", err)
			return
		}
		e.fsm.OnSegment(info, pipelinectl.KeepPipeline)
		e.touchActivity()
	})
	req.OnStatus(reqqueue.StatusTimeout, func(r *reqqueue.DataRequest) {
		e.stats.IncTimeouts()
		e.fsm.OnTimeout()
		e.touchActivity()
	})
	req.OnStatus(reqqueue.StatusAppNack, func(r *reqqueue.DataRequest) { e.stats.IncAppNacks() })
	req.OnStatus(reqqueue.StatusNetworkNack, func(r *reqqueue.DataRequest) { e.stats.IncNetworkNacks() })
}

// onLiveMetaRequest registers the status handlers for a periodic LiveMeta
// refresh Interest (spec.md §4.1/§5's periodic meta executor): on reply it
// feeds the producer-advertised segment counts into sampleEstimator instead
// of the Pipeline-Control FSM, which only understands rightmost/sample
// replies.
func (e *Engine) onLiveMetaRequest(req *reqqueue.DataRequest) {
	req.OnStatus(reqqueue.StatusData, func(r *reqqueue.DataRequest) {
		e.stats.IncSegmentsReceived()
		m, err := packet.UnmarshalLiveMeta(r.Data)
		if err != nil {
			e.log.Warn("live meta unmarshal failed", "error", err)
			return
		}
		e.estimator.UpdateLiveMeta(m)
		e.touchActivity()
	})
	req.OnStatus(reqqueue.StatusTimeout, func(r *reqqueue.DataRequest) { e.stats.IncTimeouts() })
	req.OnStatus(reqqueue.StatusAppNack, func(r *reqqueue.DataRequest) { e.stats.IncAppNacks() })
	req.OnStatus(reqqueue.StatusNetworkNack, func(r *reqqueue.DataRequest) { e.stats.IncNetworkNacks() })
}

// Start begins fetching: arms the starvation watchdog, allows playout to
// start once the queue crosses threshold, and kicks the FSM into
// WaitForRightmost.
func (e *Engine) Start() {
	e.touchActivity()
	e.playoutCtl.AllowPlayout(true)
	e.wg.Add(1)
	go e.watchStarvation()
	e.wg.Add(1)
	go e.watchLiveMeta()
	e.fsm.Start()
	e.log.Info("engine started", "stream", e.cfg.StreamName, "session", e.sessionID)
}

// Stop halts the starvation watchdog, playout, and drops all in-flight
// state. Safe to call once.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
	e.playoutCtl.AllowPlayout(false)
	e.reqQueue.Reset()
	e.buf.Reset()
	e.log.Info("engine stopped", "session", e.sessionID)
}

func (e *Engine) touchActivity() {
	e.lastActivityMs.Store(e.clock.NowMs())
}

// watchStarvation polls for an absence of any segment arrival over the
// starvation window and fires FSM.OnStarvation (spec.md §4.9).
func (e *Engine) watchStarvation() {
	defer e.wg.Done()
	ticker := time.NewTicker(time.Duration(e.cfg.StarvationCheckMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			last := e.lastActivityMs.Load()
			if e.clock.NowMs()-last >= e.cfg.StarvationTimeoutMs {
				e.fsm.OnStarvation()
				e.touchActivity()
			}
		}
	}
}

// watchLiveMeta periodically refreshes sampleEstimator from the producer's
// advertised LiveMeta (spec.md §4.1/§5's periodic meta executor), firing
// about once per GOP.
func (e *Engine) watchLiveMeta() {
	defer e.wg.Done()
	ticker := time.NewTicker(time.Duration(liveMetaRefreshMs(e.cfg.GopSize, e.cfg.SamplePeriodMs)) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.pipeliner.ExpressLiveMeta()
		}
	}
}

// Stats exposes the Prometheus collector, e.g. for a /metrics endpoint or
// the --stats CSV snapshot.
func (e *Engine) Stats() *stats.Collector { return e.stats }

// DecodeQueue exposes the decoded-image ring for a video stream's renderer
// (nil for audio streams).
func (e *Engine) DecodeQueue() *decode.Queue { return e.decodeQ }

// State reports the Pipeline-Control FSM's current state. A caller polling
// this after Start (e.g. cmd/ndnrtc-fetch's startup grace window) can detect
// the repeated-timeout-then-Idle outcome spec.md §7 calls MetaUnavailable.
func (e *Engine) State() pipeline.State { return e.fsm.State() }

// thresholdSink fans LatencyControl's computed playout threshold out to the
// playout Control (which gates fast-forward start) and to the stats
// collector (for the /metrics ndnrtc_playout_threshold_ms gauge).
type thresholdSink struct {
	playout *playout.Control
	stats   *stats.Collector
}

func (t thresholdSink) SetThreshold(ms float64) {
	t.playout.SetThreshold(ms)
	t.stats.SetPlayoutThreshold(ms)
}

// sampleEstimator implements pipeline.SampleEstimator, seeded with one
// data segment per class and refined from live-meta and from segment counts
// actually observed on arrived slots (spec.md §4.1/§4.10).
type sampleEstimator struct {
	mu sync.Mutex

	nDataDelta, nParityDelta int
	nDataKey, nParityKey     int
}

func newSampleEstimator() *sampleEstimator {
	return &sampleEstimator{nDataDelta: 1, nDataKey: 1}
}

func (s *sampleEstimator) ExpectedSegments(class name.SampleClass) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if class == name.SampleKey {
		return s.nDataKey, s.nParityKey
	}
	return s.nDataDelta, s.nParityDelta
}

// Observe refreshes the running estimate from a slot's actual segment
// counts once assembly completes.
func (s *sampleEstimator) Observe(class name.SampleClass, nData, nParity int) {
	if nData <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if class == name.SampleKey {
		s.nDataKey, s.nParityKey = nData, nParity
	} else {
		s.nDataDelta, s.nParityDelta = nData, nParity
	}
}

// UpdateLiveMeta seeds the estimate from the producer's advertised segment
// counts, when available (spec.md §4.1's LiveMeta).
func (s *sampleEstimator) UpdateLiveMeta(m packet.LiveMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.SegnumDelta > 0 {
		s.nDataDelta = int(m.SegnumDelta)
	}
	if m.SegnumDeltaParity > 0 {
		s.nParityDelta = int(m.SegnumDeltaParity)
	}
	if m.SegnumKey > 0 {
		s.nDataKey = int(m.SegnumKey)
	}
	if m.SegnumKeyParity > 0 {
		s.nParityKey = int(m.SegnumKeyParity)
	}
}

// enqueueHook decorates the Interest Request Queue's Enqueuer surface so the
// Pipeline-Control FSM's internally-issued rightmost-discovery request and
// the periodic LiveMeta refresh (neither passes through Buffer.Requested)
// can still have their status handlers installed before they are expressed.
// Requests built by Pipeliner.ExpressNextBatch always carry HasSegNo == true
// and are hooked instead via buffer.Buffer's OnNewRequest observer; all
// three paths are disjoint (distinguished by HasSegNo/IsMeta).
type enqueueHook struct {
	inner       pipeline.Enqueuer
	onRightmost func(*reqqueue.DataRequest)
	onLiveMeta  func(*reqqueue.DataRequest)
}

func (h *enqueueHook) Enqueue(req *reqqueue.DataRequest, priority reqqueue.DeadlinePriority) {
	if !req.Info.HasSegNo {
		if req.Info.IsMeta {
			h.onLiveMeta(req)
		} else {
			h.onRightmost(req)
		}
	}
	h.inner.Enqueue(req, priority)
}

// interestLatencyFanout forwards the DRD estimator's combined update to
// InterestControl and LatencyControl, the two collaborators that only
// implement the single-method slice of drd.Observer they need.
type interestLatencyFanout struct {
	ic *pipelinectl.InterestControl
	lc *pipelinectl.LatencyControl
}

func (interestLatencyFanout) OnOriginalDrdUpdate(float64, float64) {}
func (interestLatencyFanout) OnCachedDrdUpdate(float64, float64)   {}
func (f interestLatencyFanout) OnDrdUpdate(valueMs, deviationMs float64) {
	f.ic.OnDrdUpdate(valueMs, deviationMs)
	f.lc.OnDrdUpdate(valueMs, deviationMs)
}

// FECMergeDecoder is the default decode.Decoder: it FEC-reconstructs the
// original payload from whatever data/parity shards arrived, without
// producing real pixels (codec design is an explicit Non-goal, spec.md §1).
// A real renderer supplies its own Decoder via Config.Decoder; cmd/ndnrtc-fetch
// wraps this one to tee the reassembled payload to --output.
type FECMergeDecoder struct{}

func (FECMergeDecoder) Decode(slot *buffer.Slot) (decode.Image, error) {
	nData := slot.NDataSegments
	if nData <= 0 {
		nData = 1
	}
	shards := make([][]byte, nData+slot.NParitySegments)
	for _, req := range slot.Fetched {
		switch req.Info.SegmentClassVal {
		case name.SegmentData:
			if idx := int(req.Info.SegNo); idx >= 0 && idx < nData {
				shards[idx] = req.Data
			}
		case name.SegmentParity:
			if idx := nData + int(req.Info.SegNo); idx >= 0 && idx < len(shards) {
				shards[idx] = req.Data
			}
		}
	}
	payload, err := packet.Decode(shards, nData, slot.NParitySegments)
	if err != nil {
		return decode.Image{}, err
	}
	return decode.Image{SampleNo: slot.Info.SampleNo, Pixels: payload}, nil
}
