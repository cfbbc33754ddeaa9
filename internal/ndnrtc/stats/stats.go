// Package stats publishes the consumer's live operating parameters
// (spec.md §5's stat/periodic executor) as Prometheus metrics and as the
// flat CSV snapshot the --stats flag writes (spec.md §6), mirroring
// plexTuner's promauto-based metrics registration.
package stats

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector owns every gauge/counter the engine publishes and doubles as a
// drd.Observer so it can subscribe directly to the DRD estimator.
type Collector struct {
	registry *prometheus.Registry

	drdOriginalMs   prometheus.Gauge
	drdCachedMs     prometheus.Gauge
	drdDeviationMs  prometheus.Gauge
	generationDelay prometheus.Gauge

	pipelineSize  prometheus.Gauge
	pipelineLimit prometheus.Gauge

	playbackQueueSamples prometheus.Gauge
	playbackPendingMs    prometheus.Gauge
	playoutThresholdMs   prometheus.Gauge

	reqQueueLen   prometheus.Gauge
	bufferFree    prometheus.Gauge
	rtxActive     prometheus.Gauge

	segmentsReceived prometheus.Counter
	timeouts         prometheus.Counter
	appNacks         prometheus.Counter
	networkNacks     prometheus.Counter
	retransmits      prometheus.Counter

	mu   sync.Mutex
	snap map[string]float64
}

// New builds a Collector registered against its own private Registry (not
// the global default one, so multiple Collectors can coexist in tests).
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{registry: reg, snap: make(map[string]float64)}

	f := promauto.With(reg)
	c.drdOriginalMs = f.NewGauge(prometheus.GaugeOpts{Name: "ndnrtc_drd_original_ms", Help: "Original-reply data retrieval delay estimate, ms."})
	c.drdCachedMs = f.NewGauge(prometheus.GaugeOpts{Name: "ndnrtc_drd_cached_ms", Help: "Cached-reply data retrieval delay estimate, ms."})
	c.drdDeviationMs = f.NewGauge(prometheus.GaugeOpts{Name: "ndnrtc_drd_deviation_ms", Help: "Combined DRD deviation, ms."})
	c.generationDelay = f.NewGauge(prometheus.GaugeOpts{Name: "ndnrtc_generation_delay_ms", Help: "Producer generation delay estimate, ms."})

	c.pipelineSize = f.NewGauge(prometheus.GaugeOpts{Name: "ndnrtc_pipeline_size", Help: "Current Interest pipeline size."})
	c.pipelineLimit = f.NewGauge(prometheus.GaugeOpts{Name: "ndnrtc_pipeline_limit", Help: "Current Interest pipeline limit."})

	c.playbackQueueSamples = f.NewGauge(prometheus.GaugeOpts{Name: "ndnrtc_playback_queue_samples", Help: "Samples waiting in the playback queue."})
	c.playbackPendingMs = f.NewGauge(prometheus.GaugeOpts{Name: "ndnrtc_playback_pending_ms", Help: "Playable duration held in the playback queue, ms."})
	c.playoutThresholdMs = f.NewGauge(prometheus.GaugeOpts{Name: "ndnrtc_playout_threshold_ms", Help: "Current playout-start threshold, ms."})

	c.reqQueueLen = f.NewGauge(prometheus.GaugeOpts{Name: "ndnrtc_request_queue_len", Help: "In-flight requests in the interest request queue."})
	c.bufferFree = f.NewGauge(prometheus.GaugeOpts{Name: "ndnrtc_buffer_free_slots", Help: "Free slots remaining in the slot pool."})
	c.rtxActive = f.NewGauge(prometheus.GaugeOpts{Name: "ndnrtc_rtx_active", Help: "Slots currently tracked for retransmission."})

	c.segmentsReceived = f.NewCounter(prometheus.CounterOpts{Name: "ndnrtc_segments_received_total", Help: "Data segments received."})
	c.timeouts = f.NewCounter(prometheus.CounterOpts{Name: "ndnrtc_timeouts_total", Help: "Interest timeouts observed."})
	c.appNacks = f.NewCounter(prometheus.CounterOpts{Name: "ndnrtc_app_nacks_total", Help: "Application-level Nacks observed."})
	c.networkNacks = f.NewCounter(prometheus.CounterOpts{Name: "ndnrtc_network_nacks_total", Help: "Network-level Nacks observed."})
	c.retransmits = f.NewCounter(prometheus.CounterOpts{Name: "ndnrtc_retransmits_total", Help: "Requests retransmitted by the retransmission controller."})

	return c
}

// Registry exposes the underlying Prometheus registry, e.g. for
// promhttp.HandlerFor when wiring a /metrics endpoint.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// drd.Observer implementation.

func (c *Collector) OnOriginalDrdUpdate(valueMs, deviationMs float64) {
	c.drdOriginalMs.Set(valueMs)
	c.record("drd_original_ms", valueMs)
}

func (c *Collector) OnCachedDrdUpdate(valueMs, deviationMs float64) {
	c.drdCachedMs.Set(valueMs)
	c.record("drd_cached_ms", valueMs)
}

func (c *Collector) OnDrdUpdate(valueMs, deviationMs float64) {
	c.drdDeviationMs.Set(deviationMs)
	c.record("drd_deviation_ms", deviationMs)
}

// SetGenerationDelay records the producer generation-delay estimate.
func (c *Collector) SetGenerationDelay(ms float64) {
	c.generationDelay.Set(ms)
	c.record("generation_delay_ms", ms)
}

// SetPipeline records the current Interest pipeline size/limit.
func (c *Collector) SetPipeline(size int, limit float64) {
	c.pipelineSize.Set(float64(size))
	c.pipelineLimit.Set(limit)
	c.record("pipeline_size", float64(size))
	c.record("pipeline_limit", limit)
}

// SetPlayback records the playback queue's depth and playable duration.
func (c *Collector) SetPlayback(samples int, pendingMs int64) {
	c.playbackQueueSamples.Set(float64(samples))
	c.playbackPendingMs.Set(float64(pendingMs))
	c.record("playback_queue_samples", float64(samples))
	c.record("playback_pending_ms", float64(pendingMs))
}

// SetPlayoutThreshold records the current playout-start threshold.
func (c *Collector) SetPlayoutThreshold(ms float64) {
	c.playoutThresholdMs.Set(ms)
	c.record("playout_threshold_ms", ms)
}

// SetQueueDepths records the request queue length, free slot count, and
// active retransmission count.
func (c *Collector) SetQueueDepths(reqQueueLen, bufferFree, rtxActive int) {
	c.reqQueueLen.Set(float64(reqQueueLen))
	c.bufferFree.Set(float64(bufferFree))
	c.rtxActive.Set(float64(rtxActive))
	c.record("request_queue_len", float64(reqQueueLen))
	c.record("buffer_free_slots", float64(bufferFree))
	c.record("rtx_active", float64(rtxActive))
}

func (c *Collector) IncSegmentsReceived() { c.segmentsReceived.Inc(); c.bump("segments_received_total") }
func (c *Collector) IncTimeouts()         { c.timeouts.Inc(); c.bump("timeouts_total") }
func (c *Collector) IncAppNacks()         { c.appNacks.Inc(); c.bump("app_nacks_total") }
func (c *Collector) IncNetworkNacks()     { c.networkNacks.Inc(); c.bump("network_nacks_total") }
func (c *Collector) IncRetransmits()      { c.retransmits.Inc(); c.bump("retransmits_total") }

func (c *Collector) record(key string, v float64) {
	c.mu.Lock()
	c.snap[key] = v
	c.mu.Unlock()
}

func (c *Collector) bump(key string) {
	c.mu.Lock()
	c.snap[key]++
	c.mu.Unlock()
}

// WriteCSV writes a flat "key,value" snapshot of every recorded metric,
// sorted by key, for the --stats flag (spec.md §6).
func (c *Collector) WriteCSV(w io.Writer) error {
	c.mu.Lock()
	keys := make([]string, 0, len(c.snap))
	for k := range c.snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make(map[string]float64, len(c.snap))
	for k, v := range c.snap {
		values[k] = v
	}
	c.mu.Unlock()

	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s,%g\n", k, values[k]); err != nil {
			return err
		}
	}
	return nil
}
