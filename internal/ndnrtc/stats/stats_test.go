package stats

import (
	"strings"
	"testing"
)

func TestDrdObserverUpdatesGaugesAndSnapshot(t *testing.T) {
	c := New()
	c.OnOriginalDrdUpdate(120.5, 3.0)
	c.OnCachedDrdUpdate(80.0, 1.0)
	c.OnDrdUpdate(100.0, 2.0)

	var buf strings.Builder
	if err := c.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"drd_original_ms,120.5", "drd_cached_ms,80", "drd_deviation_ms,2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected snapshot to contain %q, got:\n%s", want, out)
		}
	}
}

func TestCountersAccumulate(t *testing.T) {
	c := New()
	c.IncSegmentsReceived()
	c.IncSegmentsReceived()
	c.IncTimeouts()
	c.IncAppNacks()
	c.IncNetworkNacks()
	c.IncRetransmits()

	var buf strings.Builder
	c.WriteCSV(&buf)
	out := buf.String()
	if !strings.Contains(out, "segments_received_total,2") {
		t.Fatalf("expected two segments received, got:\n%s", out)
	}
	for _, want := range []string{"timeouts_total,1", "app_nacks_total,1", "network_nacks_total,1", "retransmits_total,1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in snapshot, got:\n%s", want, out)
		}
	}
}

func TestSetPipelineAndPlaybackRecordsSnapshot(t *testing.T) {
	c := New()
	c.SetPipeline(4, 8.5)
	c.SetPlayback(6, 1200)
	c.SetPlayoutThreshold(150)
	c.SetQueueDepths(3, 10, 1)
	c.SetGenerationDelay(12.5)

	var buf strings.Builder
	c.WriteCSV(&buf)
	out := buf.String()
	for _, want := range []string{
		"pipeline_size,4", "pipeline_limit,8.5",
		"playback_queue_samples,6", "playback_pending_ms,1200",
		"playout_threshold_ms,150",
		"request_queue_len,3", "buffer_free_slots,10", "rtx_active,1",
		"generation_delay_ms,12.5",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in snapshot, got:\n%s", want, out)
		}
	}
}

func TestRegistryIsPrivatePerCollector(t *testing.T) {
	a := New()
	b := New()
	if a.Registry() == b.Registry() {
		t.Fatalf("expected distinct registries per Collector")
	}
}
