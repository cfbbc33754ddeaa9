package playout

import "testing"

func TestJitterTimingSteadyRateNoOverhead(t *testing.T) {
	j := NewJitterTiming()
	j.StartFramePlayout(0)
	j.UpdatePlayoutTime(33)
	if got := j.NextDelayMs(); got != 33 {
		t.Fatalf("expected steady-state delay 33, got %d", got)
	}

	j.StartFramePlayout(33000) // exactly on schedule: no overhead
	j.UpdatePlayoutTime(33)
	if got := j.NextDelayMs(); got != 33 {
		t.Fatalf("expected delay to remain 33 with no overhead, got %d", got)
	}
}

func TestJitterTimingAbsorbsProcessingOverhead(t *testing.T) {
	j := NewJitterTiming()
	j.StartFramePlayout(0)
	j.UpdatePlayoutTime(33) // schedules a 33ms wait

	j.StartFramePlayout(40000) // actual iteration took 40ms: 7ms overhead
	j.UpdatePlayoutTime(33)
	if got := j.NextDelayMs(); got != 26 {
		t.Fatalf("expected overhead absorbed into delay (33-7=26), got %d", got)
	}
	if j.processingUs != 0 {
		t.Fatalf("expected overhead fully absorbed, processingUs=%d", j.processingUs)
	}
}

func TestJitterTimingClampsToZeroAndBanksRemainder(t *testing.T) {
	j := NewJitterTiming()
	j.StartFramePlayout(0)
	j.UpdatePlayoutTime(10)

	j.StartFramePlayout(100000) // 90ms overhead against a 10ms schedule
	j.UpdatePlayoutTime(10)
	if got := j.NextDelayMs(); got != 0 {
		t.Fatalf("expected delay clamped to 0, got %d", got)
	}
	if j.processingUs != 80000 {
		t.Fatalf("expected 80ms banked for future absorption, got %d us", j.processingUs)
	}
}

func TestJitterTimingFlushClearsState(t *testing.T) {
	j := NewJitterTiming()
	j.StartFramePlayout(0)
	j.UpdatePlayoutTime(10)
	j.StartFramePlayout(100000)
	j.UpdatePlayoutTime(10)

	j.Flush()
	if j.NextDelayMs() != 0 || j.processingUs != 0 || j.hasLastStart {
		t.Fatalf("expected Flush to reset all state")
	}
}
