package clock

import (
	"testing"
	"time"
)

func TestSystemClockMonotonicAdvance(t *testing.T) {
	c := NewSystem()
	t0 := c.NowMs()
	time.Sleep(5 * time.Millisecond)
	t1 := c.NowMs()
	if t1 < t0 {
		t.Fatalf("expected monotonic clock to advance, got t0=%d t1=%d", t0, t1)
	}
}

func TestFakeClockAdvance(t *testing.T) {
	f := NewFake(1_700_000_000_000)
	if f.NowMs() != 0 {
		t.Fatalf("expected zeroed monotonic reading, got %d", f.NowMs())
	}
	f.Advance(150 * time.Millisecond)
	if f.NowMs() != 150 {
		t.Fatalf("expected 150ms elapsed, got %d", f.NowMs())
	}
	if f.NowUs() != 150_000 {
		t.Fatalf("expected 150000us elapsed, got %d", f.NowUs())
	}
	if f.WallClockMs() != 1_700_000_000_150 {
		t.Fatalf("expected wall clock to advance with monotonic, got %d", f.WallClockMs())
	}
}
