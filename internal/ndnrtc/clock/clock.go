// Package clock gives the engine a single source of time. All latency
// arithmetic (DRD, jitter, deadlines) uses the monotonic clock; inter-node
// timestamps that end up on the wire (frame capture time, live-meta
// timestamp) use wall-clock milliseconds (spec.md §4.1).
package clock

import "time"

// Clock is the engine-wide time source. A real Clock wraps time.Now/
// time.Since; a fake Clock (used in tests) advances on command so DRD and
// jitter-timing tests are deterministic.
type Clock interface {
	NowMs() int64
	NowUs() int64
	NowNs() int64
	WallClockUnix() int64
	WallClockMs() int64
}

// System is the production Clock, backed by the monotonic runtime clock via
// time.Now() (Go's time.Now already carries a monotonic reading).
type System struct {
	start time.Time
}

// NewSystem returns a Clock anchored at the moment of construction. Anchoring
// lets NowMs/NowUs/NowNs avoid wrapping a large absolute value and keeps
// arithmetic cheap in hot paths (segment receipt, jitter timing).
func NewSystem() *System {
	return &System{start: time.Now()}
}

func (c *System) NowMs() int64 { return time.Since(c.start).Milliseconds() }
func (c *System) NowUs() int64 { return time.Since(c.start).Microseconds() }
func (c *System) NowNs() int64 { return time.Since(c.start).Nanoseconds() }

func (c *System) WallClockUnix() int64 { return time.Now().Unix() }
func (c *System) WallClockMs() int64   { return time.Now().UnixMilli() }

// Fake is a controllable Clock for deterministic unit tests: Advance moves
// both the monotonic and wall-clock readings forward together.
type Fake struct {
	monoNs int64
	wallMs int64
}

// NewFake returns a Fake clock starting at monotonic zero and the given
// wall-clock epoch milliseconds.
func NewFake(startWallMs int64) *Fake {
	return &Fake{wallMs: startWallMs}
}

func (f *Fake) Advance(d time.Duration) {
	f.monoNs += d.Nanoseconds()
	f.wallMs += d.Milliseconds()
}

func (f *Fake) NowMs() int64 { return f.monoNs / int64(time.Millisecond) }
func (f *Fake) NowUs() int64 { return f.monoNs / int64(time.Microsecond) }
func (f *Fake) NowNs() int64 { return f.monoNs }

func (f *Fake) WallClockUnix() int64 { return f.wallMs / 1000 }
func (f *Fake) WallClockMs() int64   { return f.wallMs }
