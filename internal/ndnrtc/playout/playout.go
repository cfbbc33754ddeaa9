// Package playout implements the renderer executor's extraction loop
// (spec.md §4.11): pop the playback queue, feed the sample to its consumer,
// schedule the next extraction with jitter-timing compensation.
package playout

import (
	"sync"
	"time"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/buffer"
)

// Queue is the subset of playback.Queue the extractor needs.
type Queue interface {
	Pop(extract func(slot *buffer.Slot, playTimeMs int64)) bool
	Size(nowMs int64) int64
	SamplePeriodMs() int64
}

// Observer is notified when the queue runs dry for one extraction.
type Observer interface {
	OnQueueEmpty()
}

// SampleProcessor is the subclass hook: audio feeds bundled blobs to the
// renderer, video hands the slot to the decode queue.
type SampleProcessor func(slot *buffer.Slot)

// Playout runs the dedicated single-threaded extraction loop on its own
// goroutine, self-correcting for processing overhead via JitterTiming.
// delayAdjustment absorbs fast-forward seeding and any external nudge via
// AddAdjustment; there is no producer-side capture-time signal to derive a
// drift correction from (frame/codec assembly is out of scope, spec.md §1
// Non-goals — see DESIGN.md).
type Playout struct {
	queue     Queue
	process   SampleProcessor
	jitter    *JitterTiming
	nowUs     func() int64
	newTimer  func(d time.Duration) *time.Timer

	mu        sync.Mutex
	observers []Observer

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	delayAdjustMs int64
}

func New(queue Queue, process SampleProcessor) *Playout {
	return &Playout{
		queue:    queue,
		process:  process,
		jitter:   NewJitterTiming(),
		nowUs:    func() int64 { return time.Now().UnixMicro() },
		newTimer: time.NewTimer,
	}
}

func (p *Playout) Attach(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// Start begins the extraction loop. fastForwardMs seeds delayAdjustment so
// the first several samples play back-to-back until the backlog drains.
func (p *Playout) Start(fastForwardMs int64) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.jitter.Flush()
	p.delayAdjustMs = -fastForwardMs
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run()
}

func (p *Playout) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Playout) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// AddAdjustment nudges delayAdjustment directly, used when an external
// event (e.g. a sudden catch-up) needs to reshape upcoming delays.
func (p *Playout) AddAdjustment(adjMs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delayAdjustMs += adjMs
}

func (p *Playout) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}
		delay := p.extractOne()
		timer := p.newTimer(time.Duration(delay) * time.Millisecond)
		select {
		case <-p.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// extractOne runs one iteration of the loop and returns the timer duration
// (ms) to wait before the next one.
func (p *Playout) extractOne() int64 {
	p.jitter.StartFramePlayout(p.nowUs())

	samplePeriod := p.queue.SamplePeriodMs()
	playTimeMs := samplePeriod

	popped := p.queue.Pop(func(slot *buffer.Slot, gapMs int64) {
		p.process(slot)
		playTimeMs = gapMs
	})
	if !popped {
		p.mu.Lock()
		obs := append([]Observer(nil), p.observers...)
		p.mu.Unlock()
		for _, o := range obs {
			o.OnQueueEmpty()
		}
	}

	actual := p.adjustDelay(playTimeMs)

	p.jitter.UpdatePlayoutTime(actual)
	return p.jitter.NextDelayMs()
}

// adjustDelay drains delayAdjustment into delay: a negative bank (owed from
// fast-forward or a previous overshoot) shortens upcoming delays until it is
// absorbed; a positive bank lengthens the next delay once, then clears.
func (p *Playout) adjustDelay(delayMs int64) int64 {
	if p.delayAdjustMs < 0 && -p.delayAdjustMs > delayMs {
		p.delayAdjustMs += delayMs
		return 0
	}
	adj := p.delayAdjustMs
	p.delayAdjustMs = 0
	result := delayMs + adj
	if result < 0 {
		result = 0
	}
	return result
}
