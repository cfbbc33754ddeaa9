package buffer

import "sync"

// SlotPool exclusively owns all free slots. A slot moves between the pool
// and the Buffer by transfer, never by copy (spec.md §3 ownership rule).
type SlotPool struct {
	mu   sync.Mutex
	free []*Slot
}

func NewSlotPool() *SlotPool {
	return &SlotPool{}
}

// Acquire returns a free slot, allocating a new one if the pool is empty.
func (p *SlotPool) Acquire() *Slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		return s
	}
	return newSlot()
}

// Release resets a slot and returns it to the pool. Callers must not retain
// references to s after calling Release.
func (p *SlotPool) Release(s *Slot) {
	s.reset()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, s)
}

func (p *SlotPool) FreeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
