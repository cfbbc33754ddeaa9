package playout

// JitterTiming tracks the wall-clock processing overhead between successive
// extractions and folds it into the next scheduled delay (spec.md §4.11),
// grounded on the producer's jitter-timing startFramePlayout/updatePlayoutTime
// split: one call records how long the previous iteration actually took
// beyond its scheduled wait, the other absorbs that overhead (in whole
// milliseconds) into the next requested delay.
type JitterTiming struct {
	nextDelayMs  int64
	processingUs int64
	lastStartUs  int64
	hasLastStart bool
}

func NewJitterTiming() *JitterTiming { return &JitterTiming{} }

// Flush clears all accumulated timing state, as done on Playout.start.
func (j *JitterTiming) Flush() {
	j.nextDelayMs = 0
	j.processingUs = 0
	j.lastStartUs = 0
	j.hasLastStart = false
}

// StartFramePlayout marks the wall-clock start of one extraction iteration.
// On every call after the first it measures how much of the previous
// iteration's elapsed time was NOT accounted for by the scheduled delay and
// folds that excess into the running processing-overhead accumulator.
func (j *JitterTiming) StartFramePlayout(nowUs int64) {
	if !j.hasLastStart {
		j.lastStartUs = nowUs
		j.hasLastStart = true
		return
	}
	elapsedUs := nowUs - j.lastStartUs
	overheadUs := elapsedUs - j.nextDelayMs*1000
	if overheadUs > 0 {
		j.processingUs += overheadUs
	}
	j.lastStartUs = nowUs
}

// UpdatePlayoutTime absorbs whole milliseconds of accumulated processing
// overhead into requestedMs, and records the (possibly reduced) result as
// the next timer duration. If the overhead exceeds requestedMs the delay is
// clamped to 0 and the remainder stays banked for future iterations.
func (j *JitterTiming) UpdatePlayoutTime(requestedMs int64) {
	playoutUs := requestedMs * 1000
	if j.processingUs >= 1000 {
		absorb := (j.processingUs / 1000) * 1000
		if absorb > playoutUs {
			absorb = playoutUs
			playoutUs = 0
		} else {
			playoutUs -= absorb
		}
		j.processingUs -= absorb
	}
	j.nextDelayMs = playoutUs / 1000
}

// NextDelayMs is the timer duration (ms) to wait before the next extraction.
func (j *JitterTiming) NextDelayMs() int64 { return j.nextDelayMs }
