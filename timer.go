package main

import "time"

// Timer is a restartable per-second countdown. It is owned by the room's
// event loop: Start, Stop and Reset must be called from it, and onTick and
// onEnd are invoked on it.
type Timer struct {
	clock    Clock
	duration int
	timeLeft int
	running  bool
	gen      uint64
	cancel   Cancel
	onTick   func(timeLeft int)
	onEnd    func()
}

// NewTimer creates a stopped timer counting down from duration seconds
func NewTimer(clock Clock, duration int, onTick func(int), onEnd func()) *Timer {
	if onTick == nil {
		onTick = func(int) {}
	}
	if onEnd == nil {
		onEnd = func() {}
	}
	return &Timer{
		clock:    clock,
		duration: duration,
		timeLeft: duration,
		onTick:   onTick,
		onEnd:    onEnd,
	}
}

// Start (re)starts the countdown from the full duration.
func (t *Timer) Start() {
	t.Stop()
	t.gen++
	t.running = true
	t.timeLeft = t.duration
	t.onTick(t.timeLeft)
	t.schedule()
}

// Stop cancels the pending second. Seconds already queued for delivery are
// dropped by the generation check in fire.
func (t *Timer) Stop() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.running = false
	t.gen++
}

// Reset stops the timer and restores the full duration without restarting.
func (t *Timer) Reset() {
	t.Stop()
	t.timeLeft = t.duration
	t.onTick(t.timeLeft)
}

// TimeLeft returns the remaining seconds
func (t *Timer) TimeLeft() int { return t.timeLeft }

// Running reports whether the countdown is active
func (t *Timer) Running() bool { return t.running }

func (t *Timer) schedule() {
	gen := t.gen
	t.cancel = t.clock.AfterFunc(time.Second, func() { t.fire(gen) })
}

func (t *Timer) fire(gen uint64) {
	if gen != t.gen || !t.running {
		return
	}
	t.timeLeft--
	t.onTick(t.timeLeft)
	if gen != t.gen {
		// onTick restarted or stopped us
		return
	}
	if t.timeLeft <= 0 {
		t.cancel = nil
		t.running = false
		t.gen++
		t.onEnd()
		return
	}
	t.schedule()
}
