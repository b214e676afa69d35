package main

import (
	"sync"
	"time"
)

// Cancel stops a scheduled callback. Calling it more than once is a no-op.
type Cancel func()

// Clock abstracts wall time and deferred work. Callbacks scheduled through
// a Clock are delivered on the goroutine that owns the room state, so they
// never race with message handlers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Cancel
	Every(d time.Duration, fn func()) Cancel
}

// loopClock delivers callbacks by posting them to the hub event loop. post
// gives up when cancel is closed, so a cancelled timer never waits on a busy
// loop.
type loopClock struct {
	post func(fn func(), cancel <-chan struct{})
}

func (c loopClock) Now() time.Time { return time.Now() }

func (c loopClock) AfterFunc(d time.Duration, fn func()) Cancel {
	stop, cancel := newStop()
	t := time.AfterFunc(d, func() { c.post(fn, stop) })
	return func() {
		t.Stop()
		cancel()
	}
}

func (c loopClock) Every(d time.Duration, fn func()) Cancel {
	stop, cancel := newStop()
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.post(fn, stop)
			case <-stop:
				return
			}
		}
	}()
	return cancel
}

func newStop() (chan struct{}, Cancel) {
	stop := make(chan struct{})
	var once sync.Once
	return stop, func() { once.Do(func() { close(stop) }) }
}
