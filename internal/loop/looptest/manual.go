// Package looptest provides a deterministic loop.Scheduler for tests.
package looptest

import (
	"time"

	"PriceLens/internal/loop"
)

// Manual is a virtual clock. Timers fire only inside Advance, in due order.
type Manual struct {
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	seq     int
	fn      func()
	done    bool
	stopped bool
}

func (t *manualTimer) Stop() bool {
	if t.done || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewManual creates a Manual clock at time zero.
func NewManual() *Manual {
	return &Manual{}
}

// AfterFunc registers f to run once the clock has advanced by d.
func (m *Manual) AfterFunc(d time.Duration, f func()) loop.Timer {
	m.seq++
	t := &manualTimer{at: m.now + d, seq: m.seq, fn: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward, firing every timer that falls due, including
// timers scheduled by callbacks during the advance.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	for {
		next := m.next(target)
		if next == nil {
			break
		}
		m.now = next.at
		next.done = true
		next.fn()
	}
	m.now = target
	m.compact()
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.done && !t.stopped {
			n++
		}
	}
	return n
}

// Now returns the elapsed virtual time.
func (m *Manual) Now() time.Duration { return m.now }

func (m *Manual) next(limit time.Duration) *manualTimer {
	var best *manualTimer
	for _, t := range m.timers {
		if t.done || t.stopped || t.at > limit {
			continue
		}
		if best == nil || t.at < best.at || (t.at == best.at && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (m *Manual) compact() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.done && !t.stopped {
			live = append(live, t)
		}
	}
	m.timers = live
}
