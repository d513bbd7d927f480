// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when the test calls Advance.
// Pending After channels and tickers fire synchronously inside Advance
// once the fake time passes their deadline.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

// fakeWaiter is a pending After channel or ticker registration.
type fakeWaiter struct {
	deadline time.Time
	interval time.Duration // Zero for one-shot After waiters.
	channel  chan time.Time
	stopped  bool
}

// NewFake returns a Fake whose current time is an arbitrary fixed
// instant. Tests that care about absolute time should call SetNow.
func NewFake() *Fake {
	return &Fake{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// SetNow jumps the fake clock to the given instant without firing
// waiters. Use Advance to fire pending timers.
func (f *Fake) SetNow(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Advance moves the fake time forward by d and fires every pending
// waiter whose deadline has passed, in deadline order. Ticker waiters
// fire repeatedly if d spans multiple intervals; deliveries that find
// the capacity-1 channel full are dropped, matching time.Ticker.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)

	remaining := f.waiters[:0]
	for _, waiter := range f.waiters {
		if waiter.stopped {
			continue
		}
		for !waiter.deadline.After(f.now) {
			select {
			case waiter.channel <- waiter.deadline:
			default:
			}
			if waiter.interval == 0 {
				waiter.stopped = true
				break
			}
			waiter.deadline = waiter.deadline.Add(waiter.interval)
		}
		if !waiter.stopped {
			remaining = append(remaining, waiter)
		}
	}
	f.waiters = remaining
}

// After returns a channel that fires once the fake clock advances past
// the deadline.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	waiter := &fakeWaiter{
		deadline: f.now.Add(d),
		channel:  make(chan time.Time, 1),
	}
	if d <= 0 {
		waiter.channel <- f.now
		return waiter.channel
	}
	f.waiters = append(f.waiters, waiter)
	return waiter.channel
}

// NewTicker returns a ticker driven by Advance. Panics if d <= 0,
// matching time.NewTicker.
func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	waiter := &fakeWaiter{
		deadline: f.now.Add(d),
		interval: d,
		channel:  make(chan time.Time, 1),
	}
	f.waiters = append(f.waiters, waiter)

	return &Ticker{
		C: waiter.channel,
		stopFunc: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			waiter.stopped = true
		},
	}
}

// Sleep blocks until another goroutine advances the clock past d.
func (f *Fake) Sleep(d time.Duration) {
	<-f.After(d)
}
