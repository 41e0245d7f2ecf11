// Package countdown shows the time left on a hold. Remaining time is always
// derived from the absolute deadline, so a countdown rebuilt from a stored
// deadline agrees with the one it replaces.
package countdown

import (
	"fmt"
	"sync/atomic"
	"time"

	"clinicslots/pkg/clock"
	"clinicslots/pkg/model"
)

const (
	running int32 = iota
	expired
	cancelled
)

type Countdown struct {
	clock     clock.Clock
	expiresAt time.Time
	onTick    func(remaining int)
	onExpire  func()

	state  atomic.Int32
	stopCh chan struct{}
	doneCh chan struct{}
}

// Start ticks once per second until expiresAt, then calls onExpire exactly
// once. Either callback may be nil. A deadline already reached expires
// immediately.
func Start(clk clock.Clock, expiresAt time.Time, onTick func(remaining int), onExpire func()) *Countdown {
	c := &Countdown{
		clock:     clk,
		expiresAt: expiresAt,
		onTick:    onTick,
		onExpire:  onExpire,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	ticker := clk.NewTicker(time.Second)
	go c.run(ticker)
	return c
}

func (c *Countdown) run(ticker clock.Ticker) {
	defer close(c.doneCh)
	defer ticker.Stop()

	if c.step() {
		return
	}
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C():
			if c.step() {
				return
			}
		}
	}
}

// step reports whether the countdown is finished.
func (c *Countdown) step() bool {
	if c.state.Load() != running {
		return true
	}
	remaining := c.Remaining()
	if remaining > 0 {
		if c.onTick != nil {
			c.onTick(remaining)
		}
		return false
	}
	if c.state.CompareAndSwap(running, expired) {
		if c.onTick != nil {
			c.onTick(0)
		}
		if c.onExpire != nil {
			c.onExpire()
		}
	}
	return true
}

// Cancel stops the countdown. It reports false when expiry already fired.
// Safe to call from the callbacks and more than once.
func (c *Countdown) Cancel() bool {
	if c.state.CompareAndSwap(running, cancelled) {
		close(c.stopCh)
		return true
	}
	return false
}

// Remaining is ceil((deadline - now) / 1s), never negative.
func (c *Countdown) Remaining() int {
	return model.RemainingSeconds(c.expiresAt, c.clock.Now())
}

func (c *Countdown) Expired() bool {
	return c.state.Load() == expired
}

// Done is closed once the countdown has expired or been cancelled.
func (c *Countdown) Done() <-chan struct{} {
	return c.doneCh
}

// Format renders seconds as mm:ss.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
