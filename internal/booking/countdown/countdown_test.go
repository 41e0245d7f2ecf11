package countdown

import (
	"sync/atomic"
	"testing"
	"time"

	"clinicslots/pkg/clock"
)

var start = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func waitDone(t *testing.T, c *Countdown) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not finish")
	}
}

func nextTick(t *testing.T, ticks <-chan int) int {
	t.Helper()
	select {
	case r := <-ticks:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no tick received")
		return -1
	}
}

func TestCountdown_TicksThenExpiresOnce(t *testing.T) {
	clk := clock.NewManual(start)
	ticks := make(chan int, 16)
	var expiries atomic.Int32

	c := Start(clk, start.Add(2500*time.Millisecond), func(r int) { ticks <- r }, func() { expiries.Add(1) })

	if got := nextTick(t, ticks); got != 3 {
		t.Errorf("initial remaining = %d, want 3 (rounded up)", got)
	}
	clk.Advance(time.Second)
	if got := nextTick(t, ticks); got != 2 {
		t.Errorf("remaining = %d, want 2", got)
	}
	clk.Advance(time.Second)
	if got := nextTick(t, ticks); got != 1 {
		t.Errorf("remaining = %d, want 1", got)
	}
	clk.Advance(time.Second)
	if got := nextTick(t, ticks); got != 0 {
		t.Errorf("final remaining = %d, want 0", got)
	}
	waitDone(t, c)

	clk.Advance(5 * time.Second)
	if expiries.Load() != 1 {
		t.Errorf("expiry fired %d times", expiries.Load())
	}
	if !c.Expired() || c.Cancel() {
		t.Error("an expired countdown cannot be cancelled")
	}
}

func TestCountdown_CancelPreventsExpiry(t *testing.T) {
	clk := clock.NewManual(start)
	var expiries atomic.Int32
	c := Start(clk, start.Add(time.Minute), nil, func() { expiries.Add(1) })

	if !c.Cancel() {
		t.Fatal("Cancel() on a running countdown should succeed")
	}
	c.Cancel()
	waitDone(t, c)

	clk.Advance(2 * time.Minute)
	if expiries.Load() != 0 {
		t.Error("cancelled countdown fired expiry")
	}
}

func TestCountdown_PastDeadlineExpiresImmediately(t *testing.T) {
	clk := clock.NewManual(start)
	expiredCh := make(chan struct{}, 1)
	c := Start(clk, start.Add(-time.Second), nil, func() { expiredCh <- struct{}{} })

	select {
	case <-expiredCh:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry did not fire for a past deadline")
	}
	waitDone(t, c)
}

func TestCountdown_RebuiltFromDeadlineAgrees(t *testing.T) {
	clk := clock.NewManual(start)
	deadline := start.Add(90 * time.Second)

	first := Start(clk, deadline, nil, nil)
	clk.Advance(40 * time.Second)
	first.Cancel()

	second := Start(clk, deadline, nil, nil)
	defer second.Cancel()
	if first.Remaining() != 50 || second.Remaining() != 50 {
		t.Errorf("remaining = %d / %d, want 50", first.Remaining(), second.Remaining())
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{120, "02:00"},
		{59, "00:59"},
		{0, "00:00"},
		{-3, "00:00"},
		{3601, "60:01"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
