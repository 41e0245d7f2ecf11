package clock

import (
	"testing"
	"time"
)

func TestManual_AdvanceFiresDueTickers(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := NewManual(start)
	ticker := clk.NewTicker(time.Second)
	defer ticker.Stop()

	clk.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its period elapsed")
	default:
	}

	clk.Advance(500 * time.Millisecond)
	select {
	case got := <-ticker.C():
		if !got.Equal(start.Add(time.Second)) {
			t.Errorf("tick time = %v, want %v", got, start.Add(time.Second))
		}
	default:
		t.Fatal("expected a tick after one period")
	}
}

func TestManual_StoppedTickerDoesNotFire(t *testing.T) {
	clk := NewManual(time.Unix(0, 0))
	ticker := clk.NewTicker(time.Second)
	ticker.Stop()

	clk.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestManual_SetJumpsTime(t *testing.T) {
	clk := NewManual(time.Unix(0, 0))
	target := time.Unix(3600, 0)
	clk.Set(target)
	if !clk.Now().Equal(target) {
		t.Errorf("Now() = %v, want %v", clk.Now(), target)
	}
}
