package timing

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWakeSkipsEarlyCallbacks(t *testing.T) {
	clock := NewManual(time.Unix(0, 0))
	var ran int
	l := NewLoop(10, clock, func(time.Time) { ran++ })

	if !l.wake(clock.Now()) {
		t.Fatal("first wake must run a frame")
	}
	clock.Advance(50 * time.Millisecond)
	if l.wake(clock.Now()) {
		t.Fatal("wake before one interval must be skipped")
	}
	clock.Advance(50 * time.Millisecond)
	if !l.wake(clock.Now()) {
		t.Fatal("wake after one interval must run")
	}
	// A long stall runs a single frame, not a burst of catch-up frames.
	clock.Advance(time.Second)
	l.wake(clock.Now())
	if ran != 3 {
		t.Fatalf("ran %d frames, want 3", ran)
	}
	frames, skipped := l.Stats()
	if frames != 3 || skipped != 1 {
		t.Fatalf("stats = (%d,%d), want (3,1)", frames, skipped)
	}
}

func TestZeroFPSNeverTicks(t *testing.T) {
	var ran atomic.Int32
	l := NewLoop(0, nil, func(time.Time) { ran.Add(1) })
	if l.Start() {
		t.Fatal("Start must refuse fps <= 0")
	}
	if l.wake(time.Now()) {
		t.Fatal("wake must not run with fps <= 0")
	}
	if ran.Load() != 0 {
		t.Fatal("frame func must not run")
	}
}

func TestStartStopRestart(t *testing.T) {
	var ran atomic.Int32
	l := NewLoop(200, nil, func(time.Time) { ran.Add(1) })

	if !l.Start() {
		t.Fatal("first Start must succeed")
	}
	if l.Start() {
		t.Fatal("second Start while running must be refused")
	}
	time.Sleep(60 * time.Millisecond)
	l.Stop()
	l.Stop()
	if l.Running() {
		t.Fatal("loop still running after Stop")
	}

	after := ran.Load()
	if after == 0 {
		t.Fatal("expected frames while running")
	}
	time.Sleep(30 * time.Millisecond)
	if ran.Load() != after {
		t.Fatal("frames executed after Stop returned")
	}

	if !l.Start() {
		t.Fatal("restart must succeed")
	}
	time.Sleep(30 * time.Millisecond)
	l.Stop()
	if ran.Load() == after {
		t.Fatal("restarted loop did not tick")
	}
}

func TestSetFPSZeroStops(t *testing.T) {
	l := NewLoop(100, nil, func(time.Time) {})
	l.Start()
	l.SetFPS(0)
	if l.Running() {
		t.Fatal("SetFPS(0) must leave the loop stopped")
	}
	l.SetFPS(50)
	if l.Running() {
		t.Fatal("SetFPS on a stopped loop must not start it")
	}
	if l.FPS() != 50 {
		t.Fatalf("FPS = %d, want 50", l.FPS())
	}
}

func TestPollInterval(t *testing.T) {
	if got := pollInterval(30); got != RefreshInterval {
		t.Fatalf("pollInterval(30) = %v, want %v", got, RefreshInterval)
	}
	if got := pollInterval(200); got != 5*time.Millisecond {
		t.Fatalf("pollInterval(200) = %v, want 5ms", got)
	}
}
