// internal/timing/loop.go
//
// Loop is the owned scheduler handle behind every animation.
//
// The loop is woken on a base cadence (one display refresh, or the frame
// interval when that is shorter). A wake-up that comes less than one frame
// interval after the last executed frame is skipped rather than run early,
// and missed frames are never replayed. Start/Stop are idempotent, Stop waits
// for the goroutine to exit, and a stopped loop can be started again.
// fps <= 0 means the loop never ticks.

package timing

import (
	"sync"
	"time"
)

// RefreshInterval is the default wake-up cadence (~60Hz).
const RefreshInterval = time.Second / 60

// FrameFunc is invoked once per executed frame.
type FrameFunc func(now time.Time)

// Loop runs a FrameFunc at a fixed target frame rate.
type Loop struct {
	clock Clock
	fn    FrameFunc

	mu      sync.Mutex
	fps     int
	last    time.Time
	frames  uint64
	skipped uint64
	stop    chan struct{}
	done    chan struct{}
}

// NewLoop builds a stopped loop. A nil clock means Real.
func NewLoop(fps int, clock Clock, fn FrameFunc) *Loop {
	if clock == nil {
		clock = Real{}
	}
	return &Loop{clock: clock, fn: fn, fps: fps}
}

// FrameInterval returns 1000/fps ms, or 0 when the loop is paused by fps <= 0.
func FrameInterval(fps int) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Second / time.Duration(fps)
}

// Start launches the loop goroutine. It reports false if the loop is already
// running or fps <= 0.
func (l *Loop) Start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil || l.fps <= 0 || l.fn == nil {
		return false
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.last = time.Time{}
	go l.run(l.stop, l.done, pollInterval(l.fps))
	return true
}

// Stop halts the loop and waits for the goroutine to finish. Safe to call on
// a stopped loop.
func (l *Loop) Stop() {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	l.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the loop goroutine is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop != nil
}

// SetFPS changes the target rate. A running loop is restarted at the new
// rate; fps <= 0 stops it.
func (l *Loop) SetFPS(fps int) {
	l.mu.Lock()
	same := l.fps == fps
	running := l.stop != nil
	l.fps = fps
	l.mu.Unlock()
	if same || !running {
		return
	}
	l.Stop()
	l.Start()
}

// FPS returns the configured target rate.
func (l *Loop) FPS() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fps
}

// Stats returns executed and skipped wake-up counts.
func (l *Loop) Stats() (frames, skipped uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames, l.skipped
}

func (l *Loop) run(stop, done chan struct{}, every time.Duration) {
	defer close(done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	// First frame renders immediately.
	l.wake(l.clock.Now())
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			l.wake(l.clock.Now())
		}
	}
}

// wake runs one frame if at least one interval has elapsed since the last
// executed frame, and reports whether it did.
func (l *Loop) wake(now time.Time) bool {
	l.mu.Lock()
	interval := FrameInterval(l.fps)
	if interval == 0 {
		l.mu.Unlock()
		return false
	}
	if !l.last.IsZero() && now.Sub(l.last) < interval {
		l.skipped++
		l.mu.Unlock()
		return false
	}
	l.last = now
	l.frames++
	fn := l.fn
	l.mu.Unlock()

	fn(now)
	return true
}

func pollInterval(fps int) time.Duration {
	interval := FrameInterval(fps)
	if interval > 0 && interval < RefreshInterval {
		return interval
	}
	return RefreshInterval
}
