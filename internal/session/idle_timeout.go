package session

import (
	"sync"
	"time"
)

// idleGracePeriod is added on top of the configured no-voice timeout
// before the watcher actually fires, giving a slow client one extra
// window to resume after a borderline-long pause. A var rather than a
// const so tests can shrink it instead of sleeping out a real 60s grace.
var idleGracePeriod = 60 * time.Second

// IdleTimeoutWatcher closes a session after close_connection_no_voice_time
// plus a grace period of silence. Resetting it is cheap (one timer reset
// under a lock). Session resets it on every inbound audio frame, whether
// or not VAD reports speech in it; inbound text frames do not reset it.
type IdleTimeoutWatcher struct {
	mu      sync.Mutex
	timer   *time.Timer
	timeout time.Duration
	onFire  func()
	stopped bool
}

// NewIdleTimeoutWatcher starts a watcher that calls onFire once, from its
// own goroutine, after timeout+idleGracePeriod of inactivity. Call
// Reset on every inbound frame to push the deadline back out.
func NewIdleTimeoutWatcher(timeout time.Duration, onFire func()) *IdleTimeoutWatcher {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	w := &IdleTimeoutWatcher{timeout: timeout, onFire: onFire}
	w.timer = time.AfterFunc(timeout+idleGracePeriod, w.fire)
	return w
}

func (w *IdleTimeoutWatcher) fire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	w.onFire()
}

// Reset pushes the idle deadline back out from now.
func (w *IdleTimeoutWatcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	w.timer.Reset(w.timeout + idleGracePeriod)
}

// Stop cancels the watcher permanently. Safe to call more than once and
// safe to call concurrently with a fire already in flight.
func (w *IdleTimeoutWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	w.timer.Stop()
}
