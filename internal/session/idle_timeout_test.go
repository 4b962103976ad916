package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestIdleTimeoutWatcherFiresAfterInactivity(t *testing.T) {
	is := is.New(t)

	original := idleGracePeriod
	idleGracePeriod = 10 * time.Millisecond
	defer func() { idleGracePeriod = original }()

	var fired atomic.Bool
	w := NewIdleTimeoutWatcher(10*time.Millisecond, func() { fired.Store(true) })
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	is.True(fired.Load())
}

func TestIdleTimeoutWatcherResetPostponesFiring(t *testing.T) {
	is := is.New(t)

	original := idleGracePeriod
	idleGracePeriod = 20 * time.Millisecond
	defer func() { idleGracePeriod = original }()

	var fired atomic.Bool
	w := NewIdleTimeoutWatcher(20*time.Millisecond, func() { fired.Store(true) })
	defer w.Stop()

	time.Sleep(15 * time.Millisecond)
	w.Reset()
	time.Sleep(15 * time.Millisecond)
	is.True(!fired.Load()) // reset pushed the deadline past this check

	time.Sleep(40 * time.Millisecond)
	is.True(fired.Load())
}

func TestIdleTimeoutWatcherStopPreventsFiring(t *testing.T) {
	is := is.New(t)

	original := idleGracePeriod
	idleGracePeriod = 5 * time.Millisecond
	defer func() { idleGracePeriod = original }()

	var fired atomic.Bool
	w := NewIdleTimeoutWatcher(5*time.Millisecond, func() { fired.Store(true) })
	w.Stop()

	time.Sleep(30 * time.Millisecond)
	is.True(!fired.Load())
}
