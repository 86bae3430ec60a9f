// Package globaltime is the process clock. Run timestamps, rule import times
// and the health endpoint read it so tests can pin time.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// Freeze pins the clock at t until the returned restore func is called.
// Tests that freeze the clock must not run in parallel with each other.
func Freeze(t time.Time) (restore func()) {
	mu.Lock()
	prev := nowFunc
	nowFunc = func() time.Time { return t }
	mu.Unlock()

	return func() {
		mu.Lock()
		nowFunc = prev
		mu.Unlock()
	}
}
