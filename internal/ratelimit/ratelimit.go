// Package ratelimit enforces a per-key minimum interval between calls.
//
// Last-call times are persisted in a single JSON state file so limits survive
// restarts. Keys partition per (token fingerprint, endpoint class, account);
// callers must never put raw secrets in a key.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"monobudget/pkg/clock"
)

// ErrRetryLater is returned by Throttle in no-wait mode when the minimum
// interval has not yet elapsed.
type ErrRetryLater struct {
	Key       string
	Remaining time.Duration
}

func (e *ErrRetryLater) Error() string {
	return fmt.Sprintf("rate limit: wait %.1fs before calling %q again", e.Remaining.Seconds(), e.Key)
}

// Sleeper suspends the caller; injectable for tests.
type Sleeper func(d time.Duration)

// Limiter persists last-call unix times per key.
type Limiter struct {
	mu    sync.Mutex
	path  string
	clock clock.Clock
	sleep Sleeper
}

// New creates a Limiter whose state lives at path.
func New(path string, clk clock.Clock, sleep Sleeper) (*Limiter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Limiter{path: path, clock: clk, sleep: sleep}, nil
}

func (l *Limiter) load() map[string]int64 {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return map[string]int64{}
	}
	state := map[string]int64{}
	if err := json.Unmarshal(raw, &state); err != nil {
		return map[string]int64{}
	}
	return state
}

func (l *Limiter) save(state map[string]int64) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

// Throttle enforces minInterval since the last call recorded for key.
// With wait=true it sleeps out the remainder; with wait=false it returns
// *ErrRetryLater. On success the current time is recorded as the new
// last-call time.
//
// The lock covers the state reads and writes only, never the sleep: a long
// wait on one key must not stall callers throttling other keys.
func (l *Limiter) Throttle(key string, minInterval time.Duration, wait bool) error {
	l.mu.Lock()
	state := l.load()
	now := l.clock.Now().Unix()

	var remaining time.Duration
	if last, ok := state[key]; ok {
		remaining = minInterval - time.Duration(now-last)*time.Second
	}
	if remaining > 0 && !wait {
		l.mu.Unlock()
		return &ErrRetryLater{Key: key, Remaining: remaining}
	}
	l.mu.Unlock()

	if remaining > 0 {
		l.sleep(remaining)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	state = l.load()
	state[key] = l.clock.Now().Unix()
	return l.save(state)
}
