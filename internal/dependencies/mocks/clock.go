package mocks

import (
	"sort"
	"sync"
	"time"

	"github.com/mcoot/impostorgame/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing.
// Timers only fire from Advance or Set, synchronously and in due order.
type MockClock struct {
	mu          sync.Mutex
	currentTime time.Time
	timers      []*mockTimer
	nextSeq     int
}

type mockTimer struct {
	clock *MockClock
	due   time.Time
	seq   int
	fn    func()
	done  bool
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

// AfterFunc registers f to run once the clock is advanced past d
func (c *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq++
	t := &mockTimer{clock: c, due: c.currentTime.Add(d), seq: c.nextSeq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by the given duration, firing due timers
func (c *MockClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// Set sets the clock to the given time, firing due timers.
// Timers armed by a firing callback are fired too if they fall due before t.
func (c *MockClock) Set(t time.Time) {
	for {
		c.mu.Lock()
		next := c.popDue(t)
		if next == nil {
			if t.After(c.currentTime) {
				c.currentTime = t
			}
			c.mu.Unlock()
			return
		}
		if next.due.After(c.currentTime) {
			c.currentTime = next.due
		}
		c.mu.Unlock()

		next.fn()
	}
}

// PendingTimers returns the number of timers that have not fired or been stopped
func (c *MockClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// popDue removes and returns the earliest timer due at or before t. Caller holds mu.
func (c *MockClock) popDue(t time.Time) *mockTimer {
	if len(c.timers) == 0 {
		return nil
	}
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].due.Equal(c.timers[j].due) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].due.Before(c.timers[j].due)
	})
	first := c.timers[0]
	if first.due.After(t) {
		return nil
	}
	c.timers = c.timers[1:]
	first.done = true
	return first
}

// Stop removes the timer if it has not fired yet
func (t *mockTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			break
		}
	}
	return true
}
