// Package ratelimiter bounds outbound message volume per room so a
// chatty caller cannot flood the server into disconnecting us.
package ratelimiter

import (
	"sync"
	"time"
)

// FixedWindow counts sends per key in fixed wall-clock windows. Once
// the count for a key reaches the limit, further sends are denied
// until the window rolls over.
type FixedWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	slots map[string]*windowSlot
}

type windowSlot struct {
	count   int
	resetAt time.Time
}

func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		slots:  make(map[string]*windowSlot),
	}
}

// Allow records one send for key. It reports whether the send may
// proceed and, when denied, how long until the window resets. Expired
// slots for other keys are pruned opportunistically; the key space is
// the set of joined rooms, so no background sweeper is needed.
func (fw *FixedWindow) Allow(key string) (bool, time.Duration) {
	now := fw.now()

	fw.mu.Lock()
	defer fw.mu.Unlock()

	for k, slot := range fw.slots {
		if k != key && now.After(slot.resetAt) {
			delete(fw.slots, k)
		}
	}

	slot, ok := fw.slots[key]
	if !ok || now.After(slot.resetAt) {
		fw.slots[key] = &windowSlot{
			count:   1,
			resetAt: now.Truncate(fw.window).Add(fw.window),
		}
		return true, 0
	}

	if slot.count >= fw.limit {
		return false, slot.resetAt.Sub(now)
	}
	slot.count++
	return true, 0
}

// Reset drops all window state. Called when the connection goes away
// so a fresh session starts with a clean quota.
func (fw *FixedWindow) Reset() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.slots = make(map[string]*windowSlot)
}
