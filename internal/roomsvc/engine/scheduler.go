package engine

import (
	"fmt"
	"sync"
	"time"
)

// Scheduler keeps the in-process timers keyed by (roomId, round, purpose)
// so a stale timer can always be cancelled when the state it was armed
// against resolves through another path. Timers are advisory: every
// callback re-validates persisted state before acting, the row lock in
// the store is what actually owns correctness.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

func timerKey(roomID int64, round int, purpose string) string {
	return fmt.Sprintf("%d:%d:%s", roomID, round, purpose)
}

// Schedule arms fn after d, replacing any timer already armed under the
// same key.
func (s *Scheduler) Schedule(roomID int64, round int, purpose string, d time.Duration, fn func()) {
	key := timerKey(roomID, round, purpose)

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
}

func (s *Scheduler) Cancel(roomID int64, round int, purpose string) {
	key := timerKey(roomID, round, purpose)

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// CancelRoom drops every timer armed for a room, whatever the round.
func (s *Scheduler) CancelRoom(roomID int64) {
	prefix := fmt.Sprintf("%d:", roomID)

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, t := range s.timers {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			t.Stop()
			delete(s.timers, key)
		}
	}
}

// Pending reports whether a timer is armed under the key. Test hook.
func (s *Scheduler) Pending(roomID int64, round int, purpose string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[timerKey(roomID, round, purpose)]
	return ok
}
