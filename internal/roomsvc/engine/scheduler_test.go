package engine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerFires(t *testing.T) {
	s := NewScheduler()
	done := make(chan struct{})

	s.Schedule(1, 1, "turn", 10*time.Millisecond, func() { close(done) })
	if !s.Pending(1, 1, "turn") {
		t.Fatal("timer not pending after Schedule")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	// fired timers fall out of the table
	deadline := time.Now().Add(time.Second)
	for s.Pending(1, 1, "turn") {
		if time.Now().After(deadline) {
			t.Fatal("fired timer still pending")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler()
	var fired int32

	s.Schedule(2, 1, "turn", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	s.Cancel(2, 1, "turn")

	if s.Pending(2, 1, "turn") {
		t.Fatal("cancelled timer still pending")
	}
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("cancelled timer fired")
	}
}

func TestSchedulerReplaceSameKey(t *testing.T) {
	s := NewScheduler()
	var first, second int32

	s.Schedule(3, 2, "turn", 20*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	s.Schedule(3, 2, "turn", 20*time.Millisecond, func() { atomic.AddInt32(&second, 1) })

	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&first) != 0 {
		t.Fatal("replaced timer fired")
	}
	if atomic.LoadInt32(&second) != 1 {
		t.Fatalf("replacement fired %d times, want 1", atomic.LoadInt32(&second))
	}
}

func TestSchedulerCancelRoom(t *testing.T) {
	s := NewScheduler()
	var fired int32

	s.Schedule(4, 1, "turn", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	s.Schedule(4, 2, "turn", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	s.Schedule(5, 1, "turn", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	s.CancelRoom(4)

	if s.Pending(4, 1, "turn") || s.Pending(4, 2, "turn") {
		t.Fatal("room 4 timers survived CancelRoom")
	}
	if !s.Pending(5, 1, "turn") {
		t.Fatal("room 5 timer cancelled by CancelRoom(4)")
	}

	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("fired %d times, want only room 5's timer", atomic.LoadInt32(&fired))
	}
}
