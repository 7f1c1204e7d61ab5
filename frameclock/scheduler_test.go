package frameclock_test

import (
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"

	"github.com/pixeldrift/compositor/frameclock"
)

const refresh = 16 * time.Millisecond

func TestDoubleBufferedImmediateFireWhenEmpty(t *testing.T) {
	fc := fakeclock.NewFakeClock(time.Unix(0, 0))
	s := frameclock.New(frameclock.DoubleBuffered, fc, refresh)

	fired := false
	s.RequestFrame(func(now, next time.Time) {
		fired = true
		if !next.Equal(now.Add(refresh)) {
			t.Errorf("next = %v, want now+refresh", next)
		}
	})
	if !fired {
		t.Error("RequestFrame: expected immediate fire on empty queue")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after immediate fire path enqueues and doesn't hold", s.Len())
	}
}

func TestDoubleBufferedQueuesWhenNonEmpty(t *testing.T) {
	fc := fakeclock.NewFakeClock(time.Unix(0, 0))
	s := frameclock.New(frameclock.DoubleBuffered, fc, refresh)

	var fireCount int
	s.RequestFrame(func(now, next time.Time) { fireCount++ })
	s.RequestFrame(func(now, next time.Time) { fireCount++ })
	if fireCount != 1 {
		t.Fatalf("fireCount after two requests = %d, want 1", fireCount)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (second request queued)", s.Len())
	}

	fc.Increment(refresh)
	s.OnScanout(fc.Now())
	if fireCount != 2 {
		t.Errorf("fireCount after scanout = %d, want 2", fireCount)
	}
	if s.Len() != 0 {
		t.Errorf("Len after scanout = %d, want 0", s.Len())
	}
}

func TestTripleBufferedAnswersAtCommit(t *testing.T) {
	fc := fakeclock.NewFakeClock(time.Unix(0, 0))
	s := frameclock.New(frameclock.TripleBuffered, fc, refresh)

	var fireCount int
	s.RequestFrame(func(now, next time.Time) { fireCount++ })
	if fireCount != 1 {
		t.Fatalf("first request should fire immediately regardless of mode, got %d", fireCount)
	}

	s.RequestFrame(func(now, next time.Time) { fireCount++ })
	if fireCount != 1 {
		t.Fatalf("second request should queue, fireCount = %d", fireCount)
	}

	fc.Increment(refresh)
	s.OnCommit(fc.Now())
	if fireCount != 2 {
		t.Errorf("fireCount after commit = %d, want 2", fireCount)
	}

	// Scanout of the commit drains bookkeeping without firing again.
	fc.Increment(refresh)
	s.OnScanout(fc.Now())
	if fireCount != 2 {
		t.Errorf("fireCount after scanout = %d, want unchanged at 2", fireCount)
	}
}

func TestOrderingIsFIFO(t *testing.T) {
	fc := fakeclock.NewFakeClock(time.Unix(0, 0))
	s := frameclock.New(frameclock.DoubleBuffered, fc, refresh)

	var order []int
	s.RequestFrame(func(now, next time.Time) { order = append(order, 1) })
	s.RequestFrame(func(now, next time.Time) { order = append(order, 2) })
	s.RequestFrame(func(now, next time.Time) { order = append(order, 3) })

	s.OnScanout(fc.Now())
	s.OnScanout(fc.Now())

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}
