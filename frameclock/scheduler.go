// Package frameclock paces frames between the engine's vsync requests
// and the display's actual scanout/commit events, in either
// double-buffered or triple-buffered mode.
package frameclock

import (
	"container/list"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
)

// Mode selects when queued frame requests are answered.
type Mode int

const (
	// DoubleBuffered answers requests at scanout time.
	DoubleBuffered Mode = iota
	// TripleBuffered answers requests one frame early, at commit time.
	TripleBuffered
)

// Request is a single queued vsync baton. Callback receives the
// current time and the predicted time of the next vblank.
type Request struct {
	Callback func(now, next time.Time)
}

// Scheduler queues FrameRequests and answers them according to Mode,
// using a refresh-period estimate to predict the next vblank deadline.
//
// A request is "in flight" once fired and until a scanout event
// retires it. In DoubleBuffered mode at most one is in flight at a
// time; in TripleBuffered mode OnCommit fires the next request without
// retiring the previous one, so several can be. queue holds only
// requests still waiting for their turn; pending counts fired requests
// awaiting that confirmation, so Len reports genuine backlog, not work
// already handed to the engine.
type Scheduler struct {
	mu sync.Mutex

	mode          Mode
	clk           clock.Clock
	refreshPeriod time.Duration

	queue   *list.List // of Request, still unanswered
	pending int        // answered requests awaiting scanout confirmation
}

// New constructs a Scheduler. refreshPeriod is the nominal vblank
// interval of the CRTc this scheduler paces, used only to predict the
// "next" timestamp handed to a freshly-fired callback.
func New(mode Mode, clk clock.Clock, refreshPeriod time.Duration) *Scheduler {
	return &Scheduler{mode: mode, clk: clk, refreshPeriod: refreshPeriod, queue: list.New()}
}

// RequestFrame enqueues cb. If nothing is currently in flight, cb fires
// immediately with now and now+refreshPeriod and becomes the in-flight
// request; otherwise it queues behind whatever is already in flight,
// regardless of mode.
func (s *Scheduler) RequestFrame(cb func(now, next time.Time)) {
	s.mu.Lock()
	if s.pending == 0 {
		s.pending++
		s.mu.Unlock()
		now := s.clk.Now()
		cb(now, now.Add(s.refreshPeriod))
		return
	}
	s.queue.PushBack(Request{Callback: cb})
	s.mu.Unlock()
}

// OnScanout is called by the atomic builder's scanout callback with the
// commit's monotonic timestamp. In DoubleBuffered mode this retires the
// in-flight request and fires the next queued request, if any, which
// becomes the new in-flight request. In TripleBuffered mode the queued
// request was already fired early by OnCommit, so a scanout event only
// retires the in-flight slot without firing anything.
func (s *Scheduler) OnScanout(at time.Time) {
	if s.mode == TripleBuffered {
		s.retire()
		return
	}
	s.retireAndFireNext(at)
}

// OnCommit is called immediately after a commit is submitted
// successfully. In TripleBuffered mode this fires the next queued
// request (handing the engine its baton a frame early); in
// DoubleBuffered mode it is a no-op, since requests there are answered
// only once their commit has actually scanned out.
func (s *Scheduler) OnCommit(at time.Time) {
	if s.mode != TripleBuffered {
		return
	}
	s.fireNext(at)
}

// retireAndFireNext drops the in-flight slot and, if a request is
// queued, fires it and promotes it to in-flight.
func (s *Scheduler) retireAndFireNext(at time.Time) {
	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	front := s.queue.Front()
	if front == nil {
		s.mu.Unlock()
		return
	}
	s.queue.Remove(front)
	s.pending++
	s.mu.Unlock()

	req := front.Value.(Request)
	req.Callback(at, at.Add(s.refreshPeriod))
}

// fireNext fires the next queued request, if any, promoting it to
// in-flight without retiring whatever is already in flight.
func (s *Scheduler) fireNext(at time.Time) {
	s.mu.Lock()
	front := s.queue.Front()
	if front == nil {
		s.mu.Unlock()
		return
	}
	s.queue.Remove(front)
	s.pending++
	s.mu.Unlock()

	req := front.Value.(Request)
	req.Callback(at, at.Add(s.refreshPeriod))
}

// retire drops one in-flight slot without firing anything.
func (s *Scheduler) retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending > 0 {
		s.pending--
	}
}

// Len reports the number of queued requests still waiting for a turn,
// not counting whatever request is currently in flight.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}
