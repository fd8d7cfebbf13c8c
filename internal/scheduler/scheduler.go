// Package scheduler drives the render loop: while running it issues one tick
// per display refresh and stops cleanly on request.
package scheduler

import "sync"

// State is the scheduler lifecycle state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Scheduler is a Stopped/Running state machine on top of a Clock.
//
// Start and Stop may be called from the tick itself. When called from other
// goroutines, a tick already in progress finishes, but none starts after
// Stop returns.
type Scheduler struct {
	clock Clock
	tick  func()

	mu      sync.Mutex
	state   State
	pending Handle
	armed   bool
	gen     uint64
	closed  bool
	ticks   uint64
}

// New returns a stopped scheduler that calls tick on each refresh.
func New(clock Clock, tick func()) *Scheduler {
	return &Scheduler{clock: clock, tick: tick}
}

// Start moves Stopped to Running. It is a no-op while running or after Close.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state == Running {
		return
	}
	s.state = Running
	s.gen++
	s.request()
}

// Stop moves Running to Stopped and cancels the pending refresh.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
}

// Close stops the scheduler for good.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	s.closed = true
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ticks returns how many ticks have run.
func (s *Scheduler) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

func (s *Scheduler) stop() {
	if s.state != Running {
		return
	}
	s.state = Stopped
	s.gen++
	if s.armed {
		s.clock.Cancel(s.pending)
		s.armed = false
	}
}

// request must be called with mu held.
func (s *Scheduler) request() {
	gen := s.gen
	s.pending = s.clock.Request(func() { s.fire(gen) })
	s.armed = true
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.state != Running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.armed = false
	s.ticks++
	s.mu.Unlock()

	s.tick()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running && gen == s.gen && !s.armed {
		s.request()
	}
}
