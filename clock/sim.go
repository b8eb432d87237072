package clock

import (
	"sync"

	"github.com/pkg/errors"
)

// SimOption configures a SimTimer.
type SimOption func(*SimTimer)

// SimCountDown makes the counter decrement, like a PIT.
func SimCountDown() SimOption { return func(s *SimTimer) { s.countsUp = false } }

// SimNotReady makes Ready report false.
func SimNotReady() SimOption { return func(s *SimTimer) { s.ready = false } }

// SimNoUpdate makes UpdatePeriod fail with ErrUnsupported.
func SimNoUpdate() SimOption { return func(s *SimTimer) { s.noUpdate = true } }

// SimStartAt sets the initial counter value.
func SimStartAt(v uint32) SimOption { return func(s *SimTimer) { s.counter = v } }

// SimTimer is a deterministic software counter. Time only moves on Advance,
// which fires the armed callback at every period boundary with the counter
// positioned exactly on that boundary.
type SimTimer struct {
	mu       sync.Mutex
	hz       uint32
	countsUp bool
	ready    bool
	noUpdate bool

	counter uint32
	period  uint32
	phase   uint32 // ticks since the last fire
	cb      func()
	running bool
	fired   uint64
}

// NewSimTimer creates a counting-up simulated timer at hz.
func NewSimTimer(hz uint32, opts ...SimOption) *SimTimer {
	s := &SimTimer{hz: hz, countsUp: true, ready: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SimTimer) Ready() bool       { return s.ready }
func (s *SimTimer) Frequency() uint32 { return s.hz }
func (s *SimTimer) CountsUp() bool    { return s.countsUp }

func (s *SimTimer) Now() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

func (s *SimTimer) ArmPeriodic(ticks uint32, cb func()) error {
	if !s.ready {
		return ErrNotReady
	}
	if ticks == 0 {
		return errors.New("clock: zero period")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.period = ticks
	s.phase = 0
	s.cb = cb
	return nil
}

func (s *SimTimer) Start() error {
	if !s.ready {
		return ErrNotReady
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.period == 0 {
		return errors.New("clock: start before arm")
	}
	s.running = true
	return nil
}

func (s *SimTimer) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *SimTimer) UpdatePeriod(ticks uint32) error {
	if s.noUpdate {
		return ErrUnsupported
	}
	if ticks == 0 {
		return errors.New("clock: zero period")
	}
	s.mu.Lock()
	s.period = ticks
	s.mu.Unlock()
	return nil
}

func (s *SimTimer) TicksToUS(ticks uint32) uint32 { return ticksToUS(ticks, s.hz) }
func (s *SimTimer) USToTicks(us uint32) uint32    { return usToTicks(us, s.hz) }

// Running reports whether periodic callbacks are enabled.
func (s *SimTimer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Fired counts periodic callbacks delivered.
func (s *SimTimer) Fired() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// Set moves the counter to v without firing anything.
func (s *SimTimer) Set(v uint32) {
	s.mu.Lock()
	s.counter = v
	s.mu.Unlock()
}

// Advance lets ticks elapse. The callback runs without the lock held and may
// call back into the timer.
func (s *SimTimer) Advance(ticks uint32) {
	for ticks > 0 {
		s.mu.Lock()
		step := ticks
		fire := false
		if s.running && s.period > 0 {
			var left uint32
			if s.phase < s.period {
				left = s.period - s.phase
			}
			if left <= step {
				step = left
				fire = true
			}
		}

		if s.countsUp {
			s.counter += step
		} else {
			s.counter -= step
		}

		var cb func()
		switch {
		case fire:
			s.phase = 0
			s.fired++
			cb = s.cb
		case s.running:
			s.phase += step
		}
		s.mu.Unlock()

		ticks -= step
		if cb != nil {
			cb()
		}
	}
}
