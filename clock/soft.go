package clock

import (
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"

	"go-midiclock/debug"
)

// DefaultSoftHz is the resolution of the host timer counter. At 48 MHz every
// tempo from 1 to 655.35 BPM survives the ticks round trip within 0.01 BPM;
// a 1 MHz counter does not.
const DefaultSoftHz = 48_000_000

// SoftTimer runs on the host clock. The counter is derived from the monotonic
// time since creation; the periodic callback runs on a dedicated goroutine
// driven by a time.Ticker.
type SoftTimer struct {
	hz    uint32
	start time.Time

	mu       sync.Mutex
	period   uint32
	cb       func()
	ticker   *time.Ticker
	stopChan chan struct{}
}

// NewSoftTimer creates a host timer counting up at hz (0 means DefaultSoftHz).
func NewSoftTimer(hz uint32) *SoftTimer {
	if hz == 0 {
		hz = DefaultSoftHz
	}
	return &SoftTimer{hz: hz, start: time.Now()}
}

func (s *SoftTimer) Ready() bool       { return true }
func (s *SoftTimer) Frequency() uint32 { return s.hz }
func (s *SoftTimer) CountsUp() bool    { return true }

// Now wraps every 2^32 ticks like a 32-bit hardware counter.
func (s *SoftTimer) Now() uint32 {
	d := time.Since(s.start)
	secs := uint64(d / time.Second)
	rem := uint64(d % time.Second)
	return uint32(secs*uint64(s.hz) + rem*uint64(s.hz)/uint64(time.Second))
}

func (s *SoftTimer) duration(ticks uint32) time.Duration {
	return time.Duration(uint64(ticks) * uint64(time.Second) / uint64(s.hz))
}

func (s *SoftTimer) ArmPeriodic(ticks uint32, cb func()) error {
	if ticks == 0 || s.duration(ticks) <= 0 {
		return errors.Errorf("clock: period of %d ticks is too short", ticks)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.period = ticks
	s.cb = cb
	if s.ticker != nil {
		s.ticker.Reset(s.duration(ticks))
	}
	return nil
}

func (s *SoftTimer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.period == 0 {
		return errors.New("clock: start before arm")
	}
	if s.ticker != nil {
		return nil
	}
	s.ticker = time.NewTicker(s.duration(s.period))
	s.stopChan = make(chan struct{})
	go s.loop(s.ticker, s.stopChan)
	debug.Log("clock", "soft timer started, period %d ticks", s.period)
	return nil
}

func (s *SoftTimer) loop(ticker *time.Ticker, stop chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			cb := s.cb
			s.mu.Unlock()
			if cb != nil {
				cb()
			}
		}
	}
}

func (s *SoftTimer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stopChan)
	s.ticker = nil
	s.stopChan = nil
}

// UpdatePeriod resets the ticker; the next callback comes one new period
// after the call.
func (s *SoftTimer) UpdatePeriod(ticks uint32) error {
	if ticks == 0 || s.duration(ticks) <= 0 {
		return errors.Errorf("clock: period of %d ticks is too short", ticks)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.period = ticks
	if s.ticker != nil {
		s.ticker.Reset(s.duration(ticks))
	}
	return nil
}

func (s *SoftTimer) TicksToUS(ticks uint32) uint32 { return ticksToUS(ticks, s.hz) }
func (s *SoftTimer) USToTicks(us uint32) uint32    { return usToTicks(us, s.hz) }
