// Package pll smooths measured 24 ppqn tick intervals into a stable tempo.
//
// The loop filter is all integer: a first order low-pass on the interval
// error, a fast loop that keeps the internal interval within a bounded
// excursion around nominal, and a slow loop that walks nominal towards the
// long-term average. Integer division truncates towards zero, which leaves a
// small deadband around zero error.
package pll

import "go-midiclock/tempo"

// Loop filter defaults.
const (
	// DefaultK is the low-pass strength on the interval error.
	DefaultK = 4
	// DefaultGain divides the filtered error before it moves the fast loop.
	DefaultGain = 4
	// DefaultTrackingGain divides the filtered error fed into nominal.
	DefaultTrackingGain = 32

	// FallbackIntervalTicks seeds nominal when no tempo is known.
	FallbackIntervalTicks = 503000
)

// Config holds the loop filter divisors. Zero fields take the defaults.
type Config struct {
	K            int32 `json:"k"`
	Gain         int32 `json:"gain"`
	TrackingGain int32 `json:"trackingGain"`
}

// DefaultConfig returns {4, 4, 32}.
func DefaultConfig() Config {
	return Config{K: DefaultK, Gain: DefaultGain, TrackingGain: DefaultTrackingGain}
}

func (c Config) withDefaults() Config {
	if c.K <= 0 {
		c.K = DefaultK
	}
	if c.Gain <= 0 {
		c.Gain = DefaultGain
	}
	if c.TrackingGain <= 0 {
		c.TrackingGain = DefaultTrackingGain
	}
	return c
}

// PLL is one clock follower's loop state. Not safe for concurrent writers.
type PLL struct {
	cfg Config

	nominal       int32 // slow loop
	internal      int32 // fast loop
	filteredError int32
	clockHz       uint32
}

// New creates a PLL seeded with the interval of sbpm at clockHz.
func New(cfg Config, sbpm uint16, clockHz uint32) *PLL {
	p := &PLL{cfg: cfg.withDefaults()}
	p.clockHz = clockHz
	p.Reset(sbpm)
	return p
}

// Reset re-seeds nominal from sbpm and clears the filter.
func (p *PLL) Reset(sbpm uint16) {
	ticks := tempo.SBPMToTicks(sbpm, p.clockHz)
	if ticks == 0 || ticks > 1<<31-1 {
		ticks = FallbackIntervalTicks
	}
	p.nominal = int32(ticks)
	p.internal = p.nominal
	p.filteredError = 0
}

// ProcessInterval feeds one measured interval in hardware ticks. Zero is a
// glitch and is ignored.
func (p *PLL) ProcessInterval(measured uint32) {
	if measured == 0 {
		return
	}

	err := int32(measured) - p.internal
	p.filteredError += (err - p.filteredError) / p.cfg.K
	p.internal = p.nominal + p.filteredError/p.cfg.Gain
	p.nominal += p.filteredError / p.cfg.TrackingGain
}

// IntervalTicks returns the slow loop estimate. Consumers get nominal rather
// than the fast loop so the generated clock stays steady.
func (p *PLL) IntervalTicks() int32 { return p.nominal }

// InternalTicks returns the fast loop prediction.
func (p *PLL) InternalTicks() int32 { return p.internal }

// FilteredError returns the low-passed interval error in ticks.
func (p *PLL) FilteredError() int32 { return p.filteredError }

// ClockHz returns the counter frequency the PLL was seeded with.
func (p *PLL) ClockHz() uint32 { return p.clockHz }

// Config returns the effective filter configuration.
func (p *PLL) Config() Config { return p.cfg }

// IntervalUS converts nominal to µs, 0 when the clock frequency is unknown.
func (p *PLL) IntervalUS() uint32 {
	if p.clockHz == 0 || p.nominal <= 0 {
		return 0
	}
	return uint32(uint64(p.nominal) * tempo.USPerSecond / uint64(p.clockHz))
}

// SBPM returns the nominal interval as scaled BPM.
func (p *PLL) SBPM() uint16 {
	if p.nominal <= 0 {
		return 0
	}
	return tempo.TicksToSBPM(uint32(p.nominal), p.clockHz)
}
