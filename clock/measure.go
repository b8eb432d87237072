package clock

import (
	"sync/atomic"

	"go-midiclock/debug"
	"go-midiclock/tempo"
)

// InitialSBPM is the tempo assumed before anything was measured (120.00).
const InitialSBPM = 12000

// Measurement times incoming 24 ppqn clock pulses against a free-running
// counter and turns the block-averaged interval into scaled BPM.
//
// Pulse, Reset and the averaging state belong to one goroutine (the
// receiver). The getters read atomically published values and may be called
// from anywhere; the most recent publish wins.
type Measurement struct {
	t        Timer
	enabled  bool
	countsUp bool
	hz       uint32

	avg    *tempo.BlockAverage
	lastTS uint32
	seeded bool

	timestamp atomic.Uint32
	interval  atomic.Uint32
	sbpm      atomic.Uint32
	valid     atomic.Bool
	pulses    atomic.Uint64
}

// NewMeasurement prepares a measurement on t, averaging blockSize intervals
// (0 means 48). When t is unusable the error says why and the returned
// Measurement is disabled: Pulse does nothing and SBPM stays 0.
func NewMeasurement(t Timer, blockSize int) (*Measurement, error) {
	m := &Measurement{
		t:   t,
		avg: tempo.NewBlockAverage(blockSize),
	}
	m.sbpm.Store(InitialSBPM)

	hz, err := check(t)
	if err != nil {
		debug.Log("meas", "measurement disabled: %v", err)
		return m, err
	}
	m.hz = hz
	m.countsUp = t.CountsUp()
	m.enabled = true
	debug.Log("meas", "measurement on %d Hz counter (up=%v, block %d)", hz, m.countsUp, m.avg.Size())
	return m, nil
}

// Pulse records one clock pulse. It returns the interval since the previous
// pulse in counter ticks, or ok=false for the seeding pulse, a zero interval
// or a disabled measurement.
func (m *Measurement) Pulse() (interval uint32, ok bool) {
	if !m.enabled {
		return 0, false
	}
	now := m.t.Now()
	m.timestamp.Store(now)
	m.pulses.Add(1)

	if !m.seeded {
		m.lastTS = now
		m.seeded = true
		return 0, false
	}

	if m.countsUp {
		interval = now - m.lastTS
	} else {
		interval = m.lastTS - now
	}
	m.lastTS = now

	// double trigger
	if interval == 0 {
		return 0, false
	}
	m.interval.Store(interval)
	if m.t.TicksToUS(interval) == 0 {
		return interval, true
	}

	m.avg.Add(interval)
	if m.avg.Full() {
		us := m.t.TicksToUS(m.avg.Average())
		if us > 0 {
			m.sbpm.Store(uint32(tempo.USIntervalToSBPM(us)))
			m.valid.Store(true)
		}
	}
	return interval, true
}

// Reset forgets the previous pulse and the average. The next pulse seeds.
func (m *Measurement) Reset() {
	m.seeded = false
	m.avg.Reset()
	m.valid.Store(false)
	m.interval.Store(0)
}

// SBPM returns the measured tempo, 0 until a full block was averaged.
func (m *Measurement) SBPM() uint16 {
	if !m.valid.Load() {
		return 0
	}
	return uint16(m.sbpm.Load())
}

func (m *Measurement) Valid() bool   { return m.valid.Load() }
func (m *Measurement) Enabled() bool { return m.enabled }

// LastTimestamp is the counter value at the most recent pulse.
func (m *Measurement) LastTimestamp() uint32 { return m.timestamp.Load() }

// IntervalTicks is the most recent raw (unaveraged) pulse interval.
func (m *Measurement) IntervalTicks() uint32 { return m.interval.Load() }

// IntervalUS is IntervalTicks in µs.
func (m *Measurement) IntervalUS() uint32 {
	if !m.enabled {
		return 0
	}
	return m.t.TicksToUS(m.interval.Load())
}

// ClockFreq is the counter frequency, 0 when disabled.
func (m *Measurement) ClockFreq() uint32 { return m.hz }

// Pulses counts calls to Pulse on an enabled measurement.
func (m *Measurement) Pulses() uint64 { return m.pulses.Load() }
