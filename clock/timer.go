// Package clock measures incoming MIDI clock and generates outgoing clock
// from a periodic hardware (or simulated) counter.
package clock

import (
	"github.com/pkg/errors"

	"go-midiclock/tempo"
)

var (
	// ErrNotReady means the counter device is missing or not initialized.
	ErrNotReady = errors.New("clock: counter not ready")
	// ErrZeroFrequency means the counter reported 0 Hz.
	ErrZeroFrequency = errors.New("clock: counter frequency is zero")
	// ErrUnsupported is returned by backends that cannot do an operation,
	// e.g. changing the period without resetting phase.
	ErrUnsupported = errors.New("clock: operation not supported by this counter")
)

// Timer is a free-running counter with an optional periodic callback.
//
// Now may wrap; callers subtract in the counter's direction. The callback runs
// on the timer's own context and must not block.
type Timer interface {
	Ready() bool
	Now() uint32
	Frequency() uint32
	CountsUp() bool

	// ArmPeriodic sets the period and callback. It resets phase and does
	// not start the timer.
	ArmPeriodic(ticks uint32, cb func()) error
	Start() error
	Stop()
	// UpdatePeriod changes the period of a running timer without
	// restarting it, or returns ErrUnsupported.
	UpdatePeriod(ticks uint32) error

	TicksToUS(ticks uint32) uint32
	USToTicks(us uint32) uint32
}

func ticksToUS(ticks, hz uint32) uint32 {
	if hz == 0 {
		return 0
	}
	return uint32(uint64(ticks) * tempo.USPerSecond / uint64(hz))
}

func usToTicks(us, hz uint32) uint32 {
	return uint32(uint64(us) * uint64(hz) / tempo.USPerSecond)
}

// check validates a timer before a subsystem starts using it.
func check(t Timer) (uint32, error) {
	if t == nil || !t.Ready() {
		return 0, ErrNotReady
	}
	hz := t.Frequency()
	if hz == 0 {
		return 0, ErrZeroFrequency
	}
	return hz, nil
}
