package clock

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"go-midiclock/debug"
	"go-midiclock/tempo"
)

// State of a Generator.
type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "Running"
	}
	return "Stopped"
}

// Generator emits one onTick call per 24 ppqn clock pulse from a periodic
// timer.
//
// A timer callback already in flight when Stop is called may still fire
// once; the tick handler drops it.
type Generator struct {
	t       Timer
	onTick  func()
	enabled bool
	hz      uint32

	state   atomic.Int32
	sbpm    atomic.Uint32
	ticks   atomic.Uint32
	fired   atomic.Uint64
	emitted atomic.Uint64
}

// NewGenerator creates a stopped generator calling onTick (nil is a no-op).
// When t is unusable the error says why and the generator stays Stopped.
func NewGenerator(t Timer, onTick func()) (*Generator, error) {
	if onTick == nil {
		onTick = func() {}
	}
	g := &Generator{t: t, onTick: onTick}
	g.sbpm.Store(InitialSBPM)

	hz, err := check(t)
	if err != nil {
		debug.Log("clock", "generator disabled: %v", err)
		return g, err
	}
	g.hz = hz
	g.enabled = true
	return g, nil
}

// handler runs on the timer context.
func (g *Generator) handler() {
	g.fired.Add(1)
	if State(g.state.Load()) != Running {
		return
	}
	g.emitted.Add(1)
	g.onTick()
}

// GenSBPM (re)starts the clock at sbpm.
func (g *Generator) GenSBPM(sbpm uint16) error {
	if !g.enabled {
		return ErrNotReady
	}
	ticks := tempo.SBPMToTicks(sbpm, g.hz)
	if ticks == 0 {
		return errors.Errorf("clock: cannot generate %s BPM", tempo.FormatSBPM(sbpm))
	}
	if err := g.TicksStart(ticks); err != nil {
		return err
	}
	g.sbpm.Store(uint32(sbpm))
	return nil
}

// Start (re)starts the clock with a pulse interval in µs.
func (g *Generator) Start(intervalUS uint32) error {
	if intervalUS == 0 {
		return nil
	}
	if !g.enabled {
		return ErrNotReady
	}
	if err := g.TicksStart(g.t.USToTicks(intervalUS)); err != nil {
		return err
	}
	g.sbpm.Store(uint32(tempo.USIntervalToSBPM(intervalUS)))
	return nil
}

// TicksStart (re)starts the clock with a period in counter ticks, skipping
// the µs rounding of Start. Zero is ignored.
func (g *Generator) TicksStart(ticks uint32) error {
	if ticks == 0 {
		return nil
	}
	if !g.enabled {
		return ErrNotReady
	}
	g.state.Store(int32(Running))
	if err := g.t.ArmPeriodic(ticks, g.handler); err != nil {
		g.state.Store(int32(Stopped))
		return errors.Wrap(err, "arm generator")
	}
	if err := g.t.Start(); err != nil {
		g.state.Store(int32(Stopped))
		return errors.Wrap(err, "start generator")
	}
	g.ticks.Store(ticks)
	g.sbpm.Store(uint32(tempo.TicksToSBPM(ticks, g.hz)))
	debug.Log("clock", "generating %s BPM (%d ticks)", tempo.FormatSBPM(g.SBPM()), ticks)
	return nil
}

// UpdateTicks changes the period without resetting phase. Counters that
// cannot do that return ErrUnsupported and keep the old period.
func (g *Generator) UpdateTicks(ticks uint32) error {
	if !g.enabled {
		return ErrNotReady
	}
	if ticks == 0 {
		return nil
	}
	if err := g.t.UpdatePeriod(ticks); err != nil {
		return err
	}
	g.ticks.Store(ticks)
	g.sbpm.Store(uint32(tempo.TicksToSBPM(ticks, g.hz)))
	return nil
}

// Stop marks the generator stopped and asks the timer to stop. It does not
// wait for an in-flight tick.
func (g *Generator) Stop() {
	g.state.Store(int32(Stopped))
	if g.enabled {
		g.t.Stop()
	}
}

func (g *Generator) State() State   { return State(g.state.Load()) }
func (g *Generator) Running() bool  { return g.State() == Running }
func (g *Generator) Enabled() bool  { return g.enabled }
func (g *Generator) SBPM() uint16   { return uint16(g.sbpm.Load()) }
func (g *Generator) Fired() uint64  { return g.fired.Load() }
func (g *Generator) Emitted() uint64 { return g.emitted.Load() }

// ClockHz is the counter frequency, 0 when disabled.
func (g *Generator) ClockHz() uint32 { return g.hz }

// IntervalTicks is the armed period, 0 before the first start.
func (g *Generator) IntervalTicks() uint32 { return g.ticks.Load() }

// IntervalUS is the armed period in µs.
func (g *Generator) IntervalUS() uint32 {
	if !g.enabled {
		return 0
	}
	return g.t.TicksToUS(g.ticks.Load())
}
