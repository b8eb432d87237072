// Package engine wires the MIDI transport, clock measurement, PLL and clock
// generator together and publishes their state for the monitor.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"go-midiclock/clock"
	"go-midiclock/config"
	"go-midiclock/debug"
	"go-midiclock/hint"
	"go-midiclock/midi"
	"go-midiclock/model"
	"go-midiclock/pll"
	"go-midiclock/tempo"
)

// Tempo limits for SetTempo and NudgeTempo.
const (
	MinSBPM = 2000  // 20 BPM
	MaxSBPM = 30000 // 300 BPM
)

const (
	// UI refresh rate
	publishFPS = 30
	// heart rate does not change that fast
	hintInterval = time.Second
	ticksPerBeat = tempo.PPQN
	// nominal within 1/lockRatio of the measured interval counts as locked
	lockRatio = 100
)

// Manager orchestrates receive parsing, clock measurement and generation
type Manager struct {
	cfg *config.Config

	transport midi.Transport
	enc       *midi.Encoder
	receiver  *midi.Receiver

	meas *clock.Measurement
	pll  *pll.PLL
	gen  *clock.Generator

	model *model.Model
	lines *midi.Queue[string]
	hint  *hint.Hint

	// published by the receive goroutine
	pllSBPM   atomic.Uint32
	pllTicks  atomic.Uint32 // nominal in measurement ticks
	pllLocked atomic.Bool
	sysexSize int

	target  atomic.Uint32 // requested sbpm
	applied atomic.Uint32 // sbpm the generator was last tuned to
	clockOn atomic.Bool
	follow  atomic.Bool // steer the generator from the PLL
	ticks   atomic.Uint64
	tuneMu  sync.Mutex

	// test pattern pacing
	ccDelay   time.Duration
	noteDelay time.Duration

	wg sync.WaitGroup

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// NewManager creates a manager on transport t. measTimer times received
// clock pulses and genTimer drives the generated clock; they may be the same
// timer. A timer that is not usable only disables its own subsystem.
func NewManager(cfg *config.Config, t midi.Transport, measTimer, genTimer clock.Timer) (*Manager, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.New("engine: no transport")
	}

	m := &Manager{
		cfg:        cfg,
		transport:  t,
		model:      model.New(),
		lines:      midi.NewQueue[string](cfg.Queue.LineDepth),
		hint:       &hint.Hint{},
		ccDelay:    290 * time.Millisecond,
		noteDelay:  310 * time.Millisecond,
		UpdateChan: make(chan struct{}, 1),
	}

	m.enc = midi.NewEncoder(t,
		midi.WithRunningStatus(cfg.Encoder.RunningStatus),
		midi.WithRepeatLimit(cfg.Encoder.RepeatLimit),
		midi.WithTimeout(time.Duration(cfg.Encoder.TimeoutMs)*time.Millisecond),
	)
	m.receiver = midi.NewReceiver(t, midi.MessageFunc(m.onMessage))

	var err error
	m.meas, err = clock.NewMeasurement(measTimer, cfg.Clock.BlockAverageSize)
	if err != nil {
		debug.Warn("engine", "clock measurement disabled: %v", err)
	}
	m.pll = pll.New(cfg.PLL, cfg.Clock.InitialSBPM, m.meas.ClockFreq())

	m.gen, err = clock.NewGenerator(genTimer, m.onTick)
	if err != nil {
		debug.Warn("engine", "clock generator disabled: %v", err)
	}

	initial := cfg.Clock.InitialSBPM
	if cfg.UI.LastSBPM != 0 {
		initial = cfg.UI.LastSBPM
	}
	m.target.Store(uint32(clampSBPM(int(initial))))
	m.follow.Store(cfg.Clock.FollowClock)
	return m, nil
}

// StartRuntime starts the receive, hint and publish goroutines. They run
// until ctx is done.
func (m *Manager) StartRuntime(ctx context.Context) {
	m.wg.Add(3)
	go func() {
		defer m.wg.Done()
		if err := m.receiver.Run(ctx); err != nil {
			debug.Warn("engine", "%v", err)
		}
	}()
	go func() {
		defer m.wg.Done()
		m.hintLoop(ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.publishLoop(ctx)
	}()
}

// Wait blocks until the runtime goroutines returned.
func (m *Manager) Wait() { m.wg.Wait() }

// Close stops the clock and closes the transport.
func (m *Manager) Close() error {
	m.StopClock()
	return m.transport.Close()
}

func (m *Manager) Hint() *hint.Hint                { return m.hint }
func (m *Manager) Lines() *midi.Queue[string]      { return m.lines }
func (m *Manager) Encoder() *midi.Encoder          { return m.enc }
func (m *Manager) Measurement() *clock.Measurement { return m.meas }
func (m *Manager) Generator() *clock.Generator     { return m.gen }
func (m *Manager) Config() *config.Config          { return m.cfg }

// RxBytes counts parsed bytes.
func (m *Manager) RxBytes() uint64 { return m.receiver.Bytes() }

// Snapshot returns a copy of the display model.
func (m *Manager) Snapshot() model.State { return m.model.Get() }

// onMessage runs on the receive goroutine and must not block.
func (m *Manager) onMessage(msg midi.Message) {
	switch msg.Kind {
	case midi.KindRealtime:
		m.onRealtime(msg.Status)
		return
	case midi.KindSysExStart:
		m.sysexSize = 0
		return
	case midi.KindSysExData:
		m.sysexSize++
		return
	case midi.KindSysExStop:
		m.pushLine(SysExLine(m.sysexSize))
		return
	}

	line, ok := FormatLine(msg)
	if !ok {
		return
	}
	debug.Log("rx", "%s", line)
	m.pushLine(line)
}

func (m *Manager) pushLine(line string) {
	if !m.lines.TryPush(line) {
		debug.LogEvery(50, "rx", "line queue full, dropped %d", m.lines.Dropped())
	}
}

func (m *Manager) onRealtime(status uint8) {
	switch status {
	case midi.TimingClock:
		if iv, ok := m.meas.Pulse(); ok {
			m.pll.ProcessInterval(iv)
			m.pllSBPM.Store(uint32(m.pll.SBPM()))
			m.pllTicks.Store(uint32(max(m.pll.IntervalTicks(), 0)))
			m.pllLocked.Store(m.meas.Valid() && locked(m.pll))
			debug.LogEvery(96, "pll", "interval %d ticks, nominal %d, err %d", iv, m.pll.IntervalTicks(), m.pll.FilteredError())
		}
	case midi.Start:
		// a new song position has no timing relation to the last clock.
		// The PLL keeps its tempo estimate but drops the filter state.
		m.meas.Reset()
		m.pll.Reset(m.pll.SBPM())
		m.pllLocked.Store(false)
		m.model.SetTransport(model.TransportPlaying)
	case midi.Continue:
		m.model.SetTransport(model.TransportPlaying)
	case midi.Stop:
		m.model.SetTransport(model.TransportStopped)
	}
}

// onTick runs on the generator timer.
func (m *Manager) onTick() {
	m.enc.TimingClock()
	if m.ticks.Add(1)%ticksPerBeat == 0 {
		m.model.ToggleLED()
	}
}

func (m *Manager) hintLoop(ctx context.Context) {
	ticker := time.NewTicker(hintInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.applyHint()
		}
	}
}

func locked(p *pll.PLL) bool {
	e := int64(p.FilteredError())
	if e < 0 {
		e = -e
	}
	return p.IntervalTicks() > 0 && e*lockRatio <= int64(p.IntervalTicks())
}

// applyHint picks the tempo source and retunes a running clock. A connected
// heart rate wins; otherwise a locked PLL is followed when follow mode is on.
func (m *Manager) applyHint() {
	if m.hint.Connected() {
		if sbpm := m.hint.SBPM(); sbpm != 0 {
			m.target.Store(uint32(clampSBPM(int(sbpm))))
			if m.clockOn.Load() {
				m.retune()
			}
			return
		}
	}
	if m.follow.Load() && m.pllLocked.Load() {
		m.followPLL()
		return
	}
	if m.clockOn.Load() {
		m.retune()
	}
}

// followTicks converts the PLL nominal from measurement ticks to generator
// ticks, clamped to the settable tempo range.
func (m *Manager) followTicks() (uint32, uint16, bool) {
	measHz, genHz := m.meas.ClockFreq(), m.gen.ClockHz()
	nominal := m.pllTicks.Load()
	if measHz == 0 || genHz == 0 || nominal == 0 {
		return 0, 0, false
	}
	ticks := uint32(uint64(nominal) * uint64(genHz) / uint64(measHz))
	sbpm := tempo.TicksToSBPM(ticks, genHz)
	if c := clampSBPM(int(sbpm)); c != sbpm {
		sbpm = c
		ticks = tempo.SBPMToTicks(sbpm, genHz)
	}
	return ticks, sbpm, ticks != 0
}

// followPLL makes the PLL estimate the target and drives a running
// generator at the PLL interval directly, keeping the sub-sbpm precision.
func (m *Manager) followPLL() {
	ticks, sbpm, ok := m.followTicks()
	if !ok {
		return
	}
	m.target.Store(uint32(sbpm))
	if !m.clockOn.Load() {
		return
	}

	m.tuneMu.Lock()
	defer m.tuneMu.Unlock()

	if m.gen.Running() && m.gen.IntervalTicks() == ticks {
		return
	}
	var err error
	if m.gen.Running() {
		err = m.gen.UpdateTicks(ticks)
		if errors.Is(err, clock.ErrUnsupported) {
			err = m.gen.TicksStart(ticks)
		}
	} else {
		err = m.gen.TicksStart(ticks)
	}
	if err != nil {
		debug.Warn("engine", "follow %d ticks: %v", ticks, err)
		return
	}
	m.applied.Store(uint32(sbpm))
	debug.LogEvery(10, "engine", "following PLL at %s BPM (%d ticks)", tempo.FormatSBPM(sbpm), ticks)
}

// retune moves the generator to the target tempo, keeping phase when the
// timer can change its period on the fly.
func (m *Manager) retune() {
	m.tuneMu.Lock()
	defer m.tuneMu.Unlock()

	sbpm := uint16(m.target.Load())
	if m.gen.Running() && uint16(m.applied.Load()) == sbpm {
		return
	}

	if m.gen.Running() {
		ticks := tempo.SBPMToTicks(sbpm, m.gen.ClockHz())
		err := m.gen.UpdateTicks(ticks)
		if err == nil {
			m.applied.Store(uint32(sbpm))
			debug.Log("engine", "clock retuned to %s BPM", tempo.FormatSBPM(sbpm))
			return
		}
		if !errors.Is(err, clock.ErrUnsupported) {
			debug.Warn("engine", "retune: %v", err)
		}
	}

	if err := m.gen.GenSBPM(sbpm); err != nil {
		debug.Warn("engine", "generate %s BPM: %v", tempo.FormatSBPM(sbpm), err)
		return
	}
	m.applied.Store(uint32(sbpm))
}

func (m *Manager) publishLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / publishFPS)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.publish()
		}
	}
}

// publish copies the live values into the model and notifies the UI.
func (m *Manager) publish() {
	u := model.Update{
		HRConnected: m.hint.Connected(),
		HRBPM:       m.hint.BPM(),
		MeasSBPM:    m.meas.SBPM(),
		PLLSBPM:     uint16(m.pllSBPM.Load()),
		GenRunning:  m.gen.Running(),
		Following:   m.follow.Load(),
		RxDropped:   m.transport.Dropped(),
		LineDropped: m.lines.Dropped(),
	}
	if u.GenRunning {
		u.GenSBPM = m.gen.SBPM()
		u.LEDInterval = tempo.SBPMToUSInterval(u.GenSBPM)
	}
	m.model.Set(u)

	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}

// TargetSBPM is the tempo the generator runs at when started.
func (m *Manager) TargetSBPM() uint16 { return uint16(m.target.Load()) }

// SetTempo sets the target tempo (clamped to 20..300 BPM). A connected heart
// rate overrides it on the next hint update.
func (m *Manager) SetTempo(sbpm uint16) {
	m.target.Store(uint32(clampSBPM(int(sbpm))))
	if m.clockOn.Load() {
		m.retune()
	}
}

// SetFollow switches PLL follow mode. Turning it off leaves the generator at
// the last followed tempo.
func (m *Manager) SetFollow(on bool) {
	m.follow.Store(on)
	debug.Log("engine", "follow mode %v", on)
}

// Following reports whether follow mode is on.
func (m *Manager) Following() bool { return m.follow.Load() }

// PLLLocked reports whether the PLL has settled on a full measurement block.
func (m *Manager) PLLLocked() bool { return m.pllLocked.Load() }

// NudgeTempo changes the target tempo by delta sbpm.
func (m *Manager) NudgeTempo(delta int) {
	m.SetTempo(clampSBPM(int(m.TargetSBPM()) + delta))
}

// StartClock starts generating clock at the target tempo and sends Start.
func (m *Manager) StartClock() error {
	if !m.gen.Enabled() {
		return clock.ErrNotReady
	}
	if m.clockOn.Swap(true) {
		return nil
	}
	m.ticks.Store(0)
	m.enc.Start()
	m.retune()
	if !m.gen.Running() {
		m.clockOn.Store(false)
		return errors.Errorf("engine: clock did not start at %s BPM", tempo.FormatSBPM(m.TargetSBPM()))
	}
	debug.Fields("engine", "clock started", map[string]any{
		"sbpm":  m.gen.SBPM(),
		"ticks": m.gen.IntervalTicks(),
		"hz":    m.gen.ClockHz(),
	})
	return nil
}

// StopClock stops the generator and sends Stop.
func (m *Manager) StopClock() {
	if !m.clockOn.Swap(false) {
		return
	}
	m.gen.Stop()
	m.applied.Store(0)
	m.enc.Stop()
	m.model.SetLED(model.LEDOff)
}

// ClockRunning reports whether StartClock is in effect.
func (m *Manager) ClockRunning() bool { return m.clockOn.Load() }

// SendTestPattern plays a CC1 sweep on channel 16 paced under the running
// status timeout, then a note sweep on channel 7 paced over it, then the
// note offs back to back.
func (m *Manager) SendTestPattern(ctx context.Context) error {
	for value := uint8(0); value < 16; value++ {
		m.enc.ControlChange(15, midi.CtlModWheelMSB, value)
		if err := sleep(ctx, m.ccDelay); err != nil {
			return err
		}
	}
	for key := uint8(60); key < 66; key++ {
		m.enc.NoteOn(6, key, 100)
		if err := sleep(ctx, m.noteDelay); err != nil {
			return err
		}
	}
	for key := uint8(60); key < 66; key++ {
		m.enc.NoteOff(6, key, 100)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func clampSBPM(v int) uint16 {
	if v < MinSBPM {
		return MinSBPM
	}
	if v > MaxSBPM {
		return MaxSBPM
	}
	return uint16(v)
}
