package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-midiclock/clock"
	"go-midiclock/config"
	"go-midiclock/midi"
	"go-midiclock/model"
	"go-midiclock/tempo"
)

const (
	testHz    = 1_000_000
	tick120us = 20833
)

type rig struct {
	m    *Manager
	peer *midi.LoopTransport // the other end of the cable
	meas *clock.SimTimer
	gen  *clock.SimTimer
}

func newRig(t *testing.T, cfg *config.Config, genOpts ...clock.SimOption) *rig {
	t.Helper()
	a, b := midi.NewPipe(256)
	r := &rig{
		peer: b,
		meas: clock.NewSimTimer(testHz),
		gen:  clock.NewSimTimer(testHz, genOpts...),
	}
	m, err := NewManager(cfg, a, r.meas, r.gen)
	if err != nil {
		t.Fatal(err)
	}
	r.m = m
	return r
}

// sent drains what the manager wrote to the cable.
func (r *rig) sent() []byte {
	var out []byte
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for r.peer.Pending() > 0 {
		b, err := r.peer.Receive(ctx)
		if err != nil {
			break
		}
		out = append(out, b)
	}
	return out
}

func (r *rig) pulse(n int, interval uint32) {
	for i := 0; i < n; i++ {
		r.meas.Advance(interval)
		r.m.onMessage(midi.Message{Kind: midi.KindRealtime, Status: midi.TimingClock})
	}
}

func TestReceiveLines(t *testing.T) {
	r := newRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r.m.StartRuntime(ctx)
	defer func() {
		cancel()
		r.m.Wait()
	}()

	enc := midi.NewEncoder(r.peer)
	enc.NoteOn(3, 60, 100)
	enc.NoteOn(3, 62, 0)
	enc.TimingClock()
	enc.PitchWheel(0, 0)
	enc.ControlChange(15, 1, 64)
	enc.SysExStart()
	enc.SysExBulk([]byte{0x7E, 0x00, 0x09})
	enc.SysExStop()

	want := []string{
		"CH: 4 -> Note   on: C4 060 100",
		"CH: 4 -> Note  off: D4 062 000",
		"CH: 1 -> Pitchwheel: -8192",
		"CH: 16 -> CC: 1 value: 64",
		"SysEx: 3 bytes",
	}
	wait, done := context.WithTimeout(ctx, 2*time.Second)
	defer done()
	for i, w := range want {
		got, err := r.m.Lines().Pop(wait)
		if err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if got != w {
			t.Errorf("line %d = %q, want %q", i, got, w)
		}
	}
}

func TestMeasuredTempoPublished(t *testing.T) {
	r := newRig(t, nil)
	r.m.publish()
	if s := r.m.Snapshot(); s.PLLSBPM != 0 || s.MeasSBPM != 0 {
		t.Fatalf("values before any clock: %+v", s)
	}

	r.pulse(49, tick120us)
	r.m.publish()
	s := r.m.Snapshot()
	if s.MeasSBPM != 12000 {
		t.Errorf("meas = %d, want 12000", s.MeasSBPM)
	}
	if s.PLLSBPM != 12000 {
		t.Errorf("pll = %d, want 12000", s.PLLSBPM)
	}
	select {
	case <-r.m.UpdateChan:
	default:
		t.Error("publish did not notify")
	}
}

func TestPLLFollowsNewTempo(t *testing.T) {
	r := newRig(t, nil)
	// 100 BPM against a PLL seeded at 120
	r.pulse(2000, 25000)
	r.m.publish()
	got := int(r.m.Snapshot().PLLSBPM)
	if got < 9975 || got > 10025 {
		t.Errorf("pll = %d, want about 10000", got)
	}
	if r.m.Snapshot().MeasSBPM != 10000 {
		t.Errorf("meas = %d", r.m.Snapshot().MeasSBPM)
	}
}

func TestTransportState(t *testing.T) {
	r := newRig(t, nil)
	r.pulse(10, tick120us)
	r.m.onMessage(midi.Message{Kind: midi.KindRealtime, Status: midi.Start})
	if r.m.Snapshot().Transport != model.TransportPlaying {
		t.Error("Start not recorded")
	}
	// Start restarts the measurement: the next pulse only seeds
	r.meas.Advance(500000)
	if _, ok := r.m.Measurement().Pulse(); ok {
		t.Error("measurement not reset by Start")
	}
	r.m.onMessage(midi.Message{Kind: midi.KindRealtime, Status: midi.Stop})
	if r.m.Snapshot().Transport != model.TransportStopped {
		t.Error("Stop not recorded")
	}
	r.m.onMessage(midi.Message{Kind: midi.KindRealtime, Status: midi.Continue})
	if r.m.Snapshot().Transport != model.TransportPlaying {
		t.Error("Continue not recorded")
	}
}

func TestStartStopClock(t *testing.T) {
	r := newRig(t, nil)
	if err := r.m.StartClock(); err != nil {
		t.Fatal(err)
	}
	r.gen.Advance(tick120us * 24)

	out := r.sent()
	if len(out) != 25 || out[0] != midi.Start {
		t.Fatalf("sent % X", out)
	}
	for _, b := range out[1:] {
		if b != midi.TimingClock {
			t.Fatalf("unexpected byte 0x%02X in clock stream", b)
		}
	}
	if r.m.Snapshot().LEDStatus != model.LEDOn {
		t.Errorf("LED = %v after one beat", r.m.Snapshot().LEDStatus)
	}

	r.m.publish()
	if s := r.m.Snapshot(); !s.GenRunning || s.GenSBPM != 12000 || s.LEDInterval != 500000 {
		t.Errorf("generator state: %+v", s)
	}

	r.m.StopClock()
	r.gen.Advance(tick120us * 10)
	if out := r.sent(); len(out) != 1 || out[0] != midi.Stop {
		t.Errorf("after stop sent % X", out)
	}
	if r.m.ClockRunning() || r.m.Snapshot().LEDStatus != model.LEDOff {
		t.Error("clock still marked running")
	}
}

func TestHintRetunesKeepingPhase(t *testing.T) {
	r := newRig(t, nil)
	r.m.StartClock()
	r.gen.Advance(10000)

	r.m.Hint().Set(90)
	r.m.applyHint()
	if r.m.TargetSBPM() != 9000 {
		t.Fatalf("target = %d", r.m.TargetSBPM())
	}
	if got := r.m.Generator().IntervalTicks(); got != 27777 {
		t.Fatalf("ticks = %d, want 27777", got)
	}
	r.gen.Advance(17777)
	if r.gen.Fired() != 1 {
		t.Errorf("fired %d, want 1 (phase kept)", r.gen.Fired())
	}

	// unchanged hint leaves the generator alone
	r.m.applyHint()
	r.gen.Advance(27777)
	if r.gen.Fired() != 2 {
		t.Errorf("fired %d, want 2", r.gen.Fired())
	}
}

func TestHintRestartsWithoutPeriodUpdate(t *testing.T) {
	r := newRig(t, nil, clock.SimNoUpdate())
	r.m.StartClock()
	r.gen.Advance(10000)

	r.m.Hint().Set(90)
	r.m.applyHint()
	if got := r.m.Generator().SBPM(); got != 9000 {
		t.Fatalf("generator at %d, want 9000", got)
	}
	// restart reset the phase
	r.gen.Advance(17777)
	if r.gen.Fired() != 0 {
		t.Errorf("fired %d, want 0", r.gen.Fired())
	}
	r.gen.Advance(10000)
	if r.gen.Fired() != 1 {
		t.Errorf("fired %d, want 1", r.gen.Fired())
	}
}

func TestHintIgnoredWhenDisconnected(t *testing.T) {
	r := newRig(t, nil)
	r.m.Hint().Set(90)
	r.m.Hint().SetConnected(false)
	r.m.applyHint()
	if r.m.TargetSBPM() != 12000 {
		t.Errorf("target = %d", r.m.TargetSBPM())
	}
	if r.m.Generator().Running() {
		t.Error("hint started the clock")
	}
}

func TestSetTempo(t *testing.T) {
	r := newRig(t, nil)
	tests := []struct {
		in, want uint16
	}{
		{9000, 9000},
		{100, MinSBPM},
		{60000, MaxSBPM},
	}
	for _, tt := range tests {
		r.m.SetTempo(tt.in)
		if got := r.m.TargetSBPM(); got != tt.want {
			t.Errorf("SetTempo(%d) -> %d, want %d", tt.in, got, tt.want)
		}
	}
	r.m.SetTempo(12000)
	r.m.NudgeTempo(-100)
	if r.m.TargetSBPM() != 11900 {
		t.Errorf("nudge -> %d", r.m.TargetSBPM())
	}

	r.m.StartClock()
	r.m.NudgeTempo(100)
	if got := r.m.Generator().SBPM(); got != 12000 {
		t.Errorf("running generator at %d after nudge", got)
	}
}

func TestSendTestPattern(t *testing.T) {
	r := newRig(t, nil)
	r.m.ccDelay, r.m.noteDelay = 0, 0

	if err := r.m.SendTestPattern(context.Background()); err != nil {
		t.Fatal(err)
	}
	out := r.sent()
	// running status throughout: one status byte per message group
	if len(out) != 33+13+13 {
		t.Errorf("sent %d bytes, want 59", len(out))
	}

	var got []midi.Message
	p := midi.NewParser(midi.MessageFunc(func(m midi.Message) { got = append(got, m) }))
	p.Write(out)
	if len(got) != 28 {
		t.Fatalf("parsed %d messages, want 28", len(got))
	}
	if got[0].Kind != midi.KindControlChange || got[0].Channel != 15 || got[15].Data2 != 15 {
		t.Errorf("cc sweep: %v .. %v", got[0], got[15])
	}
	if got[16].Kind != midi.KindNoteOn || got[16].Channel != 6 || got[16].Data1 != 60 {
		t.Errorf("note sweep starts with %v", got[16])
	}
	if got[27].Kind != midi.KindNoteOff || got[27].Data1 != 65 {
		t.Errorf("last message %v", got[27])
	}
}

func TestSendTestPatternCancelled(t *testing.T) {
	r := newRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.m.SendTestPattern(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestLineQueueOverflow(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Queue.LineDepth = 2
	r := newRig(t, cfg)
	for key := uint8(60); key < 63; key++ {
		r.m.onMessage(midi.Message{Kind: midi.KindNoteOn, Data1: key, Data2: 1})
	}
	if r.m.Lines().Dropped() != 1 || r.m.Lines().Len() != 2 {
		t.Errorf("dropped %d len %d", r.m.Lines().Dropped(), r.m.Lines().Len())
	}
	r.m.publish()
	if r.m.Snapshot().LineDropped != 1 {
		t.Errorf("model dropped = %d", r.m.Snapshot().LineDropped)
	}
}

func TestDeadTimersDisableClockOnly(t *testing.T) {
	a := midi.NewLoopTransport(16)
	dead := clock.NewSimTimer(testHz, clock.SimNotReady())
	m, err := NewManager(nil, a, dead, dead)
	if err != nil {
		t.Fatal(err)
	}
	if m.Measurement().Enabled() || m.Generator().Enabled() {
		t.Fatal("subsystems enabled on a dead timer")
	}
	if err := m.StartClock(); !errors.Is(err, clock.ErrNotReady) {
		t.Errorf("StartClock = %v", err)
	}
	m.onMessage(midi.Message{Kind: midi.KindRealtime, Status: midi.TimingClock})

	// MIDI still flows
	m.Encoder().NoteOn(0, 60, 1)
	if a.Pending() != 3 {
		t.Errorf("loopback holds %d bytes", a.Pending())
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PLL.K = 0
	if _, err := NewManager(cfg, midi.NewLoopTransport(1), nil, nil); err == nil {
		t.Error("bad config accepted")
	}
	if _, err := NewManager(nil, nil, nil, nil); err == nil {
		t.Error("nil transport accepted")
	}
}

func TestFollowDrivesGenerator(t *testing.T) {
	r := newRig(t, nil)
	if err := r.m.StartClock(); err != nil {
		t.Fatal(err)
	}
	r.gen.Advance(10000)

	// incoming clock at 100 BPM while the generator runs at 120
	r.pulse(2000, 25000)
	if !r.m.PLLLocked() {
		t.Fatalf("pll not locked, err %d", r.m.pll.FilteredError())
	}
	r.m.applyHint()

	gen := r.m.Generator()
	want := uint32(r.m.pll.IntervalTicks())
	if gen.IntervalTicks() != want {
		t.Fatalf("generator at %d ticks, want pll nominal %d", gen.IntervalTicks(), want)
	}
	if got := int(gen.SBPM()); got < 9975 || got > 10025 {
		t.Errorf("generator at %d sbpm, want about 10000", got)
	}
	if r.m.TargetSBPM() != gen.SBPM() {
		t.Errorf("target %d, generator %d", r.m.TargetSBPM(), gen.SBPM())
	}
	// period changed in place
	r.gen.Advance(want - 10000)
	if r.gen.Fired() != 1 {
		t.Errorf("fired %d, want 1 (phase kept)", r.gen.Fired())
	}

	r.m.publish()
	if s := r.m.Snapshot(); !s.Following || s.GenSBPM != gen.SBPM() {
		t.Errorf("published %+v", s)
	}
}

func TestFollowRestartsWithoutPeriodUpdate(t *testing.T) {
	r := newRig(t, nil, clock.SimNoUpdate())
	r.m.StartClock()
	r.gen.Advance(10000)

	r.pulse(2000, 25000)
	r.m.applyHint()
	want := uint32(r.m.pll.IntervalTicks())
	if got := r.m.Generator().IntervalTicks(); got != want {
		t.Fatalf("generator at %d ticks, want %d", got, want)
	}
	// restarted: a full new period before the first tick
	r.gen.Advance(want - 1)
	if r.gen.Fired() != 0 {
		t.Errorf("fired %d, want 0", r.gen.Fired())
	}
	r.gen.Advance(1)
	if r.gen.Fired() != 1 {
		t.Errorf("fired %d, want 1", r.gen.Fired())
	}
}

func TestFollowConvertsCounterRates(t *testing.T) {
	a, _ := midi.NewPipe(16)
	meas := clock.NewSimTimer(testHz)
	gen := clock.NewSimTimer(48_000_000)
	m, err := NewManager(nil, a, meas, gen)
	if err != nil {
		t.Fatal(err)
	}
	m.StartClock()
	for i := 0; i < 2000; i++ {
		meas.Advance(25000)
		m.onMessage(midi.Message{Kind: midi.KindRealtime, Status: midi.TimingClock})
	}
	m.applyHint()

	want := uint32(m.pll.IntervalTicks()) * 48
	if got := m.Generator().IntervalTicks(); got != want {
		t.Errorf("generator at %d ticks, want %d", got, want)
	}
}

func TestFollowOff(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Clock.FollowClock = false
	r := newRig(t, cfg)
	r.m.StartClock()

	r.pulse(2000, 25000)
	r.m.applyHint()
	if g := r.m.Generator(); g.SBPM() != 12000 || g.IntervalTicks() != tick120us {
		t.Fatalf("generator moved to %d (%d ticks) with follow off", g.SBPM(), g.IntervalTicks())
	}

	r.m.SetFollow(true)
	r.m.applyHint()
	if got := int(r.m.Generator().SBPM()); got < 9975 || got > 10025 {
		t.Errorf("generator at %d after enabling follow", got)
	}
}

func TestFollowWhileStoppedSetsTarget(t *testing.T) {
	r := newRig(t, nil)
	r.pulse(2000, 25000)
	r.m.applyHint()
	if r.m.Generator().Running() {
		t.Fatal("follow started the clock")
	}
	target := r.m.TargetSBPM()
	if target < 9975 || target > 10025 {
		t.Fatalf("target = %d", target)
	}
	r.m.StartClock()
	if got := r.m.Generator().SBPM(); got != target {
		t.Errorf("started at %d, want %d", got, target)
	}
}

func TestHintOverridesFollow(t *testing.T) {
	r := newRig(t, nil)
	r.m.StartClock()
	r.pulse(2000, 25000)

	r.m.Hint().Set(90)
	r.m.applyHint()
	if got := r.m.Generator().SBPM(); got != 9000 {
		t.Errorf("generator at %d, want the heart rate 9000", got)
	}

	r.m.Hint().SetConnected(false)
	r.m.applyHint()
	if got := int(r.m.Generator().SBPM()); got < 9975 || got > 10025 {
		t.Errorf("generator at %d after the heart rate went away", got)
	}
}

func TestStartResetsPLL(t *testing.T) {
	r := newRig(t, nil)
	r.pulse(2000, 25000)
	// one glitch leaves a filter error behind
	r.pulse(1, 30000)
	if r.m.pll.FilteredError() == 0 {
		t.Fatal("no filter error to clear")
	}
	before := r.m.pll.SBPM()

	r.m.onMessage(midi.Message{Kind: midi.KindRealtime, Status: midi.Start})
	p := r.m.pll
	if p.FilteredError() != 0 || p.InternalTicks() != p.IntervalTicks() {
		t.Errorf("filter kept: err %d internal %d nominal %d", p.FilteredError(), p.InternalTicks(), p.IntervalTicks())
	}
	if d := int(p.SBPM()) - int(before); d < -2 || d > 2 {
		t.Errorf("tempo estimate %d, was %d", p.SBPM(), before)
	}
	if r.m.PLLLocked() {
		t.Error("still locked after Start")
	}

	// no following until a new block was measured
	r.m.StartClock()
	r.pulse(10, 20000)
	r.m.applyHint()
	if r.m.Generator().SBPM() != r.m.TargetSBPM() || r.m.Generator().IntervalTicks() != tempo.SBPMToTicks(r.m.TargetSBPM(), testHz) {
		t.Errorf("generator followed an unlocked pll: %d", r.m.Generator().SBPM())
	}
}
