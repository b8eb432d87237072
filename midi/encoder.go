package midi

import (
	"io"
	"sync"
	"time"

	"go-midiclock/debug"
)

// Transmit running status defaults.
const (
	DefaultRepeatLimit = 16
	DefaultTimeout     = 300 * time.Millisecond
)

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithRepeatLimit forces a status byte after n messages sent without one.
func WithRepeatLimit(n int) EncoderOption {
	return func(e *Encoder) {
		if n > 0 {
			e.repeatLimit = n
		}
	}
}

// WithTimeout forces a status byte once the last one sent is older than d.
func WithTimeout(d time.Duration) EncoderOption {
	return func(e *Encoder) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRunningStatus switches transmit running status on or off. Some gear
// does not implement it on receive.
func WithRunningStatus(on bool) EncoderOption {
	return func(e *Encoder) {
		e.runningStatus = on
	}
}

// WithNow replaces the clock used for the status timeout.
func WithNow(now func() time.Time) EncoderOption {
	return func(e *Encoder) {
		if now != nil {
			e.now = now
		}
	}
}

// Encoder writes MIDI1.0 messages as bytes, omitting repeated status bytes.
//
// Channel messages are serialized by a mutex. Realtime bytes skip it and may
// land between the bytes of a channel message, which MIDI1.0 allows; w must
// therefore accept concurrent WriteByte calls if realtime is sent from
// another goroutine.
//
// Out-of-range values are dropped without writing anything.
type Encoder struct {
	w io.ByteWriter

	repeatLimit   int
	timeout       time.Duration
	runningStatus bool
	now           func() time.Time

	mu         sync.Mutex
	lastStatus uint8 // 0 = none
	sinceCount int
	lastTime   time.Time
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.ByteWriter, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		w:             w,
		repeatLimit:   DefaultRepeatLimit,
		timeout:       DefaultTimeout,
		runningStatus: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunningStatus returns the status byte the receiver is assumed to hold.
func (e *Encoder) RunningStatus() uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastStatus
}

// needStatus must be called with mu held.
func (e *Encoder) needStatus(status uint8, now time.Time) bool {
	return !e.runningStatus ||
		now.Sub(e.lastTime) > e.timeout ||
		status != e.lastStatus ||
		e.sinceCount >= e.repeatLimit
}

func (e *Encoder) put(b byte) bool {
	if err := e.w.WriteByte(b); err != nil {
		debug.LogEvery(100, "tx", "write 0x%02X: %v", b, err)
		return false
	}
	return true
}

// channel writes one channel message. data holds 1 or 2 data bytes.
func (e *Encoder) channel(status uint8, data ...uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	ok := true
	if e.needStatus(status, now) {
		ok = e.put(status)
		e.lastStatus = status
		e.sinceCount = 0
		e.lastTime = now
	}
	for _, d := range data {
		ok = e.put(d) && ok
	}
	e.sinceCount++

	if !ok {
		// the receiver may have lost sync, send status next time
		e.lastStatus = 0
	}
}

func (e *Encoder) clearRunningStatus() {
	e.mu.Lock()
	e.lastStatus = 0
	e.sinceCount = 0
	e.mu.Unlock()
}

func (e *Encoder) NoteOn(ch, key, velocity uint8) {
	if key > MaxData || velocity > MaxData {
		return
	}
	e.channel(NoteOn|ch&ChannelMask, key, velocity)
}

func (e *Encoder) NoteOff(ch, key, velocity uint8) {
	if key > MaxData || velocity > MaxData {
		return
	}
	e.channel(NoteOff|ch&ChannelMask, key, velocity)
}

func (e *Encoder) ControlChange(ch, controller, value uint8) {
	if controller > MaxData || value > MaxData {
		return
	}
	e.channel(ControlChange|ch&ChannelMask, controller, value)
}

func (e *Encoder) ProgramChange(ch, program uint8) {
	if program > MaxData {
		return
	}
	e.channel(ProgramChange|ch&ChannelMask, program)
}

func (e *Encoder) ChannelAftertouch(ch, pressure uint8) {
	if pressure > MaxData {
		return
	}
	e.channel(ChannelAftertouch|ch&ChannelMask, pressure)
}

func (e *Encoder) PolyAftertouch(ch, key, pressure uint8) {
	if key > MaxData || pressure > MaxData {
		return
	}
	e.channel(PolyAftertouch|ch&ChannelMask, key, pressure)
}

// PitchWheel sends a 14-bit bend, LSB first. 8192 is center.
func (e *Encoder) PitchWheel(ch uint8, value uint16) {
	if value > Max14Bit {
		return
	}
	e.channel(PitchWheel|ch&ChannelMask, uint8(value)&DataMask, uint8(value>>7)&DataMask)
}

// ModWheel sends a 14-bit modulation value as two control changes, MSB
// controller first.
func (e *Encoder) ModWheel(ch uint8, value uint16) {
	if value > Max14Bit {
		return
	}
	e.ControlChange(ch, CtlModWheelMSB, uint8(value>>7)&DataMask)
	e.ControlChange(ch, CtlModWheelLSB, uint8(value)&DataMask)
}

// Realtime writes a single realtime byte. Non-realtime bytes are dropped.
func (e *Encoder) Realtime(status uint8) {
	if !IsRealtime(status) {
		return
	}
	e.put(status)
}

func (e *Encoder) TimingClock()   { e.put(TimingClock) }
func (e *Encoder) Start()         { e.put(Start) }
func (e *Encoder) Continue()      { e.put(Continue) }
func (e *Encoder) Stop()          { e.put(Stop) }
func (e *Encoder) ActiveSensing() { e.put(ActiveSensing) }
func (e *Encoder) Reset()         { e.put(Reset) }

// SysExStart opens a system exclusive message. Receivers drop running
// status on 0xF0, so the next channel message carries its status again.
func (e *Encoder) SysExStart() {
	e.clearRunningStatus()
	e.put(SysExStart)
}

// SysExByte writes one sysex data byte. Bytes with bit 7 set are dropped.
func (e *Encoder) SysExByte(b uint8) {
	if b > MaxData {
		return
	}
	e.put(b)
}

// SysExData is SysExByte; it lets an Encoder act as a Handler so a Parser
// can feed it directly (software MIDI thru).
func (e *Encoder) SysExData(b uint8) { e.SysExByte(b) }

// SysExBulk writes data bytes, skipping any with bit 7 set.
func (e *Encoder) SysExBulk(data []byte) {
	for _, b := range data {
		e.SysExByte(b)
	}
}

func (e *Encoder) SysExStop() {
	e.clearRunningStatus()
	e.put(SysExEnd)
}

// Send encodes m. Unknown kinds are ignored.
func (e *Encoder) Send(m Message) {
	switch m.Kind {
	case KindNoteOn:
		e.NoteOn(m.Channel, m.Data1, m.Data2)
	case KindNoteOff:
		e.NoteOff(m.Channel, m.Data1, m.Data2)
	case KindControlChange:
		e.ControlChange(m.Channel, m.Data1, m.Data2)
	case KindProgramChange:
		e.ProgramChange(m.Channel, m.Data1)
	case KindChannelAftertouch:
		e.ChannelAftertouch(m.Channel, m.Data1)
	case KindPolyAftertouch:
		e.PolyAftertouch(m.Channel, m.Data1, m.Data2)
	case KindPitchBend:
		e.PitchWheel(m.Channel, m.PitchBendValue())
	case KindRealtime:
		e.Realtime(m.Status)
	case KindSysExStart:
		e.SysExStart()
	case KindSysExData:
		e.SysExByte(m.Data1)
	case KindSysExStop:
		e.SysExStop()
	}
}
