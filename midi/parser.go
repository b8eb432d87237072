package midi

// ParserState is the receive state machine position.
type ParserState int

const (
	AwaitingStatus ParserState = iota
	AwaitingData1
	AwaitingData2
	InSysex
)

func (s ParserState) String() string {
	switch s {
	case AwaitingStatus:
		return "AwaitingStatus"
	case AwaitingData1:
		return "AwaitingData1"
	case AwaitingData2:
		return "AwaitingData2"
	case InSysex:
		return "InSysex"
	}
	return "Unknown"
}

// Parser turns a MIDI1.0 byte stream into Handler calls. Running status is
// always honoured on receive. One Parser per transport, fed from a single
// goroutine.
type Parser struct {
	h Handler

	running       uint8 // 0 = none
	awaitingData2 bool
	pending       uint8 // status the second data byte completes, 0 = swallow
	data1         uint8
	inSysex       bool

	lastCommon     uint8
	lastCommonData uint8
}

// NewParser creates a parser dispatching to h. A nil h discards everything.
func NewParser(h Handler) *Parser {
	if h == nil {
		h = NopHandler{}
	}
	return &Parser{h: h}
}

// Reset drops running status and any partial message or sysex.
func (p *Parser) Reset() {
	p.running = 0
	p.awaitingData2 = false
	p.pending = 0
	p.data1 = 0
	p.inSysex = false
}

// State reports where the parser is in the stream.
func (p *Parser) State() ParserState {
	switch {
	case p.inSysex:
		return InSysex
	case p.awaitingData2:
		return AwaitingData2
	case p.running != 0:
		return AwaitingData1
	}
	return AwaitingStatus
}

// RunningStatus returns the current receive running status, 0 if none.
func (p *Parser) RunningStatus() uint8 { return p.running }

// LastSystemCommon returns the last system common status seen (tune
// request, song select...) and its first data byte. These are recorded only.
func (p *Parser) LastSystemCommon() (status, data uint8) {
	return p.lastCommon, p.lastCommonData
}

// Write feeds a buffer, byte by byte. It never fails.
func (p *Parser) Write(buf []byte) (int, error) {
	for _, b := range buf {
		p.Feed(b)
	}
	return len(buf), nil
}

// Feed processes one received byte.
func (p *Parser) Feed(b byte) {
	if IsStatus(b) {
		p.status(b)
		return
	}
	p.data(b)
}

func (p *Parser) status(b byte) {
	// realtime may interleave anywhere, even inside a message
	if IsRealtime(b) {
		p.h.Realtime(b)
		return
	}

	// any other status aborts an open sysex and a half-received message
	p.inSysex = false
	p.awaitingData2 = false
	p.pending = 0

	switch b {
	case SysExStart:
		p.running = 0
		p.inSysex = true
		p.h.SysExStart()
	case SysExEnd:
		p.running = 0
		p.h.SysExStop()
	case TuneRequest:
		p.running = 0
		p.lastCommon = b
		p.lastCommonData = 0
	default:
		p.running = b
	}
}

func (p *Parser) data(b byte) {
	if p.inSysex {
		p.h.SysExData(b)
		return
	}

	if p.awaitingData2 {
		p.awaitingData2 = false
		p.complete(p.pending, p.data1, b)
		return
	}

	if p.running == 0 {
		return
	}

	switch cmd := p.running & CommandMask; cmd {
	case NoteOff, NoteOn, PolyAftertouch, ControlChange, PitchWheel:
		p.data1 = b
		p.pending = p.running
		p.awaitingData2 = true
	case ProgramChange:
		p.h.ProgramChange(p.running&ChannelMask, b)
	case ChannelAftertouch:
		p.h.ChannelAftertouch(p.running&ChannelMask, b)
	default:
		p.systemCommon(b)
	}
}

// systemCommon handles a data byte following a 0xF1-0xF5 status. None of
// these are dispatched and each one ends running status.
func (p *Parser) systemCommon(b byte) {
	status := p.running
	p.running = 0

	switch status {
	case SongPosition:
		// two data bytes, swallow the second
		p.lastCommon = status
		p.lastCommonData = b
		p.data1 = b
		p.pending = 0
		p.awaitingData2 = true
	case SongSelect:
		p.lastCommon = status
		p.lastCommonData = b
	}
	// 0xF1 quarter frame and undefined 0xF4/0xF5 are dropped
}

func (p *Parser) complete(status, d1, d2 uint8) {
	ch := status & ChannelMask
	switch status & CommandMask {
	case NoteOn:
		if d2 == 0 {
			p.h.NoteOff(ch, d1, d2)
			return
		}
		p.h.NoteOn(ch, d1, d2)
	case NoteOff:
		p.h.NoteOff(ch, d1, d2)
	case PolyAftertouch:
		p.h.PolyAftertouch(ch, d1, d2)
	case ControlChange:
		p.h.ControlChange(ch, d1, d2)
	case PitchWheel:
		p.h.PitchWheel(ch, uint16(d2)<<7|uint16(d1))
	}
}
