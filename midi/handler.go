package midi

// Handler receives parsed messages. Callbacks run on the parser goroutine and
// the parser stalls until each returns, so they must not block.
type Handler interface {
	NoteOn(ch, key, velocity uint8)
	NoteOff(ch, key, velocity uint8)
	ControlChange(ch, controller, value uint8)
	ProgramChange(ch, program uint8)
	ChannelAftertouch(ch, pressure uint8)
	PolyAftertouch(ch, key, pressure uint8)
	PitchWheel(ch uint8, value uint16)
	Realtime(status uint8)
	SysExStart()
	SysExData(b uint8)
	SysExStop()
}

// NopHandler ignores everything. Embed it to implement only the callbacks
// you care about.
type NopHandler struct{}

func (NopHandler) NoteOn(ch, key, velocity uint8)            {}
func (NopHandler) NoteOff(ch, key, velocity uint8)           {}
func (NopHandler) ControlChange(ch, controller, value uint8) {}
func (NopHandler) ProgramChange(ch, program uint8)           {}
func (NopHandler) ChannelAftertouch(ch, pressure uint8)      {}
func (NopHandler) PolyAftertouch(ch, key, pressure uint8)    {}
func (NopHandler) PitchWheel(ch uint8, value uint16)         {}
func (NopHandler) Realtime(status uint8)                     {}
func (NopHandler) SysExStart()                               {}
func (NopHandler) SysExData(b uint8)                         {}
func (NopHandler) SysExStop()                                {}

// MessageFunc adapts a single function to Handler, delivering every event
// as a Message value.
type MessageFunc func(Message)

func (f MessageFunc) NoteOn(ch, key, velocity uint8) {
	f(Message{Kind: KindNoteOn, Channel: ch, Data1: key, Data2: velocity})
}

func (f MessageFunc) NoteOff(ch, key, velocity uint8) {
	f(Message{Kind: KindNoteOff, Channel: ch, Data1: key, Data2: velocity})
}

func (f MessageFunc) ControlChange(ch, controller, value uint8) {
	f(Message{Kind: KindControlChange, Channel: ch, Data1: controller, Data2: value})
}

func (f MessageFunc) ProgramChange(ch, program uint8) {
	f(Message{Kind: KindProgramChange, Channel: ch, Data1: program})
}

func (f MessageFunc) ChannelAftertouch(ch, pressure uint8) {
	f(Message{Kind: KindChannelAftertouch, Channel: ch, Data1: pressure})
}

func (f MessageFunc) PolyAftertouch(ch, key, pressure uint8) {
	f(Message{Kind: KindPolyAftertouch, Channel: ch, Data1: key, Data2: pressure})
}

func (f MessageFunc) PitchWheel(ch uint8, value uint16) {
	f(Message{Kind: KindPitchBend, Channel: ch, Data1: uint8(value) & DataMask, Data2: uint8(value>>7) & DataMask})
}

func (f MessageFunc) Realtime(status uint8) {
	f(Message{Kind: KindRealtime, Status: status})
}

func (f MessageFunc) SysExStart()       { f(Message{Kind: KindSysExStart}) }
func (f MessageFunc) SysExData(b uint8) { f(Message{Kind: KindSysExData, Data1: b}) }
func (f MessageFunc) SysExStop()        { f(Message{Kind: KindSysExStop}) }

// Dispatch calls the Handler method matching m.
func Dispatch(h Handler, m Message) {
	switch m.Kind {
	case KindNoteOn:
		h.NoteOn(m.Channel, m.Data1, m.Data2)
	case KindNoteOff:
		h.NoteOff(m.Channel, m.Data1, m.Data2)
	case KindControlChange:
		h.ControlChange(m.Channel, m.Data1, m.Data2)
	case KindProgramChange:
		h.ProgramChange(m.Channel, m.Data1)
	case KindChannelAftertouch:
		h.ChannelAftertouch(m.Channel, m.Data1)
	case KindPolyAftertouch:
		h.PolyAftertouch(m.Channel, m.Data1, m.Data2)
	case KindPitchBend:
		h.PitchWheel(m.Channel, m.PitchBendValue())
	case KindRealtime:
		h.Realtime(m.Status)
	case KindSysExStart:
		h.SysExStart()
	case KindSysExData:
		h.SysExData(m.Data1)
	case KindSysExStop:
		h.SysExStop()
	}
}
