package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Kind identifies a parsed or outgoing MIDI1.0 message
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNoteOn
	KindNoteOff
	KindControlChange
	KindProgramChange
	KindPitchBend
	KindChannelAftertouch
	KindPolyAftertouch
	KindRealtime
	KindSysExStart
	KindSysExData
	KindSysExStop
)

var kindNames = [...]string{
	KindUnknown:           "Unknown",
	KindNoteOn:            "NoteOn",
	KindNoteOff:           "NoteOff",
	KindControlChange:     "ControlChange",
	KindProgramChange:     "ProgramChange",
	KindPitchBend:         "PitchBend",
	KindChannelAftertouch: "ChannelAftertouch",
	KindPolyAftertouch:    "PolyAftertouch",
	KindRealtime:          "Realtime",
	KindSysExStart:        "SysExStart",
	KindSysExData:         "SysExData",
	KindSysExStop:         "SysExStop",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Message is one MIDI1.0 event. Values are always in range: the constructors
// refuse anything else.
//
// Data1/Data2 hold key+velocity, controller+value, program, pressure, or the
// LSB+MSB of a pitch bend. Status holds the realtime byte for KindRealtime
// and Data1 the byte for KindSysExData.
type Message struct {
	Kind    Kind
	Channel uint8
	Data1   uint8
	Data2   uint8
	Status  uint8
}

func validChannel(ch uint8) bool  { return ch <= MaxChannel }
func validData(vals ...uint8) bool {
	for _, v := range vals {
		if v > MaxData {
			return false
		}
	}
	return true
}

func channelMsg(k Kind, ch, d1, d2 uint8) (Message, bool) {
	if !validChannel(ch) || !validData(d1, d2) {
		return Message{}, false
	}
	return Message{Kind: k, Channel: ch, Data1: d1, Data2: d2}, true
}

// NewNoteOn builds a note on. ok is false for out-of-range values.
func NewNoteOn(ch, key, velocity uint8) (Message, bool) {
	return channelMsg(KindNoteOn, ch, key, velocity)
}

func NewNoteOff(ch, key, velocity uint8) (Message, bool) {
	return channelMsg(KindNoteOff, ch, key, velocity)
}

func NewControlChange(ch, controller, value uint8) (Message, bool) {
	return channelMsg(KindControlChange, ch, controller, value)
}

func NewProgramChange(ch, program uint8) (Message, bool) {
	return channelMsg(KindProgramChange, ch, program, 0)
}

func NewChannelAftertouch(ch, pressure uint8) (Message, bool) {
	return channelMsg(KindChannelAftertouch, ch, pressure, 0)
}

func NewPolyAftertouch(ch, key, pressure uint8) (Message, bool) {
	return channelMsg(KindPolyAftertouch, ch, key, pressure)
}

// NewPitchBend splits a 14-bit value (0-16383, center 8192) into LSB/MSB.
func NewPitchBend(ch uint8, value uint16) (Message, bool) {
	if value > Max14Bit {
		return Message{}, false
	}
	return channelMsg(KindPitchBend, ch, uint8(value)&DataMask, uint8(value>>7)&DataMask)
}

// NewRealtime wraps a realtime byte (0xF8-0xFF).
func NewRealtime(status uint8) (Message, bool) {
	if !IsRealtime(status) {
		return Message{}, false
	}
	return Message{Kind: KindRealtime, Status: status}, true
}

func NewSysExData(b uint8) (Message, bool) {
	if b > MaxData {
		return Message{}, false
	}
	return Message{Kind: KindSysExData, Data1: b}, true
}

// PitchBendValue returns the 14-bit pitch bend value.
func (m Message) PitchBendValue() uint16 {
	return uint16(m.Data2)<<7 | uint16(m.Data1)
}

// PitchBendSigned returns the pitch bend relative to center (-8192..8191).
func (m Message) PitchBendSigned() int16 {
	return int16(m.PitchBendValue()) - int16(PitchWheelCenter)
}

// StatusByte returns the status byte this message is sent with.
func (m Message) StatusByte() uint8 {
	switch m.Kind {
	case KindNoteOn:
		return NoteOn | m.Channel
	case KindNoteOff:
		return NoteOff | m.Channel
	case KindControlChange:
		return ControlChange | m.Channel
	case KindProgramChange:
		return ProgramChange | m.Channel
	case KindPitchBend:
		return PitchWheel | m.Channel
	case KindChannelAftertouch:
		return ChannelAftertouch | m.Channel
	case KindPolyAftertouch:
		return PolyAftertouch | m.Channel
	case KindRealtime:
		return m.Status
	case KindSysExStart:
		return SysExStart
	case KindSysExStop:
		return SysExEnd
	}
	return 0
}

// Raw converts the message to its gomidi representation (complete bytes,
// status included).
func (m Message) Raw() gomidi.Message {
	switch m.Kind {
	case KindNoteOn:
		return gomidi.NoteOn(m.Channel, m.Data1, m.Data2)
	case KindNoteOff:
		return gomidi.NoteOffVelocity(m.Channel, m.Data1, m.Data2)
	case KindControlChange:
		return gomidi.ControlChange(m.Channel, m.Data1, m.Data2)
	case KindProgramChange:
		return gomidi.ProgramChange(m.Channel, m.Data1)
	case KindPitchBend:
		return gomidi.Pitchbend(m.Channel, m.PitchBendSigned())
	case KindChannelAftertouch:
		return gomidi.AfterTouch(m.Channel, m.Data1)
	case KindPolyAftertouch:
		return gomidi.PolyAfterTouch(m.Channel, m.Data1, m.Data2)
	case KindRealtime, KindSysExStart, KindSysExStop:
		return gomidi.Message([]byte{m.StatusByte()})
	case KindSysExData:
		return gomidi.Message([]byte{m.Data1})
	}
	return nil
}

func (m Message) String() string {
	switch m.Kind {
	case KindSysExStart, KindSysExStop:
		return m.Kind.String()
	case KindSysExData:
		return fmt.Sprintf("SysExData 0x%02X", m.Data1)
	case KindUnknown:
		return "Unknown"
	}
	return m.Raw().String()
}
