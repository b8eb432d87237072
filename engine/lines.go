package engine

import (
	"fmt"

	"go-midiclock/midi"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName renders a key as pitch class and octave, middle C (60) being C4.
func NoteName(key uint8) string {
	return fmt.Sprintf("%s%d", noteNames[key%12], int(key/12)-1)
}

// FormatLine turns a received channel message into a monitor line. Channels
// are shown 1-based. Realtime and sysex messages have no line.
func FormatLine(m midi.Message) (string, bool) {
	ch := int(m.Channel) + 1
	switch m.Kind {
	case midi.KindNoteOn:
		return fmt.Sprintf("CH: %d -> Note   on: %s %03d %03d", ch, NoteName(m.Data1), m.Data1, m.Data2), true
	case midi.KindNoteOff:
		return fmt.Sprintf("CH: %d -> Note  off: %s %03d %03d", ch, NoteName(m.Data1), m.Data1, m.Data2), true
	case midi.KindControlChange:
		return fmt.Sprintf("CH: %d -> CC: %d value: %d", ch, m.Data1, m.Data2), true
	case midi.KindPitchBend:
		return fmt.Sprintf("CH: %d -> Pitchwheel: %d", ch, m.PitchBendSigned()), true
	case midi.KindProgramChange:
		return fmt.Sprintf("CH: %d -> Program: %d", ch, m.Data1), true
	case midi.KindChannelAftertouch:
		return fmt.Sprintf("CH: %d -> Aftertouch: %d", ch, m.Data1), true
	case midi.KindPolyAftertouch:
		return fmt.Sprintf("CH: %d -> Poly AT: %s %03d %03d", ch, NoteName(m.Data1), m.Data1, m.Data2), true
	}
	return "", false
}

// SysExLine summarizes a completed sysex message of n data bytes.
func SysExLine(n int) string {
	return fmt.Sprintf("SysEx: %d bytes", n)
}
