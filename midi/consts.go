package midi

// Status byte masks
const (
	StatusBit    uint8 = 0x80 // bit 7 set on every status byte
	DataMask     uint8 = 0x7F
	CommandMask  uint8 = 0xF0
	ChannelMask  uint8 = 0x0F
	RealtimeMask uint8 = 0xF8 // bytes >= 0xF8 are realtime
)

// Channel voice commands (upper nibble)
const (
	NoteOff           uint8 = 0x80
	NoteOn            uint8 = 0x90
	PolyAftertouch    uint8 = 0xA0
	ControlChange     uint8 = 0xB0
	ProgramChange     uint8 = 0xC0
	ChannelAftertouch uint8 = 0xD0
	PitchWheel        uint8 = 0xE0
)

// System common
const (
	SysExStart       uint8 = 0xF0
	TimeCodeQuarter  uint8 = 0xF1
	SongPosition     uint8 = 0xF2
	SongSelect       uint8 = 0xF3
	TuneRequest      uint8 = 0xF6
	SysExEnd         uint8 = 0xF7
	systemCommonBase uint8 = 0xF0
)

// System realtime
const (
	TimingClock   uint8 = 0xF8
	Start         uint8 = 0xFA
	Continue      uint8 = 0xFB
	Stop          uint8 = 0xFC
	ActiveSensing uint8 = 0xFE
	Reset         uint8 = 0xFF
)

// Controller numbers used by the encoder and the monitor.
const (
	CtlModWheelMSB    uint8 = 0x01
	CtlMainVolumeMSB  uint8 = 0x07
	CtlModWheelLSB    uint8 = 0x21
	CtlSustain        uint8 = 0x40
	CtlAllSoundsOff   uint8 = 0x78
	CtlResetAll       uint8 = 0x79
	CtlLocalControl   uint8 = 0x7A
	CtlAllNotesOff    uint8 = 0x7B
	CtlOmniOff        uint8 = 0x7C
	CtlOmniOn         uint8 = 0x7D
	CtlMonoOn         uint8 = 0x7E
	CtlPolyOn         uint8 = 0x7F
	channelModeFirst  uint8 = 0x78
)

// 14-bit values
const (
	PitchWheelCenter uint16 = 8192
	Max14Bit         uint16 = 16383
	MaxData          uint8  = 127
	MaxChannel       uint8  = 15
)

// IsRealtime reports whether b is a system realtime byte.
func IsRealtime(b byte) bool { return b >= RealtimeMask }

// IsStatus reports whether b has the status bit set.
func IsStatus(b byte) bool { return b&StatusBit != 0 }

// IsChannelMode reports whether a control change number is a channel mode
// message (120-127).
func IsChannelMode(controller uint8) bool {
	return controller >= channelModeFirst && controller <= CtlPolyOn
}
