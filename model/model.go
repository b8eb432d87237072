// Package model holds the display state shared between the engine and the UI.
package model

import (
	"sync"
	"time"
)

// LEDStatus of the beat LED.
type LEDStatus int

const (
	LEDUndefined LEDStatus = iota
	LEDOn
	LEDOff
)

func (s LEDStatus) String() string {
	switch s {
	case LEDOn:
		return "on"
	case LEDOff:
		return "off"
	default:
		return "-"
	}
}

// TransportState follows incoming Start/Continue/Stop.
type TransportState int

const (
	TransportStopped TransportState = iota
	TransportPlaying
)

func (t TransportState) String() string {
	if t == TransportPlaying {
		return "playing"
	}
	return "stopped"
}

// State is a copy of everything the monitor shows.
type State struct {
	HRConnected bool
	HRBPM       uint16
	MeasSBPM    uint16
	PLLSBPM     uint16
	GenSBPM     uint16
	GenRunning  bool
	Following   bool
	LEDInterval uint32 // µs per beat
	LEDStatus   LEDStatus
	Transport   TransportState
	RxDropped   uint64
	LineDropped uint64
	LastUpdate  time.Time
}

// Update carries new values for Set. Zero values leave the model unchanged,
// except the flags HRConnected, GenRunning and Following which are always
// taken.
type Update struct {
	HRConnected bool
	HRBPM       uint16
	MeasSBPM    uint16
	PLLSBPM     uint16
	GenSBPM     uint16
	GenRunning  bool
	Following   bool
	LEDInterval uint32
	RxDropped   uint64
	LineDropped uint64
}

// Model is safe for concurrent use.
type Model struct {
	mu  sync.Mutex
	s   State
	now func() time.Time
}

// New returns an empty model.
func New() *Model {
	return &Model{now: time.Now}
}

// Set merges u into the model and stamps LastUpdate.
func (m *Model) Set(u Update) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.s.HRConnected = u.HRConnected
	m.s.GenRunning = u.GenRunning
	m.s.Following = u.Following
	if u.HRBPM != 0 {
		m.s.HRBPM = u.HRBPM
	}
	if u.MeasSBPM != 0 {
		m.s.MeasSBPM = u.MeasSBPM
	}
	if u.PLLSBPM != 0 {
		m.s.PLLSBPM = u.PLLSBPM
	}
	if u.GenSBPM != 0 {
		m.s.GenSBPM = u.GenSBPM
	}
	if u.LEDInterval != 0 {
		m.s.LEDInterval = u.LEDInterval
	}
	if u.RxDropped != 0 {
		m.s.RxDropped = u.RxDropped
	}
	if u.LineDropped != 0 {
		m.s.LineDropped = u.LineDropped
	}
	m.s.LastUpdate = m.now()
}

// Get returns a copy of the current state.
func (m *Model) Get() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}

func (m *Model) SetLED(s LEDStatus) {
	m.mu.Lock()
	m.s.LEDStatus = s
	m.mu.Unlock()
}

func (m *Model) LED() LEDStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.LEDStatus
}

// ToggleLED flips the LED (Undefined turns On) and returns the new status.
func (m *Model) ToggleLED() LEDStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s.LEDStatus == LEDOn {
		m.s.LEDStatus = LEDOff
	} else {
		m.s.LEDStatus = LEDOn
	}
	return m.s.LEDStatus
}

func (m *Model) SetTransport(t TransportState) {
	m.mu.Lock()
	m.s.Transport = t
	m.mu.Unlock()
}
