package model

import (
	"sync"
	"testing"
	"time"
)

func TestSetKeepsZeroFields(t *testing.T) {
	m := New()
	stamp := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return stamp }

	m.Set(Update{HRConnected: true, HRBPM: 72, MeasSBPM: 12000, PLLSBPM: 11990, LEDInterval: 500000})
	m.Set(Update{HRConnected: true, PLLSBPM: 12001})

	s := m.Get()
	if s.HRBPM != 72 || s.MeasSBPM != 12000 || s.LEDInterval != 500000 {
		t.Errorf("zero update overwrote fields: %+v", s)
	}
	if s.PLLSBPM != 12001 {
		t.Errorf("pll = %d, want 12001", s.PLLSBPM)
	}
	if !s.LastUpdate.Equal(stamp) {
		t.Errorf("last update = %v", s.LastUpdate)
	}

	// connection state is always taken
	m.Set(Update{})
	if s := m.Get(); s.HRConnected || s.HRBPM != 72 {
		t.Errorf("after empty update: %+v", s)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m := New()
	m.Set(Update{GenSBPM: 12000})
	s := m.Get()
	s.GenSBPM = 1
	if m.Get().GenSBPM != 12000 {
		t.Error("Get leaked internal state")
	}
}

func TestLED(t *testing.T) {
	m := New()
	if m.LED() != LEDUndefined {
		t.Fatalf("initial LED = %v", m.LED())
	}
	if m.ToggleLED() != LEDOn || m.ToggleLED() != LEDOff || m.ToggleLED() != LEDOn {
		t.Error("toggle sequence wrong")
	}
	m.SetLED(LEDOff)
	if m.LED() != LEDOff {
		t.Errorf("LED = %v", m.LED())
	}
	if LEDUndefined.String() != "-" || LEDOn.String() != "on" {
		t.Error("LED names")
	}
}

func TestTransport(t *testing.T) {
	m := New()
	m.SetTransport(TransportPlaying)
	if got := m.Get().Transport; got != TransportPlaying || got.String() != "playing" {
		t.Errorf("transport = %v", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(v uint16) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Set(Update{PLLSBPM: v})
				m.ToggleLED()
			}
		}(uint16(12000 + i))
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Get()
			}
		}()
	}
	wg.Wait()
	if got := m.Get().PLLSBPM; got < 12000 || got > 12003 {
		t.Errorf("pll = %d", got)
	}
}
