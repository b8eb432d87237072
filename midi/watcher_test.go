package midi

import (
	"errors"
	"testing"
)

func drain(w *PortWatcher) []PortEvent {
	var evs []PortEvent
	for {
		select {
		case ev := <-w.events:
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func TestPortWatcherScan(t *testing.T) {
	serialPorts := []string{"/dev/ttyUSB0"}
	hostPorts := []string{"USB MIDI 1"}
	var hostErr error

	w := NewPortWatcher()
	w.listSerial = func() ([]string, error) { return serialPorts, nil }
	w.listHost = func() ([]string, error) { return hostPorts, hostErr }

	w.scan()
	evs := drain(w)
	if len(evs) != 2 {
		t.Fatalf("first scan events = %v", evs)
	}
	if evs[0].Name != "/dev/ttyUSB0" || evs[0].Kind != PortSerial || evs[0].Type != PortAdded {
		t.Errorf("event 0 = %+v", evs[0])
	}

	serialPorts = nil
	w.scan()
	evs = drain(w)
	if len(evs) != 1 || evs[0].Type != PortRemoved || evs[0].Name != "/dev/ttyUSB0" {
		t.Errorf("unplug events = %+v", evs)
	}

	// a hung host driver must not look like every port went away
	hostErr = errors.New("timeout")
	hostPorts = nil
	w.scan()
	if evs := drain(w); len(evs) != 0 {
		t.Errorf("events during driver hang = %+v", evs)
	}
	if ports := w.Ports(); len(ports) != 1 || ports[0].Name != "USB MIDI 1" {
		t.Errorf("ports = %+v", ports)
	}
}
