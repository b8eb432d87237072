package midi

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-midiclock/debug"
)

// PortKind says which backend a port belongs to.
type PortKind int

const (
	PortSerial PortKind = iota
	PortHost
)

func (k PortKind) String() string {
	if k == PortSerial {
		return "serial"
	}
	return "midi"
}

// PortEvent is emitted when a port appears or disappears
type PortEvent struct {
	Type PortEventType
	Kind PortKind
	Name string
}

type PortEventType int

const (
	PortAdded PortEventType = iota
	PortRemoved
)

// PortWatcher handles hot-plug detection of serial and host MIDI ports
type PortWatcher struct {
	ports    map[string]PortKind
	mu       sync.RWMutex
	events   chan PortEvent
	pollRate time.Duration

	// listers are swappable for tests
	listSerial func() ([]string, error)
	listHost   func() ([]string, error)
}

// NewPortWatcher creates a watcher polling once per second
func NewPortWatcher() *PortWatcher {
	return &PortWatcher{
		ports:      make(map[string]PortKind),
		events:     make(chan PortEvent, 16),
		pollRate:   time.Second,
		listSerial: SerialPorts,
		listHost:   hostPortNames,
	}
}

// Events returns a channel of port add/remove events
func (w *PortWatcher) Events() <-chan PortEvent {
	return w.events
}

// Ports returns a sorted snapshot of known ports
func (w *PortWatcher) Ports() []PortEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]PortEvent, 0, len(w.ports))
	for name, kind := range w.ports {
		out = append(out, PortEvent{Type: PortAdded, Kind: kind, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run starts the polling loop (blocking - run in goroutine)
func (w *PortWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()

	// Initial scan
	w.scan()

	for {
		select {
		case <-ctx.Done():
			close(w.events)
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *PortWatcher) scan() {
	seen := make(map[string]PortKind)

	if names, err := w.listSerial(); err == nil {
		for _, n := range names {
			seen[n] = PortSerial
		}
	} else {
		debug.LogEvery(30, "serial", "port scan: %v", err)
	}
	if names, err := w.listHost(); err == nil {
		for _, n := range names {
			seen[n] = PortHost
		}
	} else {
		// driver hung, keep the previous view
		debug.LogEvery(30, "rx", "host port scan: %v", err)
		w.mu.RLock()
		for n, k := range w.ports {
			if k == PortHost {
				seen[n] = k
			}
		}
		w.mu.RUnlock()
	}

	var evs []PortEvent
	w.mu.Lock()
	for n, k := range seen {
		if _, ok := w.ports[n]; !ok {
			w.ports[n] = k
			evs = append(evs, PortEvent{Type: PortAdded, Kind: k, Name: n})
		}
	}
	for n, k := range w.ports {
		if _, ok := seen[n]; !ok {
			delete(w.ports, n)
			evs = append(evs, PortEvent{Type: PortRemoved, Kind: k, Name: n})
		}
	}
	w.mu.Unlock()

	sort.Slice(evs, func(i, j int) bool { return evs[i].Name < evs[j].Name })
	for _, ev := range evs {
		select {
		case w.events <- ev:
		default:
		}
	}
}

func hostPortNames() ([]string, error) {
	ins, outs, err := ListPorts(3 * time.Second)
	if err != nil {
		return nil, err
	}
	uniq := make(map[string]bool)
	for _, p := range ins {
		uniq[p.String()] = true
	}
	for _, p := range outs {
		uniq[p.String()] = true
	}
	names := make([]string, 0, len(uniq))
	for n := range uniq {
		names = append(names, n)
	}
	return names, nil
}
