package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-midiclock/debug"
)

// PortTransport bridges a host MIDI port (USB interface, virtual port) to
// the byte stream interface. Incoming messages are flattened to bytes;
// outgoing bytes are reassembled into messages before they reach the driver.
type PortTransport struct {
	name string
	in   drivers.In
	out  drivers.Out

	rx   *ByteQueue
	stop func()

	wmu  sync.Mutex
	wp   *Parser
	sink *portSink

	done      chan struct{}
	closeOnce sync.Once
}

// portSink turns parsed messages back into driver sends.
type portSink struct {
	send  func(gomidi.Message) error
	sysex []byte
	err   error
}

func (s *portSink) deliver(m Message) {
	switch m.Kind {
	case KindSysExStart:
		s.sysex = s.sysex[:0]
	case KindSysExData:
		s.sysex = append(s.sysex, m.Data1)
	case KindSysExStop:
		s.err = s.send(gomidi.SysEx(s.sysex))
		s.sysex = s.sysex[:0]
	default:
		s.err = s.send(m.Raw())
	}
}

// OpenPort opens the host MIDI ports whose names contain name. Either side
// may be missing; at least one must exist.
func OpenPort(name string, depth int) (*PortTransport, error) {
	ins, outs, err := ListPorts(3 * time.Second)
	if err != nil {
		return nil, err
	}
	var in drivers.In
	var out drivers.Out
	want := strings.ToLower(name)
	for _, p := range ins {
		if strings.Contains(strings.ToLower(p.String()), want) {
			in = p
			break
		}
	}
	for _, p := range outs {
		if strings.Contains(strings.ToLower(p.String()), want) {
			out = p
			break
		}
	}
	if in == nil && out == nil {
		return nil, errors.Wrapf(ErrPortNotFound, "%q", name)
	}
	return NewPortTransport(name, in, out, depth)
}

// NewPortTransport wraps already discovered ports.
func NewPortTransport(name string, in drivers.In, out drivers.Out, depth int) (*PortTransport, error) {
	t := &PortTransport{
		name: name,
		in:   in,
		out:  out,
		rx:   NewQueue[byte](depth),
		done: make(chan struct{}),
	}

	if out != nil {
		send, err := gomidi.SendTo(out)
		if err != nil {
			return nil, errors.Wrapf(err, "open output %s", out)
		}
		t.sink = &portSink{send: send}
		t.wp = NewParser(MessageFunc(t.sink.deliver))
	}

	if in != nil {
		stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
			for _, b := range msg.Bytes() {
				if !t.rx.TryPush(b) {
					debug.LogEvery(64, "rx", "%s rx queue full", t.name)
				}
			}
		}, gomidi.UseSysEx())
		if err != nil {
			return nil, errors.Wrapf(err, "open input %s", in)
		}
		t.stop = stop
	}

	debug.Log("rx", "opened port %s (in=%v out=%v)", name, in != nil, out != nil)
	return t, nil
}

func (t *PortTransport) Name() string { return t.name }

// WriteByte feeds the output parser; a message is sent once complete.
func (t *PortTransport) WriteByte(b byte) error {
	if t.wp == nil {
		return errors.Errorf("port %s has no output", t.name)
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	t.sink.err = nil
	t.wp.Feed(b)
	if t.sink.err != nil {
		return errors.Wrap(t.sink.err, "port send")
	}
	return nil
}

func (t *PortTransport) Receive(ctx context.Context) (byte, error) {
	select {
	case b := <-t.rx.C():
		return b, nil
	case <-t.done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (t *PortTransport) Dropped() uint64 { return t.rx.Dropped() }

func (t *PortTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		if t.stop != nil {
			t.stop()
		}
		debug.Log("rx", "closed port %s", t.name)
	})
	return nil
}

// ListPorts returns the host MIDI ports. The driver query runs with a timeout
// because CoreMIDI can hang.
func ListPorts(timeout time.Duration) ([]drivers.In, []drivers.Out, error) {
	type portsResult struct {
		ins  []drivers.In
		outs []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		return r.ins, r.outs, nil
	case <-time.After(timeout):
		return nil, nil, errors.New("midi driver did not respond (try: sudo killall coreaudiod midiserver)")
	}
}
