package midi

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"go-midiclock/debug"
)

// BaudRate is the MIDI1.0 DIN serial rate.
const BaudRate = 31250

// SerialTransport is a MIDI1.0 UART. A reader goroutine moves bytes from the
// port into a bounded queue; it never blocks on a slow consumer.
type SerialTransport struct {
	port serial.Port
	name string
	rx   *ByteQueue

	wmu  sync.Mutex
	wbuf [1]byte

	done      chan struct{}
	closeOnce sync.Once
	readErr   error
}

// OpenSerial opens the named serial device. baud 0 means 31250.
func OpenSerial(name string, baud, depth int) (*SerialTransport, error) {
	if baud == 0 {
		baud = BaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial %s at %d baud", name, baud)
	}
	debug.Log("serial", "opened %s at %d baud", name, baud)

	t := &SerialTransport{
		port: p,
		name: name,
		rx:   NewQueue[byte](depth),
		done: make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *SerialTransport) readLoop() {
	buf := make([]byte, 64)
	for {
		n, err := t.port.Read(buf)
		if err != nil {
			select {
			case <-t.done:
			default:
				debug.Log("serial", "%s read: %v", t.name, err)
				t.readErr = err
				t.Close()
			}
			return
		}
		for _, b := range buf[:n] {
			if !t.rx.TryPush(b) {
				debug.LogEvery(64, "serial", "%s rx queue full", t.name)
			}
		}
	}
}

// Name returns the device path.
func (t *SerialTransport) Name() string { return t.name }

func (t *SerialTransport) WriteByte(b byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	t.wbuf[0] = b
	if _, err := t.port.Write(t.wbuf[:]); err != nil {
		return errors.Wrap(err, "serial write")
	}
	return nil
}

func (t *SerialTransport) Receive(ctx context.Context) (byte, error) {
	select {
	case b := <-t.rx.C():
		return b, nil
	case <-t.done:
		if t.readErr != nil {
			return 0, errors.Wrap(t.readErr, "serial read")
		}
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (t *SerialTransport) Dropped() uint64 { return t.rx.Dropped() }

func (t *SerialTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.port.Close()
		debug.Log("serial", "closed %s", t.name)
	})
	return err
}

// SerialPorts lists the serial devices present on the host.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list serial ports")
	}
	return ports, nil
}
