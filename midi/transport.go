package midi

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"go-midiclock/debug"
)

var (
	// ErrClosed is returned by a transport after Close.
	ErrClosed = errors.New("midi: transport closed")
	// ErrPortNotFound is returned when no port matches the requested name.
	ErrPortNotFound = errors.New("midi: port not found")
)

// DefaultQueueDepth is the receive queue size used when none is configured.
const DefaultQueueDepth = 32

// Transport is a MIDI1.0 byte stream. Received bytes are queued by a
// background reader that never blocks; a full queue drops the newest byte.
type Transport interface {
	// WriteByte sends one byte. It is safe to call from several goroutines.
	WriteByte(b byte) error
	// Receive blocks for the next received byte.
	Receive(ctx context.Context) (byte, error)
	// Dropped counts received bytes lost to a full queue.
	Dropped() uint64
	Close() error
}

// LoopTransport is an in-memory transport. Bytes written to one end are
// received on its peer; a single LoopTransport is its own peer.
type LoopTransport struct {
	rx   *ByteQueue
	peer *LoopTransport

	done      chan struct{}
	closeOnce sync.Once
	written   atomic.Uint64
}

func newLoopEnd(depth int) *LoopTransport {
	return &LoopTransport{
		rx:   NewQueue[byte](depth),
		done: make(chan struct{}),
	}
}

// NewLoopTransport returns a loopback: every written byte comes back in.
func NewLoopTransport(depth int) *LoopTransport {
	t := newLoopEnd(depth)
	t.peer = t
	return t
}

// NewPipe returns two connected ends, like a MIDI cable between two devices.
func NewPipe(depth int) (*LoopTransport, *LoopTransport) {
	a, b := newLoopEnd(depth), newLoopEnd(depth)
	a.peer, b.peer = b, a
	return a, b
}

func (t *LoopTransport) WriteByte(b byte) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	t.written.Add(1)
	t.peer.rx.TryPush(b)
	return nil
}

// Write sends buf byte by byte.
func (t *LoopTransport) Write(buf []byte) (int, error) {
	for i, b := range buf {
		if err := t.WriteByte(b); err != nil {
			return i, err
		}
	}
	return len(buf), nil
}

func (t *LoopTransport) Receive(ctx context.Context) (byte, error) {
	select {
	case b := <-t.rx.C():
		return b, nil
	case <-t.done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Pending returns the number of queued received bytes.
func (t *LoopTransport) Pending() int { return t.rx.Len() }

func (t *LoopTransport) Dropped() uint64 { return t.rx.Dropped() }

// Written counts bytes accepted by WriteByte.
func (t *LoopTransport) Written() uint64 { return t.written.Load() }

func (t *LoopTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

// Receiver drains a transport into a Parser on one goroutine.
type Receiver struct {
	t     Transport
	p     *Parser
	bytes atomic.Uint64
}

// NewReceiver creates a receiver feeding h.
func NewReceiver(t Transport, h Handler) *Receiver {
	return &Receiver{t: t, p: NewParser(h)}
}

// Bytes returns how many bytes were parsed.
func (r *Receiver) Bytes() uint64 { return r.bytes.Load() }

// Dropped returns the transport's receive drop count.
func (r *Receiver) Dropped() uint64 { return r.t.Dropped() }

// Run parses until ctx is done (returns nil) or the transport fails.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		b, err := r.t.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			debug.Log("rx", "receiver stopped: %v", err)
			return errors.Wrap(err, "receive")
		}
		r.p.Feed(b)
		r.bytes.Add(1)
	}
}
