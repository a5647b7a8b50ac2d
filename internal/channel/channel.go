// Package channel implements the bounded, typed, single-producer conduits
// that connect pin endpoints, with reliable vs best-effort delivery modes
// and broadcast fan-out. Grounded on the teacher's in-memory pub/sub
// (internal/pipeline/bus/memory_bus.go): a raw Go channel per
// producer-consumer pair, guarded only where counters are shared, no
// external queueing library — the pack carries none for this concern.
package channel

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/streamkit/streamkit/internal/packet"
)

// Mode selects a channel's backpressure behavior.
type Mode int

const (
	// Reliable blocks the sender when the buffer is full, propagating
	// backpressure to the producer. FIFO.
	Reliable Mode = iota
	// BestEffort never blocks; when the buffer is full, the oldest queued
	// packet is dropped. FIFO for surviving packets.
	BestEffort
)

// Sentinel errors for channel lifecycle failures.
var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("channel: closed")
	// ErrAborted marks a channel closed because its owning node panicked.
	ErrAborted = errors.New("channel: aborted")
)

// EndOfStream is returned by Recv once all producers have closed.
var EndOfStream = errors.New("channel: end of stream")

// Channel is a bounded, typed conduit from one producing pin to one
// consuming pin.
type Channel struct {
	mode     Mode
	capacity int
	ch       chan packet.Packet

	mu       sync.Mutex
	closed   bool
	aborted  bool
	closeErr error

	discarded atomic.Int64
}

// New creates a Channel with the given capacity and mode. Capacity must be
// >= 1; it is validated by the caller (the engine, from the profile's
// buffer-size policy), not here.
func New(capacity int, mode Mode) *Channel {
	return &Channel{
		mode:     mode,
		capacity: capacity,
		ch:       make(chan packet.Packet, capacity),
	}
}

// Capacity returns the configured buffer size.
func (c *Channel) Capacity() int { return c.capacity }

// Mode returns the configured delivery mode.
func (c *Channel) Mode() Mode { return c.mode }

// Discarded returns the number of packets dropped due to best-effort
// overflow.
func (c *Channel) Discarded() int64 { return c.discarded.Load() }

// Send delivers p to the channel. In Reliable mode it blocks until there is
// room (or the channel closes). In BestEffort mode it never blocks: if the
// buffer is full, the oldest queued packet is dropped to make room.
func (c *Channel) Send(p packet.Packet) error {
	c.mu.Lock()
	if c.closed {
		err := ErrClosed
		if c.aborted {
			err = ErrAborted
		}
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	switch c.mode {
	case Reliable:
		return c.sendReliable(p)
	default:
		return c.sendBestEffort(p)
	}
}

func (c *Channel) sendReliable(p packet.Packet) (err error) {
	// A closed channel is never written to again after Close(); recover from
	// the unavoidable race window by treating a panic as ErrClosed.
	defer func() {
		if recover() != nil {
			err = ErrClosed
		}
	}()
	c.ch <- p
	return nil
}

func (c *Channel) sendBestEffort(p packet.Packet) (err error) {
	defer func() { recover() }() //nolint:errcheck
	for {
		select {
		case c.ch <- p:
			return nil
		default:
		}
		select {
		case <-c.ch:
			c.discarded.Add(1)
		default:
			// Buffer drained concurrently by a reader; retry the send.
		}
	}
}

// Recv returns the next packet, EndOfStream once Close has drained the
// buffer, or an error if the channel was aborted.
func (c *Channel) Recv() (packet.Packet, error) {
	p, ok := <-c.ch
	if !ok {
		c.mu.Lock()
		err := c.closeErr
		c.mu.Unlock()
		if err != nil {
			return packet.Packet{}, err
		}
		return packet.Packet{}, EndOfStream
	}
	return p, nil
}

// Close closes the channel for writing; already-buffered packets are still
// delivered to Recv before it returns EndOfStream.
func (c *Channel) Close() {
	c.closeWith(nil)
}

// Abort closes the channel as the result of a panicking producer. Recv
// drains any buffered packets, then returns ErrAborted instead of
// EndOfStream.
func (c *Channel) Abort() {
	c.closeWith(ErrAborted)
}

func (c *Channel) closeWith(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.aborted = err != nil
	c.closeErr = err
	c.mu.Unlock()
	close(c.ch)
}
