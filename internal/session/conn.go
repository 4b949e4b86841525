package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/proto"
)

// Transport is the raw bidirectional channel a connection runs over. The
// concrete implementation lives in internal/transport/ws; tests inject fakes.
type Transport interface {
	// Read blocks until the next inbound frame or a transport failure.
	Read(ctx context.Context) ([]byte, error)
	// Write transmits one outbound frame.
	Write(ctx context.Context, data []byte) error
	// Close releases the underlying channel. Idempotent.
	Close(reason string) error
}

// Dialer establishes a Transport for the real-time channel of a room.
type Dialer interface {
	Dial(ctx context.Context, roomID string) (Transport, error)
}

// EventKind tags connection events surfaced to the orchestrator.
type EventKind int

const (
	// EventOpen fires once the transport is up and the claim is sent.
	EventOpen EventKind = iota
	// EventFrame carries one raw inbound frame.
	EventFrame
	// EventClosed fires exactly once when the connection ends.
	EventClosed
	// EventTransportError reports a connection-level failure; an
	// EventClosed follows.
	EventTransportError
)

// Event is a connection lifecycle notification. The connection performs no
// frame decoding itself; that is the codec's job.
type Event struct {
	Kind   EventKind
	Frame  []byte
	Reason string
	Err    error
}

// ErrNotOpen is returned by Send when the connection is not in the Open
// state. The send is a no-op; no frame is produced.
var ErrNotOpen = errors.New("connection not open")

// Conn owns one persistent connection instance for an active room
// membership. Closed is terminal: rejoining creates a new instance and the
// orchestrator force-closes any prior one first.
type Conn struct {
	mu        sync.Mutex
	status    Status
	transport Transport
	cancel    context.CancelFunc
	readCtx   context.Context
	closed    bool
	sink      func(Event)
	log       *zerolog.Logger
}

// Open dials the room channel and transmits the identity claim before any
// other traffic. Inbound frames are not consumed until Start is called, so
// the caller can finish registering the connection first. The sink is invoked
// from the read goroutine (and once synchronously for EventOpen); the caller
// is responsible for serializing its own state.
func Open(ctx context.Context, dialer Dialer, roomID, username string, sink func(Event), logger *zerolog.Logger) (*Conn, error) {
	c := &Conn{status: StatusConnecting, sink: sink, log: logger}

	transport, err := dialer.Dial(ctx, roomID)
	if err != nil {
		c.status = StatusClosed
		return nil, fmt.Errorf("dial room %s: %w", roomID, err)
	}

	claim, err := proto.EncodeClaim(username)
	if err != nil {
		_ = transport.Close("encode claim failed")
		c.status = StatusClosed
		return nil, err
	}
	if err := transport.Write(ctx, claim); err != nil {
		_ = transport.Close("claim write failed")
		c.status = StatusClosed
		return nil, fmt.Errorf("send claim: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c.transport = transport
	c.cancel = cancel
	c.readCtx = readCtx
	c.status = StatusOpen

	sink(Event{Kind: EventOpen})
	return c, nil
}

// Start begins consuming inbound frames. Must be called exactly once after a
// successful Open; a connection closed before Start never delivers frames.
func (c *Conn) Start() {
	go c.readLoop(c.readCtx)
}

// Status returns the current lifecycle state.
func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Send transmits a chat frame. It refuses with ErrNotOpen, producing no
// frame, unless the connection is Open.
func (c *Conn) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.status != StatusOpen {
		c.mu.Unlock()
		return ErrNotOpen
	}
	transport := c.transport
	c.mu.Unlock()

	frame, err := proto.EncodeChat(text)
	if err != nil {
		return err
	}
	if err := transport.Write(ctx, frame); err != nil {
		c.Close("send failed")
		return fmt.Errorf("send chat: %w", err)
	}
	return nil
}

// Close transitions to Closed from any prior state and releases the
// transport. Idempotent; safe from any goroutine.
func (c *Conn) Close(reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.status = StatusClosed
	transport := c.transport
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if transport != nil {
		if err := transport.Close(reason); err != nil && c.log != nil {
			c.log.Debug().Err(err).Msg("transport close")
		}
	}
	c.sink(Event{Kind: EventClosed, Reason: reason})
}

func (c *Conn) readLoop(ctx context.Context) {
	for {
		frame, err := c.transport.Read(ctx)
		if err != nil {
			c.mu.Lock()
			alreadyClosed := c.closed
			c.mu.Unlock()
			// A graceful remote close surfaces as io.EOF; only real
			// failures are reported as transport errors.
			if !alreadyClosed && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				c.sink(Event{Kind: EventTransportError, Err: err})
			}
			c.Close("read loop ended")
			return
		}
		c.sink(Event{Kind: EventFrame, Frame: frame})
	}
}
