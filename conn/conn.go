// Package conn wraps one network socket with the authentication state of the
// remote node, and frames wire messages on it.
package conn

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/renproject/kadnode/codec"
	"github.com/renproject/kadnode/wire"
	"github.com/renproject/surge"
)

var (
	// ErrClosed is returned when writing to, or reading from, a connection
	// that has been closed or rejected.
	ErrClosed = errors.New("connection closed")
	// ErrInvalidTransition is returned when authenticating or rejecting a
	// connection that is no longer unauthenticated.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// HandshakeMaxMessageSize bounds the frames read from a connection before it
// is authenticated.
const HandshakeMaxMessageSize = 4096

// State of a connection. Every connection starts Unauthenticated, and moves to
// exactly one of Authenticated or Rejected. Any state can move to Closed.
type State uint8

const (
	Unauthenticated State = iota
	Authenticated
	Rejected
	Closed
)

func (state State) String() string {
	switch state {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(state))
	}
}

// A Conn is a message-oriented connection to a remote node. Send is safe for
// concurrent use. Receive must only be called by one goroutine at a time.
type Conn struct {
	id      string
	raw     net.Conn
	enc     codec.Encoder
	dec     codec.Decoder
	maxSize int
	readBuf []byte

	writeMu sync.Mutex

	stateMu sync.RWMutex
	state   State
	remote  string
	port    uint16

	closeOnce sync.Once
	closeErr  error
}

// New wraps a network connection. Frames larger than maxSize bytes are
// rejected in both directions. A non-positive maxSize uses
// wire.DefaultMaxMessageSize. Until the connection is authenticated, frames
// read from it are limited to HandshakeMaxMessageSize bytes.
func New(raw net.Conn, enc codec.Encoder, dec codec.Decoder, maxSize int) *Conn {
	if maxSize <= 0 {
		maxSize = wire.DefaultMaxMessageSize
	}
	bufSize := HandshakeMaxMessageSize
	if maxSize < bufSize {
		bufSize = maxSize
	}
	return &Conn{
		id:      uuid.New().String(),
		raw:     raw,
		enc:     enc,
		dec:     dec,
		maxSize: maxSize,
		readBuf: make([]byte, bufSize),
		state:   Unauthenticated,
	}
}

// ID is a random identifier, used to correlate log lines.
func (c *Conn) ID() string {
	return c.id
}

// LocalAddr returns the network address of this end of the socket.
func (c *Conn) LocalAddr() net.Addr {
	return c.raw.LocalAddr()
}

// RemoteAddr returns the network address of the other end of the socket.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

func (c *Conn) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Remote returns the public key that the connection is bound to. It returns
// false if the connection has not been authenticated.
func (c *Conn) Remote() (string, bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.remote, c.remote != ""
}

// AdvertisedPort returns the port on which the remote node said it accepts
// connections, or zero.
func (c *Conn) AdvertisedPort() uint16 {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.port
}

// Authenticate binds the connection to a public key.
func (c *Conn) Authenticate(pubKey string, port uint16) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state != Unauthenticated {
		return fmt.Errorf("authenticate %v connection: %w", c.state, ErrInvalidTransition)
	}
	c.state = Authenticated
	c.remote = pubKey
	c.port = port
	return nil
}

// Reject marks the connection as having failed the handshake. No more messages
// can be sent.
func (c *Conn) Reject() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state != Unauthenticated {
		return fmt.Errorf("reject %v connection: %w", c.state, ErrInvalidTransition)
	}
	c.state = Rejected
	return nil
}

// SetDeadline sets the read and write deadlines of the socket. A zero value
// clears them.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.raw.SetDeadline(t)
}

// Send writes one message. Writes from concurrent callers never interleave.
func (c *Conn) Send(msg wire.Message) error {
	if state := c.State(); state == Rejected || state == Closed {
		return ErrClosed
	}
	data, err := surge.ToBinary(msg)
	if err != nil {
		return fmt.Errorf("marshal %v: %v", msg.Type, err)
	}
	if len(data) > c.maxSize {
		return fmt.Errorf("send %v: %v bytes: %w", msg.Type, len(data), codec.ErrMessageTooLarge)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.enc(c.raw, data); err != nil {
		return fmt.Errorf("send %v: %w", msg.Type, err)
	}
	return nil
}

// Receive blocks until the next message has been read.
func (c *Conn) Receive() (wire.Message, error) {
	switch c.State() {
	case Closed:
		return wire.Message{}, ErrClosed
	case Authenticated:
		if len(c.readBuf) < c.maxSize {
			c.readBuf = make([]byte, c.maxSize)
		}
	}
	n, err := c.dec(c.raw, c.readBuf)
	if err != nil {
		return wire.Message{}, fmt.Errorf("receive: %w", err)
	}
	msg := wire.Message{}
	if err := surge.FromBinary(&msg, c.readBuf[:n]); err != nil {
		return wire.Message{}, fmt.Errorf("unmarshal: %v", err)
	}
	// The read buffer is reused by the next Receive.
	msg.Payload = append([]byte{}, msg.Payload...)
	return msg, nil
}

// Close the connection. It is safe to call Close more than once, and only the
// first call closes the socket.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.stateMu.Lock()
		c.state = Closed
		c.stateMu.Unlock()
		c.closeErr = c.raw.Close()
	})
	return c.closeErr
}

func (c *Conn) String() string {
	remote, _ := c.Remote()
	return fmt.Sprintf("%v(%v, %v)", c.id, remote, c.State())
}
