// Package handshake authenticates new connections. Both sides of a connection
// run the same symmetric handshake: each writes an Identify message carrying
// its public key and a signature over it, and then reads the first message
// from the other side. The connection is only authenticated if that first
// message is a well-formed Identify that passes verification.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/renproject/kadnode/conn"
	"github.com/renproject/kadnode/identity"
	"github.com/renproject/kadnode/wire"
	"github.com/renproject/surge"
)

// ErrHandshakeRejected is returned when the remote node fails the handshake.
// The connection has been rejected and closed.
var ErrHandshakeRejected = errors.New("handshake rejected")

// A Handshake authenticates a connection, and returns the public key of the
// remote node. If an error is returned, the connection has been closed.
type Handshake func(ctx context.Context, c *conn.Conn) (string, error)

// Identify returns the symmetric Handshake used by dialers and listeners
// alike. The port is advertised to the remote node as the port on which this
// node accepts connections. The timeout bounds the whole exchange, and the
// connection is also abandoned when the context is done.
func Identify(self identity.Identity, verifier identity.Verifier, port uint16, timeout time.Duration) Handshake {
	if verifier == nil {
		verifier = identity.AcceptAll
	}
	return func(ctx context.Context, c *conn.Conn) (string, error) {
		pubKey := self.PubKey()
		sig, err := self.Sign([]byte(pubKey))
		if err != nil {
			c.Close()
			return "", fmt.Errorf("sign identity: %v", err)
		}
		identify, err := wire.NewMessage(wire.Identify, wire.IdentifyPayload{
			PubKey:    pubKey,
			Signature: sig,
			Port:      port,
		})
		if err != nil {
			c.Close()
			return "", err
		}

		if timeout > 0 {
			c.SetDeadline(time.Now().Add(timeout))
			defer c.SetDeadline(time.Time{})
		}
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				c.Close()
			case <-done:
			}
		}()

		// Writing concurrently with reading means neither side waits for the
		// other to go first.
		written := make(chan error, 1)
		go func() {
			written <- c.Send(identify)
		}()

		first, err := c.Receive()
		if err != nil {
			return "", reject(c, "read identify: %v", err)
		}
		if first.Type != wire.Identify {
			return "", reject(c, "expected %v, got %v", wire.Identify, first.Type)
		}
		payload := wire.IdentifyPayload{}
		if err := surge.FromBinary(&payload, first.Payload); err != nil {
			return "", reject(c, "unmarshal identify: %v", err)
		}
		if payload.PubKey == "" {
			return "", reject(c, "empty pubkey")
		}
		if !verifier.Verify(payload.PubKey, payload.Signature, []byte(payload.PubKey)) {
			return "", reject(c, "verify %v", payload.PubKey)
		}
		if err := <-written; err != nil {
			return "", reject(c, "write identify: %v", err)
		}
		if err := c.Authenticate(payload.PubKey, payload.Port); err != nil {
			c.Close()
			return "", fmt.Errorf("%w: %v", ErrHandshakeRejected, err)
		}
		return payload.PubKey, nil
	}
}

func reject(c *conn.Conn, format string, args ...interface{}) error {
	c.Reject()
	c.Close()
	return fmt.Errorf("%w: %v", ErrHandshakeRejected, fmt.Sprintf(format, args...))
}
