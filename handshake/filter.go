package handshake

import (
	"context"
	"errors"
	"fmt"

	"github.com/renproject/kadnode/conn"
)

// ErrUnexpectedKey is returned by ExpectKey when the remote node is not the
// node that was dialed.
var ErrUnexpectedKey = errors.New("unexpected key")

// Filter wraps a Handshake with a check of the remote public key. If the
// wrapped Handshake fails, the check is skipped. If the check fails, the
// connection is closed.
func Filter(f func(remote string) error, h Handshake) Handshake {
	return func(ctx context.Context, c *conn.Conn) (string, error) {
		remote, err := h(ctx, c)
		if err != nil {
			return remote, err
		}
		if err := f(remote); err != nil {
			c.Close()
			return remote, fmt.Errorf("%w: filter %v: %v", ErrHandshakeRejected, remote, err)
		}
		return remote, nil
	}
}

// ExpectKey returns a filter that only accepts the given public key.
func ExpectKey(key string) func(string) error {
	return func(remote string) error {
		if remote != key {
			return fmt.Errorf("%w: expected %v, got %v", ErrUnexpectedKey, key, remote)
		}
		return nil
	}
}
