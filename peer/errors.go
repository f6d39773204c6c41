package peer

import (
	"errors"
	"fmt"

	"github.com/renproject/kadnode/handshake"
)

var (
	// ErrNoRoute is returned by a send attempt when there is neither a live
	// connection to, nor an address for, the recipient.
	ErrNoRoute = errors.New("no route")
	// ErrDialFailed is returned by a send attempt when the address of the
	// recipient could not be dialed. The address has been evicted.
	ErrDialFailed = errors.New("dial failed")
	// ErrHandshakeRejected is returned by a send attempt when the recipient
	// did not complete the handshake, or completed it as a different key. The
	// address has been evicted.
	ErrHandshakeRejected = handshake.ErrHandshakeRejected
	// ErrSendFailed is returned by a send attempt when writing to the
	// connection failed.
	ErrSendFailed = errors.New("send failed")
	// ErrRetriesExhausted is matched by the SendError returned when every
	// attempt of a send has failed.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrStopped is returned by sends once the peer has been stopped.
	ErrStopped = errors.New("peer stopped")

	ErrAlreadyStarted = errors.New("peer already started")
	ErrReservedType   = errors.New("reserved message type")
)

// A SendError is returned by Send after the last attempt has failed. It
// matches ErrRetriesExhausted, and unwraps to the error of the last attempt.
type SendError struct {
	Recipient string
	Attempts  int
	Err       error
}

func (err *SendError) Error() string {
	return fmt.Sprintf("send to %v: %v after %v attempts: %v", err.Recipient, ErrRetriesExhausted, err.Attempts, err.Err)
}

func (err *SendError) Unwrap() error {
	return err.Err
}

func (err *SendError) Is(target error) bool {
	return target == ErrRetriesExhausted
}
