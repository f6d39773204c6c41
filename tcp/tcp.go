// Package tcp accepts and dials the raw TCP sockets that nodes exchange
// messages over. Authentication and framing happen above this package.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/renproject/kadnode/policy"
)

// Listen binds the address, and then accepts connections until the context is
// done. See ListenWithListener.
func Listen(ctx context.Context, address string, handle func(net.Conn), handleErr func(error), allow policy.Allow) error {
	listener, err := new(net.ListenConfig).Listen(ctx, "tcp", address)
	if err != nil {
		return err
	}
	return ListenWithListener(ctx, listener, handle, handleErr, allow)
}

// ListenWithListener accepts connections until the context is done, and then
// closes the listener. Connections that do not pass the allow function are
// closed immediately. Every other connection is handled in its own goroutine,
// and closed when the handle function returns. This function blocks until the
// context is done.
func ListenWithListener(ctx context.Context, listener net.Listener, handle func(net.Conn), handleErr func(error), allow policy.Allow) error {
	if handle == nil {
		return fmt.Errorf("nil handle function")
	}
	if handleErr == nil {
		handleErr = func(error) {}
	}

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			handleErr(fmt.Errorf("close listener: %v", err))
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			handleErr(fmt.Errorf("accept connection: %v", err))
			continue
		}

		var cleanup policy.Cleanup
		if allow != nil {
			if err, cleanup = allow(conn); err != nil {
				handleErr(fmt.Errorf("allow %v: %v", conn.RemoteAddr(), err))
				if cleanup != nil {
					cleanup()
				}
				if err := conn.Close(); err != nil {
					handleErr(fmt.Errorf("close connection: %v", err))
				}
				continue
			}
		}

		go func() {
			defer func() {
				if cleanup != nil {
					cleanup()
				}
			}()
			defer func() {
				if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
					handleErr(fmt.Errorf("close connection: %v", err))
				}
			}()
			handle(conn)
		}()
	}
}

// Dial makes one attempt to connect to the address. The attempt is abandoned
// after the timeout, or when the context is done. A non-positive timeout only
// relies on the context.
func Dial(ctx context.Context, address string, timeout time.Duration) (net.Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, err := new(net.Dialer).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %v: %w", address, err)
	}
	return conn, nil
}
