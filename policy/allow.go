package policy

import (
	"errors"
	"net"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a connection is dropped because its IP
// address has attempted too many connections too quickly.
var ErrRateLimited = errors.New("rate limited")

// ErrMaxConnectionsExceeded is returned when a connection is dropped because
// the maximum number of concurrent inbound connections has been reached.
var ErrMaxConnectionsExceeded = errors.New("max connections exceeded")

// Allow filters inbound connections. If an error is returned, the connection
// is closed before the handshake. The Cleanup is called once the connection is
// closed, whether or not it was allowed.
type Allow func(net.Conn) (error, Cleanup)

// Cleanup reverses the per-connection state mutated by an Allow.
type Cleanup func()

func chain(cleanup Cleanup, next Cleanup) Cleanup {
	if next == nil {
		return cleanup
	}
	return func() {
		next()
		cleanup()
	}
}

// All passes a connection only if every Allow passes it. Allows are called in
// order, and no more are called after the first error.
func All(fs ...Allow) Allow {
	return func(conn net.Conn) (error, Cleanup) {
		cleanup := Cleanup(func() {})
		for _, f := range fs {
			err, next := f(conn)
			cleanup = chain(cleanup, next)
			if err != nil {
				return err, cleanup
			}
		}
		return nil, cleanup
	}
}

// Any passes a connection if at least one Allow passes it. Every Allow is
// called, and the combined error is returned only if all of them fail.
func Any(fs ...Allow) Allow {
	return func(conn net.Conn) (error, Cleanup) {
		cleanup := Cleanup(func() {})
		ok := false
		var errs error
		for _, f := range fs {
			err, next := f(conn)
			cleanup = chain(cleanup, next)
			if err == nil {
				ok = true
				continue
			}
			errs = multierr.Append(errs, err)
		}
		if ok {
			return nil, cleanup
		}
		return errs, cleanup
	}
}

// RateLimit rejects connections from an IP address that exceeds r connection
// attempts per second, with bursts of b. At most cap IP addresses are tracked,
// after which the oldest half is forgotten.
func RateLimit(r rate.Limit, b, cap int) Allow {
	mu := new(sync.Mutex)
	cap /= 2
	front := make(map[string]*rate.Limiter, cap)
	back := make(map[string]*rate.Limiter, cap)

	return func(conn net.Conn) (error, Cleanup) {
		ip := conn.RemoteAddr().String()
		if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
			ip = tcpAddr.IP.String()
		}

		mu.Lock()
		defer mu.Unlock()

		limiter, ok := front[ip]
		if !ok {
			limiter, ok = back[ip]
		}
		if !ok {
			if len(front) >= cap {
				back = front
				front = make(map[string]*rate.Limiter, cap)
			}
			limiter = rate.NewLimiter(r, b)
			front[ip] = limiter
		}
		if !limiter.Allow() {
			return ErrRateLimited, nil
		}
		return nil, nil
	}
}

// Max rejects connections once maxConns connections are open. A closed
// connection frees its slot. A negative maxConns allows everything.
func Max(maxConns int) Allow {
	mu := new(sync.Mutex)
	conns := 0

	return func(conn net.Conn) (error, Cleanup) {
		if maxConns < 0 {
			return nil, nil
		}
		mu.Lock()
		defer mu.Unlock()
		if conns >= maxConns {
			return ErrMaxConnectionsExceeded, nil
		}
		conns++
		return nil, func() {
			mu.Lock()
			conns--
			mu.Unlock()
		}
	}
}
