package peer

import (
	"context"
	"fmt"
	"time"

	"github.com/renproject/kadnode/conn"
	"github.com/renproject/kadnode/dht"
	"github.com/renproject/kadnode/handshake"
	"github.com/renproject/kadnode/policy"
	"github.com/renproject/kadnode/tcp"
	"github.com/renproject/kadnode/wire"
	"go.uber.org/zap"
)

// Send a message to the recipient, making at most retries+1 attempts. Before
// every retry, the connection to the recipient is evicted, the nearest known
// peer is asked for the address of the recipient, and Send waits for the
// backoff, which doubles after every retry. A nil error means that the message
// was written to a connection, not that it was received.
//
// When every attempt fails, the error is a *SendError that matches
// ErrRetriesExhausted and unwraps to the error of the last attempt. If the
// Peer is stopped, ErrStopped is returned. If the context is done, its error
// is returned.
func (p *Peer) Send(ctx context.Context, recipient string, msg wire.Message, retries int, backoff time.Duration) error {
	ctx, cancel := p.bind(ctx)
	defer cancel()

	if retries < 0 {
		retries = 0
	}
	schedule := policy.ExponentialBackoff(2, policy.ConstantTimeout(backoff))

	for attempt := 0; ; attempt++ {
		if err := p.interrupted(ctx); err != nil {
			return err
		}
		err := p.attempt(ctx, recipient, msg)
		if err == nil {
			return nil
		}
		if err := p.interrupted(ctx); err != nil {
			return err
		}
		if attempt >= retries {
			return &SendError{Recipient: recipient, Attempts: attempt + 1, Err: err}
		}

		wait := schedule(attempt)
		p.logger.Warn("sending",
			zap.String("peer", recipient),
			zap.String("type", msg.Type),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err))

		p.directory.EvictConnection(recipient)
		p.spawn(func() { p.search(recipient) })

		if err := p.wait(ctx, wait); err != nil {
			return err
		}
	}
}

// SendAsync calls Send in the background. The returned channel receives the
// result of Send, and is then never written to again.
func (p *Peer) SendAsync(ctx context.Context, recipient string, msg wire.Message, retries int, backoff time.Duration) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- p.Send(ctx, recipient, msg, retries, backoff)
	}()
	return result
}

// bind returns a context that is also done when the Peer is stopped.
func (p *Peer) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-p.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (p *Peer) interrupted(ctx context.Context) error {
	if p.ctx.Err() != nil {
		return ErrStopped
	}
	return ctx.Err()
}

func (p *Peer) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return p.interrupted(ctx)
	}
	timer := p.opts.Clock.Timer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return p.interrupted(ctx)
	case <-ctx.Done():
		return p.interrupted(ctx)
	}
}

// attempt to write the message once, dialing the recipient if there is no
// live connection.
func (p *Peer) attempt(ctx context.Context, recipient string, msg wire.Message) error {
	if c, ok := p.directory.Connection(recipient); ok {
		if err := c.Send(msg); err != nil {
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
		return nil
	}

	addr, ok := p.directory.Address(recipient)
	if !ok {
		return fmt.Errorf("%w to %v", ErrNoRoute, recipient)
	}
	c, err := p.dial(ctx, recipient, addr)
	if err != nil {
		p.directory.EvictAddress(recipient)
		return err
	}
	if err := c.Send(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// dial the address, require the remote to authenticate as the recipient, and
// register the connection.
func (p *Peer) dial(ctx context.Context, recipient string, addr wire.Address) (*conn.Conn, error) {
	raw, err := tcp.Dial(ctx, addr.String(), p.opts.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	c := p.newConn(raw)
	remote, err := handshake.Filter(handshake.ExpectKey(recipient), p.identify())(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := p.directory.Register(remote, c); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshakeRejected, err)
	}
	if !p.spawn(func() { p.read(remote, c) }) || p.ctx.Err() != nil {
		p.directory.Release(remote, c)
		c.Close()
		return nil, ErrStopped
	}
	p.logger.Debug("dialed", zap.String("peer", remote), zap.String("addr", addr.String()), zap.String("conn", c.ID()))
	return c, nil
}

// search asks the known peer nearest to the key for the address of the key.
// The answer arrives later as an UpdatePeers message.
func (p *Peer) search(key string) {
	candidates := dht.Without(p.directory.Peers(), key)
	closest, _, ok := dht.Closest(key, candidates)
	if !ok {
		p.logger.Warn("no peers to query", zap.String("searched", key))
		return
	}
	msg, err := wire.NewMessage(wire.SearchPeer, wire.SearchPeerPayload{SearchedKey: key})
	if err != nil {
		p.logger.Error("search", zap.String("searched", key), zap.Error(err))
		return
	}
	if err := p.Send(p.ctx, closest, msg, 0, 0); err != nil {
		p.logger.Debug("search", zap.String("peer", closest), zap.String("searched", key), zap.Error(err))
	}
}
