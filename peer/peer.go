// Package peer runs a node: it accepts connections from other nodes, dials
// them when it needs to send, and finds the addresses of unknown nodes by
// asking the known node whose public key is nearest.
//
// Every connection is authenticated by the symmetric Identify handshake before
// any other message is read from it. The messages read from a connection are
// handled one at a time, in the order that they arrive. The internal message
// types are handled by the Peer itself, and every other type is given to the
// Receivers.
package peer

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/renproject/kadnode/codec"
	"github.com/renproject/kadnode/conn"
	"github.com/renproject/kadnode/dht"
	"github.com/renproject/kadnode/handshake"
	"github.com/renproject/kadnode/identity"
	"github.com/renproject/kadnode/tcp"
	"github.com/renproject/kadnode/wire"
	"go.uber.org/zap"
)

// A Peer is a running node. It is safe for concurrent use.
type Peer struct {
	opts      Options
	logger    *zap.Logger
	self      identity.Identity
	directory dht.Directory
	handlers  map[string]Handler

	enc codec.Encoder
	dec codec.Decoder

	subscribersMu *sync.RWMutex
	subscribers   map[string][]Receiver

	// The context of the Peer is cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	lifecycleMu *sync.Mutex
	started     bool
	stopped     bool
	listener    net.Listener
	wg          *sync.WaitGroup
}

// New returns a Peer for the given identity. The bootstrap addresses in the
// Options are inserted into the directory. If the directory is nil, an
// in-memory directory is used. Options that are nil or not positive are
// replaced by their defaults.
func New(opts Options, self identity.Identity, directory dht.Directory) *Peer {
	if opts.Logger == nil {
		opts.Logger = DefaultOptions().Logger
	}
	if opts.Verifier == nil {
		opts.Verifier = identity.AcceptAll
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Allow == nil {
		opts.Allow = defaultAllow()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}
	if directory == nil {
		directory = dht.NewInMemDirectory(self.PubKey())
	}
	directory.MergeAddresses(opts.Bootstrap)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Peer{
		opts:      opts,
		logger:    opts.Logger.With(zap.String("self", self.PubKey())),
		self:      self,
		directory: directory,

		subscribersMu: new(sync.RWMutex),
		subscribers:   map[string][]Receiver{},

		ctx:    ctx,
		cancel: cancel,

		lifecycleMu: new(sync.Mutex),
		wg:          new(sync.WaitGroup),
	}
	p.enc, p.dec = codec.Framed()
	p.handlers = map[string]Handler{
		wire.Identify:    p.didReceiveIdentify,
		wire.SearchPeer:  p.didReceiveSearchPeer,
		wire.UpdatePeers: p.didReceiveUpdatePeers,
	}
	return p
}

// Self returns the public key of the Peer.
func (p *Peer) Self() string {
	return p.self.PubKey()
}

// Directory returns the directory of the Peer.
func (p *Peer) Directory() dht.Directory {
	return p.directory
}

// Port returns the port of the listener, or zero if the Peer is not
// listening.
func (p *Peer) Port() uint16 {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.listener == nil {
		return 0
	}
	if addr, ok := p.listener.Addr().(*net.TCPAddr); ok {
		return uint16(addr.Port)
	}
	return 0
}

// Addr returns the address that the Peer reports for itself. Without an
// advertise address, this is the bound address of the listener, which may be
// unspecified (for example, 0.0.0.0).
func (p *Peer) Addr() (wire.Address, bool) {
	if p.opts.AdvertiseAddress != nil {
		return *p.opts.AdvertiseAddress, true
	}
	p.lifecycleMu.Lock()
	listener := p.listener
	p.lifecycleMu.Unlock()
	if listener == nil {
		return wire.Address{}, false
	}
	addr, err := wire.AddressFromNet(listener.Addr(), 0)
	if err != nil {
		return wire.Address{}, false
	}
	return addr, true
}

func (p *Peer) advertisedPort() uint16 {
	if p.opts.AdvertiseAddress != nil {
		return p.opts.AdvertiseAddress.Port
	}
	return p.Port()
}

// Start the Peer. If a listen address is set, it is bound before Start
// returns, and connections are accepted in the background. The Peer is
// stopped when the context is done, or when Stop is called.
func (p *Peer) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.stopped {
		return ErrStopped
	}
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	if p.opts.ListenAddress != "" {
		listener, err := new(net.ListenConfig).Listen(ctx, "tcp", p.opts.ListenAddress)
		if err != nil {
			return fmt.Errorf("listen on %v: %v", p.opts.ListenAddress, err)
		}
		p.listener = listener
		p.logger.Info("listening", zap.String("addr", listener.Addr().String()))

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			tcp.ListenWithListener(p.ctx, listener, p.handleInbound, func(err error) {
				p.logger.Debug("listener", zap.Error(err))
			}, p.opts.Allow)
		}()
	}

	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-p.ctx.Done():
		}
	}()
	return nil
}

// Stop the Peer. The listener and every connection are closed, and sends that
// are waiting to retry return ErrStopped. Stop waits for the goroutines of the
// Peer to return. It is safe to call more than once.
func (p *Peer) Stop() error {
	p.lifecycleMu.Lock()
	if p.stopped {
		p.lifecycleMu.Unlock()
		return nil
	}
	p.stopped = true
	p.lifecycleMu.Unlock()

	p.cancel()
	err := p.directory.Close()
	p.wg.Wait()
	p.logger.Info("stopped")
	return err
}

// spawn runs f in a goroutine that Stop waits for. It returns false, and does
// not run f, if the Peer has been stopped.
func (p *Peer) spawn(f func()) bool {
	if !p.enter() {
		return false
	}
	go func() {
		defer p.wg.Done()
		f()
	}()
	return true
}

// enter marks the start of work that Stop must wait for. If it returns true,
// the caller must call p.wg.Done when the work is done.
func (p *Peer) enter() bool {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.stopped {
		return false
	}
	p.wg.Add(1)
	return true
}

func (p *Peer) identify() handshake.Handshake {
	return handshake.Identify(p.self, p.opts.Verifier, p.advertisedPort(), p.opts.HandshakeTimeout)
}

func (p *Peer) newConn(raw net.Conn) *conn.Conn {
	return conn.New(raw, p.enc, p.dec, p.opts.MaxMessageSize)
}

// handleInbound authenticates an accepted connection, and then reads from it
// until it is closed.
func (p *Peer) handleInbound(raw net.Conn) {
	if !p.enter() {
		return
	}
	defer p.wg.Done()

	c := p.newConn(raw)
	remote, err := p.identify()(p.ctx, c)
	if err != nil {
		p.logger.Warn("handshake", zap.String("remote", raw.RemoteAddr().String()), zap.String("conn", c.ID()), zap.Error(err))
		return
	}

	// The remote address of an inbound connection has an ephemeral port, so
	// it is only dialable if the remote advertised the port it listens on.
	if port := c.AdvertisedPort(); port != 0 {
		addr, err := wire.AddressFromNet(c.RemoteAddr(), port)
		if err == nil {
			p.directory.InsertAddress(remote, addr)
		}
	}
	if err := p.directory.Register(remote, c); err != nil {
		p.logger.Warn("register", zap.String("peer", remote), zap.String("conn", c.ID()), zap.Error(err))
		c.Close()
		return
	}
	if p.ctx.Err() != nil {
		// Stop may have closed the directory before the connection was
		// registered.
		p.directory.Release(remote, c)
		c.Close()
		return
	}
	p.logger.Debug("accepted", zap.String("peer", remote), zap.String("conn", c.ID()))
	p.read(remote, c)
}

// read messages from an authenticated connection until it fails, and then
// release it from the directory.
func (p *Peer) read(remote string, c *conn.Conn) {
	defer func() {
		p.directory.Release(remote, c)
		c.Close()
	}()
	for {
		msg, err := c.Receive()
		if err != nil {
			p.logger.Debug("connection closed", zap.String("peer", remote), zap.String("conn", c.ID()), zap.Error(err))
			return
		}
		p.dispatch(remote, msg)
	}
}
