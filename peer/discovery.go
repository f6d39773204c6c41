package peer

import (
	"fmt"

	"github.com/renproject/kadnode/dht"
	"github.com/renproject/kadnode/wire"
	"github.com/renproject/surge"
	"go.uber.org/zap"
)

func (p *Peer) didReceiveIdentify(from string, msg wire.Message) error {
	// Identify is only meaningful as the first message of a connection.
	p.logger.Debug("ignoring identify", zap.String("peer", from))
	return nil
}

// didReceiveSearchPeer answers with the address of the searched key if it is
// known, including when the searched key is this Peer. Otherwise, the search
// is forwarded to the known peer nearest to the searched key, but only if that
// peer is nearer than this Peer. The peer that answers a forwarded search
// answers this Peer, which will then know the address the next time it is
// asked.
func (p *Peer) didReceiveSearchPeer(from string, msg wire.Message) error {
	payload := wire.SearchPeerPayload{}
	if err := surge.FromBinary(&payload, msg.Payload); err != nil {
		return fmt.Errorf("unmarshal search: %v", err)
	}
	searched := payload.SearchedKey

	if searched == p.Self() {
		addr, ok := p.addrFor(from)
		if !ok {
			return fmt.Errorf("search for self: no address to report")
		}
		return p.reply(from, searched, addr)
	}
	if addr, ok := p.directory.Address(searched); ok {
		return p.reply(from, searched, addr)
	}

	candidates := dht.Without(p.directory.Peers(), from, searched)
	closest, d, ok := dht.Closest(searched, candidates)
	if !ok || d >= dht.Distance(searched, p.Self()) {
		p.logger.Debug("search dropped", zap.String("peer", from), zap.String("searched", searched))
		return nil
	}
	p.logger.Debug("search forwarded", zap.String("peer", from), zap.String("searched", searched), zap.String("to", closest))
	p.sendAndForget(closest, msg)
	return nil
}

// addrFor returns the address of this Peer that is reported to a peer. An
// unspecified listener IP is replaced by the local IP of the connection to
// that peer, since the peer reached this Peer on it.
func (p *Peer) addrFor(key string) (wire.Address, bool) {
	addr, ok := p.Addr()
	if !ok || !addr.IsUnspecified() {
		return addr, ok
	}
	c, ok := p.directory.Connection(key)
	if !ok {
		return wire.Address{}, false
	}
	local, err := wire.AddressFromNet(c.LocalAddr(), addr.Port)
	if err != nil || local.IsUnspecified() {
		return wire.Address{}, false
	}
	return local, true
}

func (p *Peer) didReceiveUpdatePeers(from string, msg wire.Message) error {
	payload := wire.UpdatePeersPayload{}
	if err := surge.FromBinary(&payload, msg.Payload); err != nil {
		return fmt.Errorf("unmarshal update: %v", err)
	}
	p.directory.MergeAddresses(payload.Peers)
	p.logger.Debug("peers updated", zap.String("peer", from), zap.Int("peers", len(payload.Peers)))
	return nil
}

func (p *Peer) reply(to, key string, addr wire.Address) error {
	msg, err := wire.NewMessage(wire.UpdatePeers, wire.UpdatePeersPayload{
		Peers: map[string]wire.Address{key: addr},
	})
	if err != nil {
		return err
	}
	p.sendAndForget(to, msg)
	return nil
}

// sendAndForget makes one attempt to send a message, in the background, so
// that the connection that is being read from is not blocked.
func (p *Peer) sendAndForget(to string, msg wire.Message) {
	p.spawn(func() {
		if err := p.Send(p.ctx, to, msg, 0, 0); err != nil {
			p.logger.Debug("sending", zap.String("peer", to), zap.String("type", msg.Type), zap.Error(err))
		}
	})
}
