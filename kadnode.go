// Package kadnode is a peer-to-peer node runtime. Nodes are identified by
// public keys, exchange typed messages over authenticated connections, and
// find the addresses of unknown nodes by asking the known node whose key is
// nearest.
//
//	self := identity.NewECDSA(id.NewPrivKey())
//	node := kadnode.NewPeer(kadnode.DefaultOptions().WithListenAddress(":18514"), self, nil)
//	if err := node.Start(ctx); err != nil {
//		...
//	}
//	defer node.Stop()
//	err := node.Send(ctx, recipient, kadnode.Message{Type: "greet", Payload: []byte("hi")}, 3, time.Second)
package kadnode

import (
	"github.com/renproject/kadnode/dht"
	"github.com/renproject/kadnode/identity"
	"github.com/renproject/kadnode/peer"
	"github.com/renproject/kadnode/wire"
)

type (
	Peer         = peer.Peer
	Options      = peer.Options
	Receiver     = peer.Receiver
	ReceiverFunc = peer.ReceiverFunc
	SendError    = peer.SendError

	Identity  = identity.Identity
	Verifier  = identity.Verifier
	Directory = dht.Directory
	Message   = wire.Message
	Address   = wire.Address
)

var (
	ErrNoRoute           = peer.ErrNoRoute
	ErrDialFailed        = peer.ErrDialFailed
	ErrHandshakeRejected = peer.ErrHandshakeRejected
	ErrSendFailed        = peer.ErrSendFailed
	ErrRetriesExhausted  = peer.ErrRetriesExhausted
	ErrStopped           = peer.ErrStopped
)

var (
	NewPeer        = peer.New
	DefaultOptions = peer.DefaultOptions
	NewDirectory   = dht.NewInMemDirectory
	NewAddress     = wire.NewAddress
	ParseAddress   = wire.ParseAddress
)
