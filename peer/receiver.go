package peer

import (
	"fmt"

	"github.com/renproject/kadnode/wire"
	"go.uber.org/zap"
)

// A Receiver is given the application messages received from other peers,
// along with the public key of the sender.
type Receiver interface {
	DidReceiveMessage(from string, msg wire.Message)
}

// ReceiverFunc adapts a function into a Receiver.
type ReceiverFunc func(from string, msg wire.Message)

func (f ReceiverFunc) DidReceiveMessage(from string, msg wire.Message) {
	f(from, msg)
}

// A Handler processes one internal message type.
type Handler func(from string, msg wire.Message) error

// Subscribe a Receiver to one application message type. Receivers are called
// in the order that they subscribed, after Options.Receiver.
func (p *Peer) Subscribe(ty string, receiver Receiver) error {
	if wire.IsInternal(ty) {
		return fmt.Errorf("subscribe %v: %w", ty, ErrReservedType)
	}
	p.subscribersMu.Lock()
	defer p.subscribersMu.Unlock()
	p.subscribers[ty] = append(p.subscribers[ty], receiver)
	return nil
}

// dispatch a message that was read from an authenticated connection. Internal
// types go to their handler. All other types go to the receivers.
func (p *Peer) dispatch(from string, msg wire.Message) {
	if handler, ok := p.handlers[msg.Type]; ok {
		if err := handler(from, msg); err != nil {
			p.logger.Debug("handling", zap.String("peer", from), zap.String("type", msg.Type), zap.Error(err))
		}
		return
	}

	p.subscribersMu.RLock()
	receivers := make([]Receiver, 0, len(p.subscribers[msg.Type])+1)
	if p.opts.Receiver != nil {
		receivers = append(receivers, p.opts.Receiver)
	}
	receivers = append(receivers, p.subscribers[msg.Type]...)
	p.subscribersMu.RUnlock()

	if len(receivers) == 0 {
		p.logger.Debug("no receiver", zap.String("peer", from), zap.String("type", msg.Type))
		return
	}
	for _, receiver := range receivers {
		p.deliver(receiver, from, msg)
	}
}

func (p *Peer) deliver(receiver Receiver, from string, msg wire.Message) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("receiver panicked", zap.String("peer", from), zap.String("type", msg.Type), zap.Any("panic", r))
		}
	}()
	receiver.DidReceiveMessage(from, msg)
}
