// Package wire defines the messages that are exchanged between nodes, and
// their binary representation. All messages are a type and an opaque payload.
// Payloads are only interpreted by the handler registered for the type.
package wire

import (
	"fmt"

	"github.com/renproject/surge"
)

// Enumerate the message types used internally by the node runtime. All other
// types are application-defined.
const (
	// Identify must be the first message written by both sides of every new
	// connection. It binds the connection to a public key.
	Identify = "IDENTIFY"
	// SearchPeer asks a remote node for the address of a public key.
	SearchPeer = "SEARCH_PEER"
	// UpdatePeers informs a remote node about the addresses of public keys.
	UpdatePeers = "UPDATE_PEERS"
)

// DefaultMaxMessageSize is the default maximum number of bytes in one framed
// message.
const DefaultMaxMessageSize = 1024 * 1024

// IsInternal returns true if the message type is reserved by the node runtime.
func IsInternal(ty string) bool {
	switch ty {
	case Identify, SearchPeer, UpdatePeers:
		return true
	default:
		return false
	}
}

// Message defines the low-level message structure that is sent on-the-wire
// between nodes.
type Message struct {
	Type    string `json:"type"`
	Payload []byte `json:"payload"`
}

// SizeHint returns the number of bytes required to represent a Message in
// binary.
func (msg Message) SizeHint() int {
	return surge.SizeHint(msg.Type) +
		surge.SizeHintBytes(msg.Payload)
}

// Marshal a Message to binary.
func (msg Message) Marshal(buf []byte, rem int) ([]byte, int, error) {
	buf, rem, err := surge.Marshal(msg.Type, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("marshal type: %v", err)
	}
	buf, rem, err = surge.MarshalBytes(msg.Payload, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("marshal payload: %v", err)
	}
	return buf, rem, err
}

// Unmarshal a Message from binary.
func (msg *Message) Unmarshal(buf []byte, rem int) ([]byte, int, error) {
	buf, rem, err := surge.Unmarshal(&msg.Type, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("unmarshal type: %v", err)
	}
	buf, rem, err = surge.Unmarshal(&msg.Payload, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("unmarshal payload: %v", err)
	}
	return buf, rem, err
}

// NewMessage returns a Message of the given type, with the payload marshaled
// to binary.
func NewMessage(ty string, payload interface{}) (Message, error) {
	data, err := surge.ToBinary(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %v payload: %v", ty, err)
	}
	return Message{Type: ty, Payload: data}, nil
}
