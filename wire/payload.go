package wire

import (
	"fmt"
	"sort"

	"github.com/renproject/surge"
)

// IdentifyPayload is the payload of an Identify message. The Signature is a
// proof that the sender owns the PubKey. The Port is the port on which the
// sender accepts connections, or zero if the sender is not listening.
type IdentifyPayload struct {
	PubKey    string `json:"pubKey"`
	Signature []byte `json:"signature"`
	Port      uint16 `json:"port"`
}

// SizeHint returns the number of bytes required to represent an
// IdentifyPayload in binary.
func (payload IdentifyPayload) SizeHint() int {
	return surge.SizeHint(payload.PubKey) +
		surge.SizeHintBytes(payload.Signature) +
		surge.SizeHintU16
}

// Marshal an IdentifyPayload to binary.
func (payload IdentifyPayload) Marshal(buf []byte, rem int) ([]byte, int, error) {
	buf, rem, err := surge.Marshal(payload.PubKey, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("marshal pubkey: %v", err)
	}
	buf, rem, err = surge.MarshalBytes(payload.Signature, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("marshal signature: %v", err)
	}
	buf, rem, err = surge.MarshalU16(payload.Port, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("marshal port: %v", err)
	}
	return buf, rem, err
}

// Unmarshal an IdentifyPayload from binary.
func (payload *IdentifyPayload) Unmarshal(buf []byte, rem int) ([]byte, int, error) {
	buf, rem, err := surge.Unmarshal(&payload.PubKey, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("unmarshal pubkey: %v", err)
	}
	buf, rem, err = surge.Unmarshal(&payload.Signature, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("unmarshal signature: %v", err)
	}
	buf, rem, err = surge.UnmarshalU16(&payload.Port, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("unmarshal port: %v", err)
	}
	return buf, rem, err
}

// SearchPeerPayload is the payload of a SearchPeer message.
type SearchPeerPayload struct {
	SearchedKey string `json:"searchedKey"`
}

func (payload SearchPeerPayload) SizeHint() int {
	return surge.SizeHint(payload.SearchedKey)
}

func (payload SearchPeerPayload) Marshal(buf []byte, rem int) ([]byte, int, error) {
	return surge.Marshal(payload.SearchedKey, buf, rem)
}

func (payload *SearchPeerPayload) Unmarshal(buf []byte, rem int) ([]byte, int, error) {
	return surge.Unmarshal(&payload.SearchedKey, buf, rem)
}

// UpdatePeersPayload is the payload of an UpdatePeers message. On the wire,
// the Peers are a count-prefixed list of KeyAndAddress entries in ascending
// order of their keys, so that equal payloads always have equal bytes.
type UpdatePeersPayload struct {
	Peers map[string]Address `json:"peers"`
}

// Entries returns the Peers as KeyAndAddress entries, sorted by key.
func (payload UpdatePeersPayload) Entries() []KeyAndAddress {
	entries := make([]KeyAndAddress, 0, len(payload.Peers))
	for key, addr := range payload.Peers {
		entries = append(entries, KeyAndAddress{Key: key, Address: addr})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}

func (payload UpdatePeersPayload) SizeHint() int {
	n := surge.SizeHint(uint32(len(payload.Peers)))
	for key, addr := range payload.Peers {
		n += surge.SizeHint(key) + addr.SizeHint()
	}
	return n
}

func (payload UpdatePeersPayload) Marshal(buf []byte, rem int) ([]byte, int, error) {
	buf, rem, err := surge.Marshal(uint32(len(payload.Peers)), buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("marshal len: %v", err)
	}
	for _, entry := range payload.Entries() {
		if buf, rem, err = entry.Marshal(buf, rem); err != nil {
			return buf, rem, fmt.Errorf("marshal peer %v: %v", entry.Key, err)
		}
	}
	return buf, rem, nil
}

func (payload *UpdatePeersPayload) Unmarshal(buf []byte, rem int) ([]byte, int, error) {
	var n uint32
	buf, rem, err := surge.Unmarshal(&n, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("unmarshal len: %v", err)
	}
	// Every entry needs at least the length prefixes of its key and ip, and
	// the port, so a length that cannot fit in the buffer is malformed.
	if int(n) > len(buf) {
		return buf, rem, fmt.Errorf("unmarshal len: %v entries exceed %v bytes", n, len(buf))
	}
	payload.Peers = make(map[string]Address, n)
	for i := uint32(0); i < n; i++ {
		entry := KeyAndAddress{}
		if buf, rem, err = entry.Unmarshal(buf, rem); err != nil {
			return buf, rem, fmt.Errorf("unmarshal peer %v: %v", i, err)
		}
		payload.Peers[entry.Key] = entry.Address
	}
	return buf, rem, nil
}
