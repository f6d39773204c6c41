// Package wireutil generates random wire values for tests.
package wireutil

import (
	"fmt"
	"math/rand"

	"github.com/renproject/kadnode/wire"
)

// RandomAddress returns an IPv4 Address with a random non-zero port.
func RandomAddress(r *rand.Rand) wire.Address {
	ip := fmt.Sprintf("%d.%d.%d.%d", r.Intn(256), r.Intn(256), r.Intn(256), r.Intn(256))
	return wire.NewAddress(ip, uint16(1+r.Intn(65535)))
}

// RandomKey returns a random printable key of up to maxLen characters.
func RandomKey(r *rand.Rand, maxLen int) string {
	n := 1 + r.Intn(maxLen)
	key := make([]byte, n)
	for i := range key {
		key[i] = byte('a' + r.Intn(26))
	}
	return string(key)
}

// RandomType returns a random application message type. It is never one of
// the internal types.
func RandomType(r *rand.Rand) string {
	for {
		ty := RandomKey(r, 16)
		if !wire.IsInternal(ty) {
			return ty
		}
	}
}

// RandomMessage returns an application message with a random payload of up to
// 256 bytes.
func RandomMessage(r *rand.Rand) wire.Message {
	payload := make([]byte, r.Intn(256))
	r.Read(payload)
	return wire.Message{Type: RandomType(r), Payload: payload}
}

// RandomPeers returns a map of up to n random keys to random addresses.
func RandomPeers(r *rand.Rand, n int) map[string]wire.Address {
	peers := make(map[string]wire.Address, n)
	for i := r.Intn(n + 1); i > 0; i-- {
		peers[RandomKey(r, 32)] = RandomAddress(r)
	}
	return peers
}
