// Package testutil provides the in-memory fixtures used by the tests of the
// other packages: authenticated connection pairs, a directory that counts
// lookups, a mock clock that reports its timers, and key generators.
package testutil

import (
	"math/rand"
	"net"

	"github.com/renproject/kadnode/codec"
	"github.com/renproject/kadnode/conn"
	"github.com/renproject/phi"
)

// Codec returns the length prefix codec used by nodes.
func Codec() (codec.Encoder, codec.Decoder) {
	return codec.Framed()
}

// Pipe returns two ends of an in-memory connection. The first is
// authenticated as the key of the second, and the second as the key of the
// first, as though both had completed the handshake.
func Pipe(key1, key2 string) (*conn.Conn, *conn.Conn) {
	c1, c2 := UnauthenticatedPipe()
	if err := c1.Authenticate(key2, 0); err != nil {
		panic(err)
	}
	if err := c2.Authenticate(key1, 0); err != nil {
		panic(err)
	}
	return c1, c2
}

// UnauthenticatedPipe returns two ends of an in-memory connection that have
// not completed a handshake.
func UnauthenticatedPipe() (*conn.Conn, *conn.Conn) {
	enc, dec := Codec()
	raw1, raw2 := net.Pipe()
	return conn.New(raw1, enc, dec, 0), conn.New(raw2, enc, dec, 0)
}

// RandomKey returns a key of n binary digits, like "0110".
func RandomKey(r *rand.Rand, n int) string {
	key := make([]byte, n)
	for i := range key {
		key[i] = byte('0' + r.Intn(2))
	}
	return string(key)
}

// RandomKeys returns m distinct keys of n binary digits. It panics if there
// are not enough distinct keys of that length.
func RandomKeys(r *rand.Rand, n, m int) []string {
	if n < 63 && m > 1<<uint(n) {
		panic("not enough distinct keys")
	}
	seen := make(map[string]struct{}, m)
	keys := make([]string, 0, m)
	for len(keys) < m {
		key := RandomKey(r, n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// Par calls f for every index in [0, n) in parallel, and waits for all of
// them to return.
func Par(n int, f func(i int)) {
	phi.ParForAll(n, f)
}
