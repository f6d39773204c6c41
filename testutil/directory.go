package testutil

import (
	"sync"

	"github.com/renproject/kadnode/conn"
	"github.com/renproject/kadnode/dht"
)

// CountingDirectory wraps a Directory and counts the connection lookups for
// every key. A node looks up the connection once at the start of every send
// attempt, so this is also the number of attempts.
type CountingDirectory struct {
	dht.Directory

	countsMu *sync.Mutex
	counts   map[string]int
}

func NewCountingDirectory(dir dht.Directory) *CountingDirectory {
	return &CountingDirectory{
		Directory: dir,

		countsMu: new(sync.Mutex),
		counts:   map[string]int{},
	}
}

func (dir *CountingDirectory) Connection(key string) (*conn.Conn, bool) {
	dir.countsMu.Lock()
	dir.counts[key]++
	dir.countsMu.Unlock()
	return dir.Directory.Connection(key)
}

// Lookups returns the number of connection lookups for a key.
func (dir *CountingDirectory) Lookups(key string) int {
	dir.countsMu.Lock()
	defer dir.countsMu.Unlock()
	return dir.counts[key]
}
