package dht

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/renproject/kadnode/conn"
	"github.com/renproject/kadnode/wire"
	"go.uber.org/multierr"
)

var (
	// ErrUnauthenticated is returned when registering a connection that is not
	// authenticated as the given key.
	ErrUnauthenticated = errors.New("connection not authenticated")
	// ErrSelf is returned when registering a connection to the local node.
	ErrSelf = errors.New("connection to self")
)

// Force InMemDirectory to implement the Directory interface.
var _ Directory = &InMemDirectory{}

// A Directory maps public keys to the addresses at which they are believed to
// be reachable, and to live connections. A key can have an address, a
// connection, both, or neither (in which case it is not in the Directory).
// Every connection in a Directory is authenticated as the key it is stored
// under. All implementations must be safe for concurrent use.
type Directory interface {
	// Self returns the public key of the local node. It is never stored.
	Self() string

	// Connection returns the live connection to a key.
	Connection(key string) (*conn.Conn, bool)
	// Address returns the address of a key.
	Address(key string) (wire.Address, bool)

	// InsertAddress overwrites the address of a key.
	InsertAddress(key string, addr wire.Address)
	// MergeAddresses overwrites the address of every key in the mapping. The
	// key of the local node is ignored.
	MergeAddresses(addrs map[string]wire.Address)
	// EvictAddress removes the address of a key, but keeps its connection.
	EvictAddress(key string)

	// Register a connection under a key, replacing and closing any previous
	// connection. The connection must be authenticated as the key.
	Register(key string, c *conn.Conn) error
	// EvictConnection removes and closes the connection to a key, but keeps
	// its address.
	EvictConnection(key string)
	// Release removes the connection to a key if, and only if, it is the
	// given connection. It returns true if the connection was removed.
	Release(key string, c *conn.Conn) bool

	// Peers returns the sorted keys that have an address or a connection.
	Peers() []string
	// NumPeers returns the number of keys in the Directory.
	NumPeers() int

	// Close every connection in the Directory and remove it.
	Close() error
}

type record struct {
	addr *wire.Address
	conn *conn.Conn
}

func (rec *record) empty() bool {
	return rec.addr == nil && rec.conn == nil
}

// InMemDirectory implements the Directory using a map guarded by one mutex.
type InMemDirectory struct {
	self string

	recordsMu *sync.Mutex
	records   map[string]*record
}

// NewInMemDirectory returns an empty Directory for the local node.
func NewInMemDirectory(self string) *InMemDirectory {
	return &InMemDirectory{
		self: self,

		recordsMu: new(sync.Mutex),
		records:   map[string]*record{},
	}
}

func (dir *InMemDirectory) Self() string {
	return dir.self
}

func (dir *InMemDirectory) Connection(key string) (*conn.Conn, bool) {
	dir.recordsMu.Lock()
	defer dir.recordsMu.Unlock()

	rec, ok := dir.records[key]
	if !ok || rec.conn == nil {
		return nil, false
	}
	return rec.conn, true
}

func (dir *InMemDirectory) Address(key string) (wire.Address, bool) {
	dir.recordsMu.Lock()
	defer dir.recordsMu.Unlock()

	rec, ok := dir.records[key]
	if !ok || rec.addr == nil {
		return wire.Address{}, false
	}
	return *rec.addr, true
}

func (dir *InMemDirectory) InsertAddress(key string, addr wire.Address) {
	dir.recordsMu.Lock()
	defer dir.recordsMu.Unlock()

	dir.insertAddress(key, addr)
}

func (dir *InMemDirectory) MergeAddresses(addrs map[string]wire.Address) {
	dir.recordsMu.Lock()
	defer dir.recordsMu.Unlock()

	for key, addr := range addrs {
		dir.insertAddress(key, addr)
	}
}

func (dir *InMemDirectory) insertAddress(key string, addr wire.Address) {
	if key == dir.self || key == "" {
		return
	}
	rec, ok := dir.records[key]
	if !ok {
		rec = &record{}
		dir.records[key] = rec
	}
	rec.addr = &addr
}

func (dir *InMemDirectory) EvictAddress(key string) {
	dir.recordsMu.Lock()
	defer dir.recordsMu.Unlock()

	rec, ok := dir.records[key]
	if !ok {
		return
	}
	rec.addr = nil
	if rec.empty() {
		delete(dir.records, key)
	}
}

func (dir *InMemDirectory) Register(key string, c *conn.Conn) error {
	if key == dir.self {
		return fmt.Errorf("register %v: %w", key, ErrSelf)
	}
	if remote, ok := c.Remote(); !ok || remote != key || c.State() != conn.Authenticated {
		return fmt.Errorf("register %v: %w", key, ErrUnauthenticated)
	}

	dir.recordsMu.Lock()
	rec, ok := dir.records[key]
	if !ok {
		rec = &record{}
		dir.records[key] = rec
	}
	prev := rec.conn
	rec.conn = c
	dir.recordsMu.Unlock()

	if prev != nil && prev != c {
		prev.Close()
	}
	return nil
}

func (dir *InMemDirectory) EvictConnection(key string) {
	dir.recordsMu.Lock()
	rec, ok := dir.records[key]
	if !ok || rec.conn == nil {
		dir.recordsMu.Unlock()
		return
	}
	prev := rec.conn
	rec.conn = nil
	if rec.empty() {
		delete(dir.records, key)
	}
	dir.recordsMu.Unlock()

	prev.Close()
}

func (dir *InMemDirectory) Release(key string, c *conn.Conn) bool {
	dir.recordsMu.Lock()
	defer dir.recordsMu.Unlock()

	rec, ok := dir.records[key]
	if !ok || rec.conn != c {
		return false
	}
	rec.conn = nil
	if rec.empty() {
		delete(dir.records, key)
	}
	return true
}

func (dir *InMemDirectory) Peers() []string {
	dir.recordsMu.Lock()
	defer dir.recordsMu.Unlock()

	keys := make([]string, 0, len(dir.records))
	for key := range dir.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (dir *InMemDirectory) NumPeers() int {
	dir.recordsMu.Lock()
	defer dir.recordsMu.Unlock()

	return len(dir.records)
}

func (dir *InMemDirectory) Close() error {
	dir.recordsMu.Lock()
	conns := make([]*conn.Conn, 0, len(dir.records))
	for key, rec := range dir.records {
		if rec.conn == nil {
			continue
		}
		conns = append(conns, rec.conn)
		rec.conn = nil
		if rec.empty() {
			delete(dir.records, key)
		}
	}
	dir.recordsMu.Unlock()

	var err error
	for _, c := range conns {
		if closeErr := c.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close %v: %v", c.ID(), closeErr))
		}
	}
	return err
}
