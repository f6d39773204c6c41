package dht_test

import (
	"errors"
	"math/rand"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/renproject/kadnode/conn"
	"github.com/renproject/kadnode/dht"
	"github.com/renproject/kadnode/testutil"
	"github.com/renproject/kadnode/wire"
	"github.com/renproject/kadnode/wire/wireutil"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// addresses returns the address of every peer in the directory.
func addresses(dir dht.Directory) map[string]wire.Address {
	addrs := map[string]wire.Address{}
	for _, key := range dir.Peers() {
		if addr, ok := dir.Address(key); ok {
			addrs[key] = addr
		}
	}
	return addrs
}

var _ = Describe("In-memory directory", func() {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	Context("when inserting addresses", func() {
		It("should be able to query them", func() {
			dir := dht.NewInMemDirectory("000")
			addr := wire.NewAddress("127.0.0.1", 3001)
			dir.InsertAddress("001", addr)

			got, ok := dir.Address("001")
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(addr))
			_, ok = dir.Connection("001")
			Expect(ok).To(BeFalse())
			Expect(dir.Peers()).To(Equal([]string{"001"}))
			Expect(dir.NumPeers()).To(Equal(1))
		})

		It("should overwrite existing addresses", func() {
			dir := dht.NewInMemDirectory("000")
			dir.InsertAddress("001", wire.NewAddress("127.0.0.1", 3001))
			dir.InsertAddress("001", wire.NewAddress("127.0.0.1", 4001))

			got, ok := dir.Address("001")
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(wire.NewAddress("127.0.0.1", 4001)))
		})

		It("should ignore the local node", func() {
			dir := dht.NewInMemDirectory("000")
			dir.InsertAddress("000", wire.NewAddress("127.0.0.1", 3000))
			dir.MergeAddresses(map[string]wire.Address{"000": wire.NewAddress("127.0.0.1", 3000)})
			Expect(dir.NumPeers()).To(Equal(0))
		})
	})

	Context("when merging addresses", func() {
		It("should contain the union with the merged addresses winning", func() {
			dir := dht.NewInMemDirectory("self")
			before := wireutil.RandomPeers(r, 32)
			dir.MergeAddresses(before)
			merged := wireutil.RandomPeers(r, 32)
			for key := range before {
				if r.Intn(2) == 0 {
					merged[key] = wireutil.RandomAddress(r)
				}
			}
			dir.MergeAddresses(merged)

			expected := map[string]wire.Address{}
			for key, addr := range before {
				expected[key] = addr
			}
			for key, addr := range merged {
				expected[key] = addr
			}
			Expect(cmp.Diff(expected, addresses(dir))).To(BeEmpty())
		})
	})

	Context("when evicting addresses", func() {
		It("should keep the connection", func() {
			dir := dht.NewInMemDirectory("000")
			c1, c2 := testutil.Pipe("000", "001")
			defer c2.Close()

			dir.InsertAddress("001", wire.NewAddress("127.0.0.1", 3001))
			Expect(dir.Register("001", c1)).To(Succeed())
			dir.EvictAddress("001")

			_, ok := dir.Address("001")
			Expect(ok).To(BeFalse())
			got, ok := dir.Connection("001")
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(c1))
			Expect(dir.Peers()).To(Equal([]string{"001"}))
		})

		It("should forget peers with nothing left", func() {
			dir := dht.NewInMemDirectory("000")
			dir.InsertAddress("001", wire.NewAddress("127.0.0.1", 3001))
			dir.EvictAddress("001")
			dir.EvictAddress("010")
			Expect(dir.Peers()).To(BeEmpty())
		})
	})

	Context("when registering connections", func() {
		It("should only store authenticated connections under their own key", func() {
			dir := dht.NewInMemDirectory("000")

			c1, c2 := testutil.UnauthenticatedPipe()
			defer c1.Close()
			defer c2.Close()
			Expect(errors.Is(dir.Register("001", c1), dht.ErrUnauthenticated)).To(BeTrue())

			c3, c4 := testutil.Pipe("000", "001")
			defer c3.Close()
			defer c4.Close()
			Expect(errors.Is(dir.Register("010", c3), dht.ErrUnauthenticated)).To(BeTrue())
			Expect(errors.Is(dir.Register("000", c4), dht.ErrSelf)).To(BeTrue())

			Expect(dir.NumPeers()).To(Equal(0))
		})

		It("should reject closed connections", func() {
			dir := dht.NewInMemDirectory("000")
			c1, c2 := testutil.Pipe("000", "001")
			defer c2.Close()
			c1.Close()
			Expect(errors.Is(dir.Register("001", c1), dht.ErrUnauthenticated)).To(BeTrue())
		})

		It("should replace and close the previous connection", func() {
			dir := dht.NewInMemDirectory("000")
			c1, r1 := testutil.Pipe("000", "001")
			c2, r2 := testutil.Pipe("000", "001")
			defer r1.Close()
			defer r2.Close()
			defer c2.Close()

			Expect(dir.Register("001", c1)).To(Succeed())
			Expect(dir.Register("001", c2)).To(Succeed())

			got, ok := dir.Connection("001")
			Expect(ok).To(BeTrue())
			Expect(got).To(BeIdenticalTo(c2))
			Expect(c1.State()).To(Equal(conn.Closed))
			Expect(c2.State()).To(Equal(conn.Authenticated))
		})

		It("should keep every stored connection authenticated as its key", func() {
			dir := dht.NewInMemDirectory("self")
			keys := testutil.RandomKeys(r, 8, 32)
			for _, key := range keys {
				c, remote := testutil.Pipe("self", key)
				defer remote.Close()
				Expect(dir.Register(key, c)).To(Succeed())
			}
			for _, key := range dir.Peers() {
				c, ok := dir.Connection(key)
				Expect(ok).To(BeTrue())
				remote, ok := c.Remote()
				Expect(ok).To(BeTrue())
				Expect(remote).To(Equal(key))
				Expect(c.State()).To(Equal(conn.Authenticated))
			}
			Expect(dir.Close()).To(Succeed())
		})
	})

	Context("when evicting connections", func() {
		It("should close the connection and keep the address", func() {
			dir := dht.NewInMemDirectory("000")
			c1, c2 := testutil.Pipe("000", "001")
			defer c2.Close()

			dir.InsertAddress("001", wire.NewAddress("127.0.0.1", 3001))
			Expect(dir.Register("001", c1)).To(Succeed())
			dir.EvictConnection("001")

			_, ok := dir.Connection("001")
			Expect(ok).To(BeFalse())
			_, ok = dir.Address("001")
			Expect(ok).To(BeTrue())
			Expect(c1.State()).To(Equal(conn.Closed))
		})
	})

	Context("when releasing connections", func() {
		It("should only remove the same connection", func() {
			dir := dht.NewInMemDirectory("000")
			c1, r1 := testutil.Pipe("000", "001")
			c2, r2 := testutil.Pipe("000", "001")
			defer r1.Close()
			defer r2.Close()
			defer c2.Close()

			Expect(dir.Register("001", c1)).To(Succeed())
			Expect(dir.Register("001", c2)).To(Succeed())
			Expect(dir.Release("001", c1)).To(BeFalse())
			got, ok := dir.Connection("001")
			Expect(ok).To(BeTrue())
			Expect(got).To(BeIdenticalTo(c2))

			Expect(dir.Release("001", c2)).To(BeTrue())
			_, ok = dir.Connection("001")
			Expect(ok).To(BeFalse())
			Expect(dir.NumPeers()).To(Equal(0))
		})
	})

	Context("when closing", func() {
		It("should close every connection and keep the addresses", func() {
			dir := dht.NewInMemDirectory("000")
			c1, r1 := testutil.Pipe("000", "001")
			c2, r2 := testutil.Pipe("000", "010")
			defer r1.Close()
			defer r2.Close()

			dir.InsertAddress("001", wire.NewAddress("127.0.0.1", 3001))
			Expect(dir.Register("001", c1)).To(Succeed())
			Expect(dir.Register("010", c2)).To(Succeed())
			Expect(dir.Close()).To(Succeed())

			Expect(c1.State()).To(Equal(conn.Closed))
			Expect(c2.State()).To(Equal(conn.Closed))
			Expect(dir.Peers()).To(Equal([]string{"001"}))
		})
	})

	Context("when used concurrently", func() {
		It("should not race", func() {
			dir := dht.NewInMemDirectory("self")
			keys := testutil.RandomKeys(r, 8, 64)
			testutil.Par(len(keys), func(i int) {
				key := keys[i]
				dir.InsertAddress(key, wire.NewAddress("127.0.0.1", uint16(3000+i)))
				c, remote := testutil.Pipe("self", key)
				defer remote.Close()
				if err := dir.Register(key, c); err != nil {
					panic(err)
				}
				dir.Peers()
				dir.EvictConnection(key)
			})
			Expect(dir.NumPeers()).To(Equal(len(keys)))
			for _, key := range keys {
				_, ok := dir.Connection(key)
				Expect(ok).To(BeFalse())
			}
		})
	})
})
