package wire_test

import (
	"bytes"
	"math/rand"
	"net"
	"testing/quick"
	"time"

	"github.com/renproject/kadnode/wire"
	"github.com/renproject/kadnode/wire/wireutil"
	"github.com/renproject/surge"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Message", func() {
	Context("when marshaling and unmarshaling", func() {
		It("should equal itself", func() {
			r := rand.New(rand.NewSource(time.Now().UnixNano()))
			f := func() bool {
				msg := wireutil.RandomMessage(r)
				data, err := surge.ToBinary(msg)
				Expect(err).ToNot(HaveOccurred())
				unmarshaled := wire.Message{}
				Expect(surge.FromBinary(&unmarshaled, data)).To(Succeed())
				Expect(unmarshaled.Type).To(Equal(msg.Type))
				Expect(bytes.Equal(unmarshaled.Payload, msg.Payload)).To(BeTrue())
				return true
			}
			Expect(quick.Check(f, &quick.Config{MaxCount: 100})).To(Succeed())
		})
	})

	Context("when unmarshaling truncated data", func() {
		It("should return an error", func() {
			msg := wire.Message{Type: "greet", Payload: []byte("hello")}
			data, err := surge.ToBinary(msg)
			Expect(err).ToNot(HaveOccurred())
			for i := 0; i < len(data); i++ {
				unmarshaled := wire.Message{}
				Expect(surge.FromBinary(&unmarshaled, data[:i])).ToNot(Succeed())
			}
		})
	})

	Context("when building a message from a payload", func() {
		It("should marshal the payload", func() {
			payload := wire.SearchPeerPayload{SearchedKey: "111"}
			msg, err := wire.NewMessage(wire.SearchPeer, payload)
			Expect(err).ToNot(HaveOccurred())
			Expect(msg.Type).To(Equal(wire.SearchPeer))

			unmarshaled := wire.SearchPeerPayload{}
			Expect(surge.FromBinary(&unmarshaled, msg.Payload)).To(Succeed())
			Expect(unmarshaled).To(Equal(payload))
		})
	})

	Context("when checking for internal types", func() {
		It("should only match the reserved types", func() {
			Expect(wire.IsInternal(wire.Identify)).To(BeTrue())
			Expect(wire.IsInternal(wire.SearchPeer)).To(BeTrue())
			Expect(wire.IsInternal(wire.UpdatePeers)).To(BeTrue())
			Expect(wire.IsInternal("greet")).To(BeFalse())
			Expect(wire.IsInternal("identify")).To(BeFalse())
		})
	})
})

var _ = Describe("Address", func() {
	Context("when parsing", func() {
		It("should split host and port", func() {
			addr, err := wire.ParseAddress("127.0.0.1:3333")
			Expect(err).ToNot(HaveOccurred())
			Expect(addr).To(Equal(wire.NewAddress("127.0.0.1", 3333)))
			Expect(addr.String()).To(Equal("127.0.0.1:3333"))
		})

		It("should reject malformed values", func() {
			_, err := wire.ParseAddress("127.0.0.1")
			Expect(err).To(HaveOccurred())
			_, err = wire.ParseAddress("127.0.0.1:70000")
			Expect(err).To(HaveOccurred())
			_, err = wire.ParseAddress("127.0.0.1:port")
			Expect(err).To(HaveOccurred())
		})
	})

	Context("when converting from a network address", func() {
		It("should replace the port if one is advertised", func() {
			netAddr := &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 50123}

			addr, err := wire.AddressFromNet(netAddr, 0)
			Expect(err).ToNot(HaveOccurred())
			Expect(addr).To(Equal(wire.NewAddress("10.0.0.1", 50123)))

			addr, err = wire.AddressFromNet(netAddr, 3333)
			Expect(err).ToNot(HaveOccurred())
			Expect(addr).To(Equal(wire.NewAddress("10.0.0.1", 3333)))
		})
	})

	Context("when marshaling and unmarshaling", func() {
		It("should equal itself", func() {
			r := rand.New(rand.NewSource(time.Now().UnixNano()))
			f := func() bool {
				addr := wireutil.RandomAddress(r)
				data, err := surge.ToBinary(addr)
				Expect(err).ToNot(HaveOccurred())
				unmarshaled := wire.Address{}
				Expect(surge.FromBinary(&unmarshaled, data)).To(Succeed())
				Expect(unmarshaled).To(Equal(addr))
				return true
			}
			Expect(quick.Check(f, nil)).To(Succeed())
		})
	})

	It("should be unspecified only when it cannot be dialed", func() {
		Expect(wire.Address{}.IsUnspecified()).To(BeTrue())
		Expect(wire.NewAddress("0.0.0.0", 18514).IsUnspecified()).To(BeTrue())
		Expect(wire.NewAddress("::", 18514).IsUnspecified()).To(BeTrue())
		Expect(wire.NewAddress("127.0.0.1", 18514).IsUnspecified()).To(BeFalse())
		Expect(wire.NewAddress("localhost", 18514).IsUnspecified()).To(BeFalse())
	})

	It("should be zero only when empty", func() {
		Expect(wire.Address{}.IsZero()).To(BeTrue())
		Expect(wire.NewAddress("127.0.0.1", 0).IsZero()).To(BeFalse())
	})
})

var _ = Describe("Payloads", func() {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	Context("when marshaling an identify payload", func() {
		It("should carry the key, signature, and port", func() {
			payload := wire.IdentifyPayload{PubKey: "000", Signature: []byte{1, 2, 3}, Port: 3333}
			data, err := surge.ToBinary(payload)
			Expect(err).ToNot(HaveOccurred())
			unmarshaled := wire.IdentifyPayload{}
			Expect(surge.FromBinary(&unmarshaled, data)).To(Succeed())
			Expect(unmarshaled).To(Equal(payload))
		})
	})

	Context("when marshaling an update peers payload", func() {
		It("should equal itself", func() {
			f := func() bool {
				payload := wire.UpdatePeersPayload{Peers: wireutil.RandomPeers(r, 16)}
				data, err := surge.ToBinary(payload)
				Expect(err).ToNot(HaveOccurred())
				unmarshaled := wire.UpdatePeersPayload{}
				Expect(surge.FromBinary(&unmarshaled, data)).To(Succeed())
				Expect(unmarshaled.Peers).To(Equal(payload.Peers))
				return true
			}
			Expect(quick.Check(f, &quick.Config{MaxCount: 50})).To(Succeed())
		})

		It("should always produce the same bytes for the same peers", func() {
			peers := wireutil.RandomPeers(r, 32)
			expected, err := surge.ToBinary(wire.UpdatePeersPayload{Peers: peers})
			Expect(err).ToNot(HaveOccurred())
			for i := 0; i < 10; i++ {
				copied := make(map[string]wire.Address, len(peers))
				for key, addr := range peers {
					copied[key] = addr
				}
				data, err := surge.ToBinary(wire.UpdatePeersPayload{Peers: copied})
				Expect(err).ToNot(HaveOccurred())
				Expect(data).To(Equal(expected))
			}
		})

		It("should sort entries by key", func() {
			payload := wire.UpdatePeersPayload{Peers: map[string]wire.Address{
				"111": wire.NewAddress("127.0.0.1", 3),
				"000": wire.NewAddress("127.0.0.1", 1),
				"001": wire.NewAddress("127.0.0.1", 2),
			}}
			entries := payload.Entries()
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].Key).To(Equal("000"))
			Expect(entries[1].Key).To(Equal("001"))
			Expect(entries[2].Key).To(Equal("111"))
		})

		It("should reject an entry count that cannot fit", func() {
			data, err := surge.ToBinary(uint32(1000))
			Expect(err).ToNot(HaveOccurred())
			unmarshaled := wire.UpdatePeersPayload{}
			Expect(surge.FromBinary(&unmarshaled, data)).ToNot(Succeed())
		})
	})
})
