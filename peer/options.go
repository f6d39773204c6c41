package peer

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/renproject/kadnode/identity"
	"github.com/renproject/kadnode/policy"
	"github.com/renproject/kadnode/wire"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	DefaultDialTimeout      = 5 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultMaxMessageSize   = wire.DefaultMaxMessageSize
	DefaultMaxConns         = 256
	DefaultRateLimit        = rate.Limit(10)
	DefaultRateBurst        = 20
	DefaultRateCapacity     = 1024
)

// Options for a Peer. Fields that cannot be represented in JSON must be set
// with the builder methods.
type Options struct {
	Logger   *zap.Logger       `json:"-"`
	Verifier identity.Verifier `json:"-"`
	// Receiver is called with every application message, in addition to the
	// receivers subscribed to its type.
	Receiver Receiver     `json:"-"`
	Allow    policy.Allow `json:"-"`
	Clock    clock.Clock  `json:"-"`

	// Bootstrap addresses are inserted into the directory when the Peer is
	// created.
	Bootstrap map[string]wire.Address `json:"bootstrap"`
	// ListenAddress is bound by Start. If it is empty, the Peer does not
	// accept connections, and can only talk to peers that it dials.
	ListenAddress string `json:"listenAddress"`
	// AdvertiseAddress is the address that the Peer reports for itself. If it
	// is nil, the address of the listener is used.
	AdvertiseAddress *wire.Address `json:"advertiseAddress,omitempty"`

	DialTimeout      time.Duration `json:"dialTimeout"`
	HandshakeTimeout time.Duration `json:"handshakeTimeout"`
	MaxMessageSize   int           `json:"maxMessageSize"`
}

// DefaultOptions returns Options with a development logger, the accept-all
// verifier, and listener admission limited per IP and in total. The Peer does
// not listen unless a listen address is set.
func DefaultOptions() Options {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return Options{
		Logger:   logger,
		Verifier: identity.AcceptAll,
		Allow:    defaultAllow(),
		Clock:    clock.New(),

		Bootstrap: map[string]wire.Address{},

		DialTimeout:      DefaultDialTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		MaxMessageSize:   DefaultMaxMessageSize,
	}
}

func defaultAllow() policy.Allow {
	return policy.All(
		policy.Max(DefaultMaxConns),
		policy.RateLimit(DefaultRateLimit, DefaultRateBurst, DefaultRateCapacity),
	)
}

// WithLogger sets the logger. The Peer adds its own key to every line.
func (opts Options) WithLogger(logger *zap.Logger) Options {
	opts.Logger = logger
	return opts
}

// WithVerifier sets the Verifier used by the handshake.
func (opts Options) WithVerifier(verifier identity.Verifier) Options {
	opts.Verifier = verifier
	return opts
}

// WithReceiver sets the Receiver of every application message.
func (opts Options) WithReceiver(receiver Receiver) Options {
	opts.Receiver = receiver
	return opts
}

// WithAllow sets the admission policy of the listener.
func (opts Options) WithAllow(allow policy.Allow) Options {
	opts.Allow = allow
	return opts
}

// WithClock sets the clock on which retries wait.
func (opts Options) WithClock(c clock.Clock) Options {
	opts.Clock = c
	return opts
}

// WithBootstrap adds a bootstrap address. It does not modify the bootstrap
// addresses of the Options it was called on.
func (opts Options) WithBootstrap(key string, addr wire.Address) Options {
	bootstrap := make(map[string]wire.Address, len(opts.Bootstrap)+1)
	for k, v := range opts.Bootstrap {
		bootstrap[k] = v
	}
	bootstrap[key] = addr
	opts.Bootstrap = bootstrap
	return opts
}

// WithListenAddress sets the "host:port" bound by Start.
func (opts Options) WithListenAddress(addr string) Options {
	opts.ListenAddress = addr
	return opts
}

// WithAdvertiseAddress sets the address that the Peer reports for itself.
func (opts Options) WithAdvertiseAddress(addr wire.Address) Options {
	opts.AdvertiseAddress = &addr
	return opts
}

// WithDialTimeout bounds the time taken to connect to a peer.
func (opts Options) WithDialTimeout(timeout time.Duration) Options {
	opts.DialTimeout = timeout
	return opts
}

// WithHandshakeTimeout bounds the time taken to receive the identity of a
// peer.
func (opts Options) WithHandshakeTimeout(timeout time.Duration) Options {
	opts.HandshakeTimeout = timeout
	return opts
}

// WithMaxMessageSize bounds the size of messages, in bytes.
func (opts Options) WithMaxMessageSize(size int) Options {
	opts.MaxMessageSize = size
	return opts
}
