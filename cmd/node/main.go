package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/renproject/id"
	"github.com/renproject/kadnode/identity"
	"github.com/renproject/kadnode/peer"
	"github.com/renproject/kadnode/wire"
	"go.uber.org/zap"
)

var (
	pubKey    = flag.String("pubkey", "", "public key of a static identity (a random ecdsa identity is used when empty)")
	privKey   = flag.String("privkey", "", "private key of a static identity")
	verify    = flag.Bool("verify", false, "verify remote identities as ecdsa signatories")
	listen    = flag.String("listen", "0.0.0.0:18514", "address to listen on")
	advertise = flag.String("advertise", "", "address advertised to other nodes")
	bootstrap = flag.String("bootstrap", "", "comma separated list of key=host:port")
	sendTo    = flag.String("send", "", "public key of a node to send a message to")
	msgType   = flag.String("type", "greet", "type of the message to send")
	payload   = flag.String("payload", "", "payload of the message to send")
	retries   = flag.Int("retries", 3, "number of retries when sending")
	backoff   = flag.Duration("backoff", time.Second, "wait before the first retry")
	debug     = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	self := identity.NewStatic(*pubKey, *privKey)
	if *pubKey == "" {
		self = identity.NewECDSA(id.NewPrivKey())
	}

	opts := peer.DefaultOptions().
		WithLogger(logger).
		WithListenAddress(*listen).
		WithReceiver(peer.ReceiverFunc(func(from string, msg wire.Message) {
			logger.Info("received", zap.String("from", from), zap.String("type", msg.Type), zap.ByteString("payload", msg.Payload))
		}))
	if *verify {
		opts = opts.WithVerifier(identity.NewECDSAVerifier())
	}
	if *advertise != "" {
		addr, err := wire.ParseAddress(*advertise)
		if err != nil {
			logger.Fatal("bad advertise address", zap.Error(err))
		}
		opts = opts.WithAdvertiseAddress(addr)
	}
	peers, err := parseBootstrap(*bootstrap)
	if err != nil {
		logger.Fatal("bad bootstrap list", zap.Error(err))
	}
	for key, addr := range peers {
		opts = opts.WithBootstrap(key, addr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	node := peer.New(opts, self, nil)
	if err := node.Start(ctx); err != nil {
		logger.Fatal("starting", zap.Error(err))
	}
	logger.Info("started", zap.String("self", node.Self()), zap.Uint16("port", node.Port()))

	if *sendTo != "" {
		msg := wire.Message{Type: *msgType, Payload: []byte(*payload)}
		go func() {
			if err := node.Send(ctx, *sendTo, msg, *retries, *backoff); err != nil {
				logger.Error("sending", zap.String("to", *sendTo), zap.Error(err))
				return
			}
			logger.Info("sent", zap.String("to", *sendTo), zap.String("type", *msgType))
		}()
	}

	<-ctx.Done()
	if err := node.Stop(); err != nil {
		logger.Warn("stopping", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	conf := zap.NewProductionConfig()
	if debug {
		conf.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return conf.Build()
}

func parseBootstrap(s string) (map[string]wire.Address, error) {
	peers := map[string]wire.Address{}
	if s == "" {
		return peers, nil
	}
	for _, entry := range strings.Split(s, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("expected key=host:port, got %q", entry)
		}
		addr, err := wire.ParseAddress(parts[1])
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", entry, err)
		}
		peers[parts[0]] = addr
	}
	return peers, nil
}
