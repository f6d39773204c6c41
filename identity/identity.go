// Package identity defines the local key pair of a node, and the pluggable
// verification capability used to authenticate remote nodes during the
// handshake.
//
// Public keys are opaque strings. They are used as directory keys, compared
// for equality, and ranked by distance, but never interpreted by the rest of
// the runtime. This means that any signature scheme can be plugged in by
// implementing the Identity and Verifier interfaces.
package identity

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/renproject/id"
	"golang.org/x/crypto/sha3"
)

// An Identity holds the local key pair. The private key never leaves the
// Identity, and is only used to produce signatures.
type Identity interface {
	// PubKey returns the public key that identifies this node.
	PubKey() string
	// Sign a message using the private key.
	Sign(data []byte) ([]byte, error)
}

type ecdsaIdentity struct {
	privKey *id.PrivKey
	pubKey  string
}

// NewECDSA returns an Identity backed by a secp256k1 private key. The public
// key is the string representation of the signatory of the private key, and
// signatures are recoverable 65-byte ECDSA signatures over the SHA256 hash of
// the message.
func NewECDSA(privKey *id.PrivKey) Identity {
	return ecdsaIdentity{
		privKey: privKey,
		pubKey:  privKey.Signatory().String(),
	}
}

func (identity ecdsaIdentity) PubKey() string {
	return identity.pubKey
}

func (identity ecdsaIdentity) Sign(data []byte) ([]byte, error) {
	hash := id.NewHash(data)
	sig, err := crypto.Sign(hash[:], (*ecdsa.PrivateKey)(identity.privKey))
	if err != nil {
		return nil, fmt.Errorf("signing: %v", err)
	}
	return sig, nil
}

type staticIdentity struct {
	pubKey  string
	privKey string
}

// NewStatic returns an Identity from an opaque public/private key pair. The
// signature is a deterministic keccak256 proof over the private key and the
// message. It can only be checked by a Verifier that knows the private key (or
// one that accepts everything), and is intended for local networks and tests.
func NewStatic(pubKey, privKey string) Identity {
	return staticIdentity{pubKey: pubKey, privKey: privKey}
}

func (identity staticIdentity) PubKey() string {
	return identity.pubKey
}

func (identity staticIdentity) Sign(data []byte) ([]byte, error) {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(identity.privKey))
	hash.Write(data)
	return hash.Sum(nil), nil
}
