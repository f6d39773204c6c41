package identity

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/renproject/id"
)

// A Verifier checks that a signature over some data was produced by the owner
// of a public key.
type Verifier interface {
	Verify(pubKey string, signature, data []byte) bool
}

// VerifierFunc adapts a function into a Verifier.
type VerifierFunc func(pubKey string, signature, data []byte) bool

// Verify calls the function.
func (f VerifierFunc) Verify(pubKey string, signature, data []byte) bool {
	return f(pubKey, signature, data)
}

// AcceptAll is a placeholder Verifier that accepts every signature. It is the
// default, and must be replaced before running on an untrusted network.
var AcceptAll Verifier = VerifierFunc(func(string, []byte, []byte) bool {
	return true
})

// RejectAll is a Verifier that accepts nothing.
var RejectAll Verifier = VerifierFunc(func(string, []byte, []byte) bool {
	return false
})

// NewECDSAVerifier returns a Verifier for identities created by NewECDSA. The
// signer is recovered from the signature, and must match the public key.
func NewECDSAVerifier() Verifier {
	return VerifierFunc(func(pubKey string, signature, data []byte) bool {
		if len(signature) != crypto.SignatureLength {
			return false
		}
		hash := id.NewHash(data)
		recovered, err := crypto.SigToPub(hash[:], signature)
		if err != nil {
			return false
		}
		return id.NewSignatory((*id.PubKey)(recovered)).String() == pubKey
	})
}

// Whitelist returns a Verifier that only accepts the given public keys, and
// then defers to the next Verifier. A nil next Verifier is treated as
// AcceptAll.
func Whitelist(next Verifier, pubKeys ...string) Verifier {
	if next == nil {
		next = AcceptAll
	}
	whitelist := make(map[string]struct{}, len(pubKeys))
	for _, pubKey := range pubKeys {
		whitelist[pubKey] = struct{}{}
	}
	return VerifierFunc(func(pubKey string, signature, data []byte) bool {
		if _, ok := whitelist[pubKey]; !ok {
			return false
		}
		return next.Verify(pubKey, signature, data)
	})
}
