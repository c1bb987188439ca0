// Package crypto supplies the Signer/Verifier implementations
// internal/raft consumes as external collaborators.
// ed25519 is the only signature primitive used anywhere in this module;
// see DESIGN.md for why no third-party signing library is wired in
// instead.
package crypto

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/quorumlabs/bftraft/internal/raft"
)

// KeyRing holds this node's own signing key plus the public keys of every
// peer and client it needs to verify. Grounded on
// akhadilkar-byzantine-fault-tolerant-consensus/transport.go's key-registry
// pattern, generalized from that file's two fixed keyspaces (nodes,
// clients) into one lookup keyed by the opaque id string the rest of the
// module already uses at the Verifier boundary.
type KeyRing struct {
	mu       sync.RWMutex
	self     ed25519.PrivateKey
	verifyBy map[string]ed25519.PublicKey
}

// NewKeyRing builds a KeyRing around this node's own private key; peer and
// client public keys are registered afterward with Register.
func NewKeyRing(self ed25519.PrivateKey) *KeyRing {
	return &KeyRing{self: self, verifyBy: make(map[string]ed25519.PublicKey)}
}

// Register associates id (a NodeId or ClientId string) with the public key
// used to verify messages claiming to be from it.
func (k *KeyRing) Register(id string, pub ed25519.PublicKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.verifyBy[id] = pub
}

// Sign implements raft.Signer.
func (k *KeyRing) Sign(payload []byte) raft.Signature {
	sig := ed25519.Sign(k.self, payload)
	var out raft.Signature
	copy(out[:], sig)
	return out
}

// Verify implements raft.Verifier. An unregistered id cannot be verified
// and is treated as a failure, so an unknown peer or client key results in
// a silent drop rather than a panic or error return.
func (k *KeyRing) Verify(id string, payload []byte, sig raft.Signature) bool {
	k.mu.RLock()
	pub, ok := k.verifyBy[id]
	k.mu.RUnlock()
	if !ok {
		return false
	}
	return ed25519.Verify(pub, payload, sig[:])
}

// DeterministicKeyPair derives a reproducible ed25519 key pair from seed,
// for tests that need stable identities across runs without a keystore.
// Grounded on akhadilkar-byzantine-fault-tolerant-consensus/transport.go's
// keysFromAddr, which derives keys deterministically from a node address
// string for the same reason.
func DeterministicKeyPair(seed string) (ed25519.PublicKey, ed25519.PrivateKey) {
	material := make([]byte, ed25519.SeedSize)
	copy(material, []byte(seed))
	priv := ed25519.NewKeyFromSeed(material)
	return priv.Public().(ed25519.PublicKey), priv
}

// ParsePrivateKey decodes a raw 64-byte ed25519 private key, as loaded
// from a config file by internal/config.
func ParsePrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

// ParsePublicKey decodes a raw 32-byte ed25519 public key.
func ParsePublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("crypto: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
