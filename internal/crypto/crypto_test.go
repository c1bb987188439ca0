package crypto_test

import (
	"testing"

	"github.com/quorumlabs/bftraft/internal/crypto"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv := crypto.DeterministicKeyPair("node-a")
	ring := crypto.NewKeyRing(priv)
	ring.Register("node-a", pub)

	payload := []byte(`{"term":3}`)
	sig := ring.Sign(payload)

	if !ring.Verify("node-a", payload, sig) {
		t.Fatal("expected signature to verify against its own registered key")
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	pub, priv := crypto.DeterministicKeyPair("node-a")
	ring := crypto.NewKeyRing(priv)
	ring.Register("node-a", pub)

	sig := ring.Sign([]byte("original"))

	if ring.Verify("node-a", []byte("tampered"), sig) {
		t.Fatal("expected verification to fail for a payload that wasn't signed")
	}
}

func TestVerifyRejectsUnregisteredID(t *testing.T) {
	_, priv := crypto.DeterministicKeyPair("node-a")
	ring := crypto.NewKeyRing(priv)

	sig := ring.Sign([]byte("payload"))

	if ring.Verify("node-unknown", []byte("payload"), sig) {
		t.Fatal("expected verification to fail for an id with no registered key")
	}
}

func TestDeterministicKeyPairIsStable(t *testing.T) {
	pub1, priv1 := crypto.DeterministicKeyPair("seed-123")
	pub2, priv2 := crypto.DeterministicKeyPair("seed-123")

	if string(pub1) != string(pub2) {
		t.Fatal("DeterministicKeyPair should return the same public key for the same seed")
	}
	if string(priv1) != string(priv2) {
		t.Fatal("DeterministicKeyPair should return the same private key for the same seed")
	}

	pub3, _ := crypto.DeterministicKeyPair("seed-456")
	if string(pub1) == string(pub3) {
		t.Fatal("different seeds should not collide")
	}
}

func TestParsePrivateKeyRejectsWrongLength(t *testing.T) {
	if _, err := crypto.ParsePrivateKey([]byte("too-short")); err == nil {
		t.Fatal("expected an error for a malformed private key")
	}
}
