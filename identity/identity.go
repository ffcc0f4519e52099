// Package identity implements long-term onion-service identities: Ed25519
// keypairs and the self-certifying onion id derived from a public key.
package identity

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
)

var idMagic = []byte("VOYNICH_ONION_ID_V1_SHA256")

var idEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

var (
	// ErrInvalidPrivateKey is returned when a long-term private key of the
	// wrong size is supplied to the package.
	ErrInvalidPrivateKey = errors.New("identity: invalid long-term private key length")
	// ErrInvalidPublicKey is returned when a long-term public key of the
	// wrong size is supplied to the package.
	ErrInvalidPublicKey = errors.New("identity: invalid long-term public key length")
)

// DeriveOnionID computes the onion id for a long-term Ed25519 public key.
// The id is an HMAC-SHA256 of the key, truncated and base32-encoded, so it
// reveals nothing about the key beyond the ability to verify a claimed key
// against it; it cannot be inverted back to the key.
func DeriveOnionID(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", ErrInvalidPublicKey
	}
	h := hmac.New(sha256.New, idMagic)
	h.Write(pub)
	sum := h.Sum(nil)
	return idEncoding.EncodeToString(sum[:16]), nil
}

// ValidateOnionID reports whether id is the onion id derived from pub.
func ValidateOnionID(id string, pub ed25519.PublicKey) bool {
	derived, err := DeriveOnionID(pub)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(derived), []byte(id))
}

// OnionIdentity is the public, advertisable identity of an onion service:
// its id and the long-term public key that id is bound to.
type OnionIdentity struct {
	ID        string
	PublicKey ed25519.PublicKey
}

// Equal reports whether two identities name the same id and public key.
func (a OnionIdentity) Equal(b OnionIdentity) bool {
	return a.ID == b.ID && a.PublicKey.Equal(b.PublicKey)
}

// LongTermKeypair is a service's long-term Ed25519 signing keypair together
// with the onion id derived from its public half.
type LongTermKeypair struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	id      string
}

// GenerateLongTermKeypair creates a fresh, random long-term keypair.
func GenerateLongTermKeypair() (*LongTermKeypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate long-term keypair: %w", err)
	}
	return newLongTermKeypair(pub, priv)
}

// NewLongTermKeypairFromPrivateKey rebuilds a keypair from a persisted
// Ed25519 private key (seed || public key, per crypto/ed25519).
func NewLongTermKeypairFromPrivateKey(priv ed25519.PrivateKey) (*LongTermKeypair, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivateKey
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, ErrInvalidPrivateKey
	}
	return newLongTermKeypair(pub, priv)
}

func newLongTermKeypair(pub ed25519.PublicKey, priv ed25519.PrivateKey) (*LongTermKeypair, error) {
	id, err := DeriveOnionID(pub)
	if err != nil {
		return nil, err
	}
	return &LongTermKeypair{private: priv, public: pub, id: id}, nil
}

// Identity returns the public OnionIdentity corresponding to this keypair.
func (k *LongTermKeypair) Identity() OnionIdentity {
	return OnionIdentity{ID: k.id, PublicKey: k.public}
}

// ID returns the onion id derived from the keypair's public key.
func (k *LongTermKeypair) ID() string {
	return k.id
}

// PublicKey returns the long-term Ed25519 public key.
func (k *LongTermKeypair) PublicKey() ed25519.PublicKey {
	return k.public
}

// PrivateKey returns the long-term Ed25519 private key, for persistence.
func (k *LongTermKeypair) PrivateKey() ed25519.PrivateKey {
	return k.private
}

// Sign signs data under the long-term private key.
func (k *LongTermKeypair) Sign(data []byte) []byte {
	return ed25519.Sign(k.private, data)
}

// Verify checks sig over data under a presented long-term public key.
func Verify(pub ed25519.PublicKey, data, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, data, sig)
}
