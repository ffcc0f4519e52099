// Package cryptoops implements the cryptographic components of the
// handshake and secure channel: ephemeral key agreement, transcript
// signing/verification, and the AEAD channel.
package cryptoops

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// SessionKeySize is the AEAD key length the key-derivation step produces.
const SessionKeySize = chacha20poly1305.KeySize

var (
	// ErrContributoryBehavior is returned when an ECDH computation yields
	// the all-zero curve point, a low-order-point / contributory-behavior
	// failure.
	ErrContributoryBehavior = errors.New("cryptoops: ecdh output is the all-zero point")
	// ErrInvalidPeerPublicKey is returned when a peer-supplied ephemeral
	// public key has the wrong length.
	ErrInvalidPeerPublicKey = errors.New("cryptoops: invalid ephemeral public key length")
)

// EphemeralKeyPair is a freshly generated X25519 key-agreement keypair.
// It is created once per session per side and its private half is wiped
// as soon as the shared secret has been derived.
type EphemeralKeyPair struct {
	private [32]byte
	public  [32]byte
	wiped   bool
}

// GenerateEphemeralKeyPair creates a fresh ephemeral X25519 keypair.
func GenerateEphemeralKeyPair() (*EphemeralKeyPair, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("cryptoops: generate ephemeral key: %w", err)
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("cryptoops: derive ephemeral public key: %w", err)
	}
	kp := &EphemeralKeyPair{private: priv}
	copy(kp.public[:], pub)
	return kp, nil
}

// PublicKey returns the keypair's public half, to be sent to the peer.
func (kp *EphemeralKeyPair) PublicKey() []byte {
	out := make([]byte, 32)
	copy(out, kp.public[:])
	return out
}

// Wipe zeroes the private key material. Safe to call more than once.
func (kp *EphemeralKeyPair) Wipe() {
	if kp.wiped {
		return
	}
	for i := range kp.private {
		kp.private[i] = 0
	}
	kp.wiped = true
}

var allZero32 [32]byte

// DeriveSharedSecret performs X25519 ECDH between the local ephemeral
// private key and a peer-supplied ephemeral public key, rejecting the
// contributory-behavior all-zero output.
func DeriveSharedSecret(kp *EphemeralKeyPair, peerPublic []byte) ([]byte, error) {
	if kp.wiped {
		return nil, errors.New("cryptoops: ephemeral private key already wiped")
	}
	if len(peerPublic) != 32 {
		return nil, ErrInvalidPeerPublicKey
	}
	secret, err := curve25519.X25519(kp.private[:], peerPublic)
	if err != nil {
		// With 32-byte inputs X25519 fails only when the output would be
		// the all-zero point.
		return nil, fmt.Errorf("%w: %v", ErrContributoryBehavior, err)
	}
	if subtle.ConstantTimeCompare(secret, allZero32[:]) == 1 {
		return nil, ErrContributoryBehavior
	}
	return secret, nil
}

// DeriveSessionKey derives a fixed-length symmetric key from the shared
// secret via HKDF, with empty salt and the fixed domain-separation label
// as info.
func DeriveSessionKey(sharedSecret []byte, infoLabel string) ([]byte, error) {
	reader := hkdf.New(sha256.New, sharedSecret, nil, []byte(infoLabel))
	key := make([]byte, SessionKeySize)
	if _, err := reader.Read(key); err != nil {
		return nil, fmt.Errorf("cryptoops: hkdf expand: %w", err)
	}
	return key, nil
}

// Wipe zeroes a byte slice in place, for shared secrets and derived
// material that must not outlive their use.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
