package cryptoops

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrNonceExhausted is returned when a direction's counter has reached
	// its maximum value; the session must terminate before any reuse.
	ErrNonceExhausted = errors.New("cryptoops: nonce counter exhausted")
	// ErrAuthenticationFailed is returned when AEAD decryption fails the
	// authentication tag check.
	ErrAuthenticationFailed = errors.New("cryptoops: aead authentication failed")
	// ErrMalformedPadding is returned when the decrypted plaintext's
	// length prefix is out of range for the buffer it came from.
	ErrMalformedPadding = errors.New("cryptoops: malformed plaintext padding")
)

// Channel is a single direction's worth of AEAD state: ChaCha20-Poly1305
// keyed by the session key, with an independent monotonic nonce counter
// per direction. The counter is never transmitted; it is derived purely
// from local state on both ends, so encryption and decryption always use
// the locally expected next value and can never go out of order.
type Channel struct {
	aead         cipher.AEAD
	counter      uint64
	paddingBlock int
}

// NewChannel constructs a Channel over a derived session key.
// paddingBlockSize must be at least 1.
func NewChannel(sessionKey []byte, paddingBlockSize int) (*Channel, error) {
	if paddingBlockSize < 1 {
		return nil, errors.New("cryptoops: padding block size must be >= 1")
	}
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("cryptoops: construct aead: %w", err)
	}
	return &Channel{aead: aead, paddingBlock: paddingBlockSize}, nil
}

func (c *Channel) nonce() ([]byte, error) {
	if c.counter == math.MaxUint64 {
		return nil, ErrNonceExhausted
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[chacha20poly1305.NonceSize-8:], c.counter)
	return nonce, nil
}

// Seal pads plaintext to the next multiple of the padding block size
// (with an explicit 4-byte big-endian length prefix ahead of the real
// bytes) and then encrypts it under the current send nonce, incrementing
// the counter on success. The counter is never incremented on failure.
func (c *Channel) Seal(plaintext []byte) ([]byte, error) {
	nonce, err := c.nonce()
	if err != nil {
		return nil, err
	}

	padded, err := padPlaintext(plaintext, c.paddingBlock)
	if err != nil {
		return nil, err
	}

	ciphertext := c.aead.Seal(nil, nonce, padded, nil)
	c.counter++
	return ciphertext, nil
}

// Open decrypts and authenticates ciphertext under the current receive
// nonce, strips padding, and returns the original plaintext. The counter
// is incremented only on a successful authenticate-and-unpad.
func (c *Channel) Open(ciphertext []byte) ([]byte, error) {
	nonce, err := c.nonce()
	if err != nil {
		return nil, err
	}

	padded, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	plaintext, err := unpadPlaintext(padded)
	if err != nil {
		return nil, err
	}

	c.counter++
	return plaintext, nil
}

func padPlaintext(plaintext []byte, block int) ([]byte, error) {
	total := 4 + len(plaintext)
	rem := total % block
	padLen := 0
	if rem != 0 {
		padLen = block - rem
	}
	out := make([]byte, total+padLen)
	binary.BigEndian.PutUint32(out[:4], uint32(len(plaintext)))
	copy(out[4:4+len(plaintext)], plaintext)
	if padLen > 0 {
		if _, err := rand.Read(out[4+len(plaintext):]); err != nil {
			return nil, fmt.Errorf("cryptoops: generate padding: %w", err)
		}
	}
	return out, nil
}

func unpadPlaintext(padded []byte) ([]byte, error) {
	if len(padded) < 4 {
		return nil, ErrMalformedPadding
	}
	realLen := binary.BigEndian.Uint32(padded[:4])
	if int(realLen) > len(padded)-4 {
		return nil, ErrMalformedPadding
	}
	return padded[4 : 4+realLen], nil
}
