package voynich

import "time"

// Config holds the enumerated external configuration of §6. Loading it
// from disk, a flag set, or an environment is the job of an external
// collaborator; this module only consumes the finished values.
type Config struct {
	// MaxFrameSize is the hard cap on any incoming frame, handshake or
	// post-handshake.
	MaxFrameSize uint32
	// HandshakeDeadline is the wall-clock duration allowed for a
	// handshake to reach Ready, starting from the first byte sent or
	// received.
	HandshakeDeadline time.Duration
	// PaddingBlockSize is the AEAD plaintext padding granularity.
	PaddingBlockSize int
	// HKDFInfoLabel is the fixed domain-separation label used to derive
	// the session key. It is a protocol constant, not user-tunable in
	// production; DefaultConfig sets it and callers should not normally
	// override it.
	HKDFInfoLabel string
	// IdleSessionDeadline, if non-zero, closes a Session that has sent
	// or received nothing for this long.
	IdleSessionDeadline time.Duration
}

const defaultHKDFInfoLabel = "voynich-session-key-v1"

// DefaultConfig returns the library's default configuration.
func DefaultConfig() Config {
	return Config{
		MaxFrameSize:        1 << 20, // 1 MiB
		HandshakeDeadline:   30 * time.Second,
		PaddingBlockSize:    256,
		HKDFInfoLabel:       defaultHKDFInfoLabel,
		IdleSessionDeadline: 0,
	}
}
