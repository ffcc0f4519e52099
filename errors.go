package voynich

import "errors"

// FailureKind classifies a fatal error by the §7 error-handling table, so
// callers and logs can distinguish causes without string-matching.
type FailureKind int

const (
	// FailureUnknown is the zero value; it should not appear on an actual
	// error returned by this module.
	FailureUnknown FailureKind = iota
	// FailureTransportIO covers read/write/close failures on the
	// underlying transport.
	FailureTransportIO
	// FailureFraming covers length/truncation violations in the framing
	// codec.
	FailureFraming
	// FailureSerialization covers unknown tags or malformed structural
	// encodings.
	FailureSerialization
	// FailureProtocol covers handshake protocol violations: wrong frame,
	// double frame, invalid state transition.
	FailureProtocol
	// FailureKeyAgreement covers zero-point or malformed-key failures in
	// ECDH.
	FailureKeyAgreement
	// FailureSignature covers signature verification failures.
	FailureSignature
	// FailureIdentityMismatch covers a dialed id that does not match the
	// presented id, or an id that is not derivable from the presented
	// long-term key.
	FailureIdentityMismatch
	// FailureTimeout covers handshake deadline expiry.
	FailureTimeout
	// FailureAuthentication covers AEAD authentication-tag failures.
	FailureAuthentication
	// FailureNonceExhaustion covers nonce-counter exhaustion.
	FailureNonceExhaustion
)

// String renders a FailureKind for logs and metrics labels.
func (k FailureKind) String() string {
	switch k {
	case FailureTransportIO:
		return "transport_io"
	case FailureFraming:
		return "framing"
	case FailureSerialization:
		return "serialization"
	case FailureProtocol:
		return "protocol"
	case FailureKeyAgreement:
		return "key_agreement"
	case FailureSignature:
		return "signature"
	case FailureIdentityMismatch:
		return "identity_mismatch"
	case FailureTimeout:
		return "timeout"
	case FailureAuthentication:
		return "authentication"
	case FailureNonceExhaustion:
		return "nonce_exhaustion"
	default:
		return "unknown"
	}
}

// Failure is a fatal error tagged with a FailureKind, wrapping the
// underlying cause.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return f.Kind.String() + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(kind FailureKind, err error) error {
	return &Failure{Kind: kind, Err: err}
}

// ErrGoodbye is returned by Session.Receive when the peer has sent a
// ChatGoodbye frame. It is a graceful half-close, not a Failure.
var ErrGoodbye = errors.New("voynich: peer sent goodbye")

// ErrSessionClosed is returned by Session.Receive/Send after the session
// has been closed locally or the peer's goodbye has been fully drained.
var ErrSessionClosed = errors.New("voynich: session closed")

// ErrTimeoutDraining is returned by Session.Drain when the caller's
// deadline has passed before the peer's goodbye was read.
var ErrTimeoutDraining = errors.New("voynich: timed out draining session")
