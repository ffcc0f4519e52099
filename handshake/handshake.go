package handshake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jacklund/voynich/cryptoops"
	"github.com/jacklund/voynich/identity"
	"github.com/jacklund/voynich/metrics"
	"github.com/jacklund/voynich/telemetry"
	"github.com/jacklund/voynich/wire"
)

var (
	// ErrDoubleFrame is returned when a KeyExchange or Identify frame is
	// received a second time in the same handshake.
	ErrDoubleFrame = errors.New("handshake: duplicate frame")
	// ErrForbiddenFrame is returned when a Chat or ChatGoodbye frame
	// arrives before Ready.
	ErrForbiddenFrame = errors.New("handshake: chat frame before ready")
	// ErrIdentityMismatch is returned when a peer's claimed onion id does
	// not match the long-term key it presented, or (initiator only) does
	// not match the dialed id.
	ErrIdentityMismatch = errors.New("handshake: peer identity mismatch")
	// ErrTimeout is returned when the handshake deadline expires before
	// reaching Ready.
	ErrTimeout = errors.New("handshake: deadline exceeded")
	// ErrPeerReportedError is returned when the peer sends an Error frame
	// during the handshake.
	ErrPeerReportedError = errors.New("handshake: peer reported error")
)

// Transport is the minimal capability the handshake driver needs from a
// connection: a readable/writable/closeable byte stream with a deadline.
// Any type satisfying this structurally (including transport.Conn) works
// here without this package importing the transport package.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
	SetDeadline(t time.Time) error
}

// Config is the subset of the library configuration the handshake needs.
type Config struct {
	MaxFrameSize      uint32
	HandshakeDeadline time.Duration
	PaddingBlockSize  int
	HKDFInfoLabel     string
}

// Result is what a successful handshake hands to the Session: the
// authenticated peer identity and one AEAD channel per direction, both
// keyed from the same derived session key but with independent nonce
// counters.
type Result struct {
	PeerIdentity identity.OnionIdentity
	SendChannel  *cryptoops.Channel
	RecvChannel  *cryptoops.Channel
	HandshakeID  string
	Duration     time.Duration
}

// Driver runs one handshake to completion in one role.
type Driver struct {
	cfg                 Config
	local               *identity.LongTermKeypair
	role                Role
	expectedPeerOnionID string // initiator only
	logger              telemetry.Logger
	metrics             *metrics.Registry
}

// NewDriver constructs a Driver. expectedPeerOnionID is the dialed onion
// id and is only meaningful (and only checked) for RoleInitiator.
func NewDriver(cfg Config, local *identity.LongTermKeypair, role Role, expectedPeerOnionID string, logger telemetry.Logger, reg *metrics.Registry) *Driver {
	return &Driver{
		cfg:                 cfg,
		local:               local,
		role:                role,
		expectedPeerOnionID: expectedPeerOnionID,
		logger:              logger,
		metrics:             reg,
	}
}

// Run drives the handshake to Ready or Failed. On success it returns a
// Result with the channels ready for Session to take over, after
// clearing the handshake deadline from conn. On any failure it returns
// a non-nil error. Ephemeral and shared-secret key
// material generated along the way is always wiped before returning.
func (d *Driver) Run(ctx context.Context, conn Transport) (result *Result, err error) {
	t := newTracker(uuid.NewString(), d.role, time.Now())
	log := d.logger.WithSession(t.ID).WithComponent("handshake")
	d.metrics.HandshakeStarted()

	cancelDone := make(chan struct{})
	defer close(cancelDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-cancelDone:
		}
	}()

	var secret []byte
	defer func() { cryptoops.Wipe(secret) }()

	defer func() {
		if err != nil {
			t.Fail(err)
			log.Warn().Err(err).Str("state", t.State.String()).Msg("handshake failed")
			d.metrics.HandshakeFailed(failureKind(err), t.Duration())
			if !errors.Is(err, ErrPeerReportedError) {
				sendErrorBestEffort(conn, d.cfg.MaxFrameSize, err)
			}
		} else {
			log.Debug().Dur("duration", t.Duration()).Msg("handshake succeeded")
			d.metrics.HandshakeSucceeded(t.Duration())
		}
	}()

	deadline := time.Now().Add(d.cfg.HandshakeDeadline)
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("handshake: set deadline: %w", err)
	}

	local, err := cryptoops.GenerateEphemeralKeyPair()
	if err != nil {
		return nil, err
	}
	defer local.Wipe()

	responderOnionID := d.responderOnionID()

	if err := writeMessage(conn, d.cfg.MaxFrameSize, &wire.KeyExchangeMessage{EphemeralPublic: local.PublicKey()}); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("handshake: %w", ctxErr)
		}
		if isDeadlineExceeded(err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("handshake: send key exchange: %w", err)
	}
	if err := t.Transition(StateAwaitingPeerKeyExchange); err != nil {
		return nil, err
	}

	var (
		sessionKey            []byte
		peerEphemeralReceived bool
		identifySent          bool
		peerIdentify          *wire.IdentifyMessage
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("handshake: %w", err)
		}

		msg, err := readMessage(conn, d.cfg.MaxFrameSize)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("handshake: %w", ctxErr)
			}
			if isDeadlineExceeded(err) {
				return nil, ErrTimeout
			}
			return nil, err
		}

		switch m := msg.(type) {
		case *wire.KeyExchangeMessage:
			if peerEphemeralReceived {
				return nil, ErrDoubleFrame
			}
			peerEphemeralReceived = true

			secret, err = cryptoops.DeriveSharedSecret(local, m.EphemeralPublic)
			if err != nil {
				return nil, err
			}
			local.Wipe()
			sessionKey, err = cryptoops.DeriveSessionKey(secret, d.cfg.HKDFInfoLabel)
			if err != nil {
				return nil, err
			}
			if err := t.Transition(StateAwaitingPeerIdentify); err != nil {
				return nil, err
			}

			tr := cryptoops.Transcript{ResponderOnionID: responderOnionID, SharedSecret: secret}
			sig := cryptoops.Sign(d.local, tr)

			if err := writeMessage(conn, d.cfg.MaxFrameSize, &wire.IdentifyMessage{
				OnionID:        d.local.ID(),
				LongTermPublic: d.local.PublicKey(),
				Signature:      sig,
			}); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, fmt.Errorf("handshake: %w", ctxErr)
				}
				if isDeadlineExceeded(err) {
					return nil, ErrTimeout
				}
				return nil, fmt.Errorf("handshake: send identify: %w", err)
			}
			identifySent = true

		case *wire.IdentifyMessage:
			if peerIdentify != nil {
				return nil, ErrDoubleFrame
			}
			peerIdentify = m

		case *wire.ChatMessage, *wire.ChatGoodbyeMessage:
			return nil, ErrForbiddenFrame

		case *wire.ErrorMessage:
			return nil, fmt.Errorf("%w: code %d: %s", ErrPeerReportedError, m.Code, m.Message)

		default:
			return nil, fmt.Errorf("handshake: unexpected message type %T", m)
		}

		if peerIdentify != nil && identifySent {
			peerIdentity, err := verifyPeerIdentify(d.role, d.expectedPeerOnionID, peerIdentify, responderOnionID, secret)
			if err != nil {
				return nil, err
			}
			if err := conn.SetDeadline(time.Time{}); err != nil {
				return nil, fmt.Errorf("handshake: clear deadline: %w", err)
			}
			return d.finish(t, peerIdentity, sessionKey)
		}
	}
}

func (d *Driver) responderOnionID() string {
	if d.role == RoleInitiator {
		return d.expectedPeerOnionID
	}
	return d.local.ID()
}

// verifyPeerIdentify checks the self-certification of the peer's claimed
// onion id against its presented key, the initiator's dialed-id
// expectation, and finally the transcript signature.
func verifyPeerIdentify(role Role, expectedPeerOnionID string, m *wire.IdentifyMessage, responderOnionID string, secret []byte) (identity.OnionIdentity, error) {
	if !identity.ValidateOnionID(m.OnionID, m.LongTermPublic) {
		return identity.OnionIdentity{}, fmt.Errorf("%w: onion id %q not derivable from presented key", ErrIdentityMismatch, m.OnionID)
	}

	if role == RoleInitiator && m.OnionID != expectedPeerOnionID {
		return identity.OnionIdentity{}, fmt.Errorf("%w: dialed %q, peer presented %q", ErrIdentityMismatch, expectedPeerOnionID, m.OnionID)
	}

	tr := cryptoops.Transcript{ResponderOnionID: responderOnionID, SharedSecret: secret}
	if err := cryptoops.Verify(tr, m.OnionID, m.LongTermPublic, m.Signature); err != nil {
		return identity.OnionIdentity{}, err
	}

	return identity.OnionIdentity{ID: m.OnionID, PublicKey: m.LongTermPublic}, nil
}

func (d *Driver) finish(t *Tracker, peerIdentity identity.OnionIdentity, sessionKey []byte) (*Result, error) {
	if err := t.Transition(StateReady); err != nil {
		return nil, err
	}
	sendCh, err := cryptoops.NewChannel(sessionKey, d.cfg.PaddingBlockSize)
	if err != nil {
		return nil, err
	}
	recvCh, err := cryptoops.NewChannel(sessionKey, d.cfg.PaddingBlockSize)
	if err != nil {
		return nil, err
	}
	return &Result{
		PeerIdentity: peerIdentity,
		SendChannel:  sendCh,
		RecvChannel:  recvCh,
		HandshakeID:  t.ID,
		Duration:     t.Duration(),
	}, nil
}
