package voynich

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jacklund/voynich/cryptoops"
	"github.com/jacklund/voynich/identity"
	"github.com/jacklund/voynich/metrics"
	"github.com/jacklund/voynich/telemetry"
	"github.com/jacklund/voynich/transport"
	"github.com/jacklund/voynich/wire"
)

// Session is one established, authenticated secure channel. It owns the
// underlying transport and the two per-direction AEAD channels a
// completed handshake produced. All reads and writes are framed,
// padded, and encrypted; nothing on this type ever inspects or trusts
// unauthenticated wire data.
//
// A Session is safe for concurrent Send and Receive from two different
// goroutines, but not for concurrent calls to the same method.
type Session struct {
	conn   transport.Conn
	send   *cryptoops.Channel
	recv   *cryptoops.Channel
	local  identity.OnionIdentity
	peer   identity.OnionIdentity
	cfg    Config
	log    telemetry.Logger
	reg    *metrics.Registry

	sendMu sync.Mutex
	recvMu sync.Mutex

	closeOnce  sync.Once
	closedFlag atomic.Bool
	goodbyeIn  bool // only touched while holding recvMu
}

func newSession(conn transport.Conn, local, peer identity.OnionIdentity, send, recv *cryptoops.Channel, cfg Config, log telemetry.Logger, reg *metrics.Registry) *Session {
	log = log.WithComponent("session").WithPeer(peer.ID)
	reg.SessionOpened()
	return &Session{
		conn:  conn,
		send:  send,
		recv:  recv,
		local: local,
		peer:  peer,
		cfg:   cfg,
		log:   log,
		reg:   reg,
	}
}

// PeerIdentity returns the authenticated identity of the remote side, as
// established during the handshake. This is the only identity a caller
// should ever attribute an inbound ChatMessage to; the message's own
// Sender field is application-supplied and is never authoritative.
func (s *Session) PeerIdentity() identity.OnionIdentity { return s.peer }

// LocalIdentity returns this side's own identity.
func (s *Session) LocalIdentity() identity.OnionIdentity { return s.local }

// Send encrypts and frames one chat message and writes it to the
// transport. The Sender field is overwritten with the local
// authenticated onion id before encoding, since the wire value is what
// the peer will (correctly) treat as informational only.
func (s *Session) Send(msg wire.ChatMessage) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closedFlag.Load() {
		return ErrSessionClosed
	}

	msg.Sender = s.local.ID
	return s.sendFrame(&msg)
}

// sendFrame seals and writes any wire.Message under the send channel.
// Callers must hold sendMu.
func (s *Session) sendFrame(msg wire.Message) error {
	if s.cfg.IdleSessionDeadline > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.IdleSessionDeadline)); err != nil {
			return fail(FailureTransportIO, err)
		}
	}

	plaintext := wire.Encode(msg)
	ciphertext, err := s.send.Seal(plaintext)
	if err != nil {
		return s.fatal(FailureNonceExhaustion, err)
	}

	if err := wire.WriteFrame(s.conn, ciphertext, s.cfg.MaxFrameSize); err != nil {
		return s.fatal(FailureTransportIO, err)
	}

	s.reg.FrameSent(s.peer.ID)
	return nil
}

// Receive reads, authenticates, and decodes the next post-handshake
// message. A peer-initiated ChatGoodbye surfaces as ErrGoodbye so the
// caller can finish draining and then Close; any framing, AEAD, or
// structural failure is fatal and the Session should be abandoned.
func (s *Session) Receive() (wire.ChatMessage, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	var zero wire.ChatMessage
	if s.goodbyeIn || s.closedFlag.Load() {
		return zero, ErrSessionClosed
	}

	if s.cfg.IdleSessionDeadline > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleSessionDeadline)); err != nil {
			return zero, fail(FailureTransportIO, err)
		}
	}

	ciphertext, err := wire.ReadFrame(s.conn, s.cfg.MaxFrameSize)
	if err != nil {
		return zero, s.fatalNotify(FailureFraming, err)
	}

	plaintext, err := s.recv.Open(ciphertext)
	if err != nil {
		return zero, s.fatalNotify(FailureAuthentication, err)
	}

	msg, err := wire.Decode(plaintext)
	if err != nil {
		return zero, s.fatalNotify(FailureSerialization, err)
	}

	s.reg.FrameReceived(s.peer.ID)

	switch m := msg.(type) {
	case *wire.ChatMessage:
		m.Sender = s.peer.ID
		return *m, nil
	case *wire.ChatGoodbyeMessage:
		s.goodbyeIn = true
		return zero, ErrGoodbye
	case *wire.ErrorMessage:
		// The peer already told us; no need to notify back.
		return zero, s.fatal(FailureProtocol, fmt.Errorf("peer reported error %d: %s", m.Code, m.Message))
	default:
		return zero, s.fatalNotify(FailureProtocol, fmt.Errorf("unexpected post-handshake message type %T", m))
	}
}

// Drain reads and discards messages until the peer's goodbye arrives,
// for callers that want a clean half-close instead of abandoning unread
// frames. It returns nil once ErrGoodbye has been observed.
// readDeadline is checked before each read: once it has passed, Drain
// returns ErrTimeoutDraining. A read already waiting on the peer is not
// interrupted by it.
func (s *Session) Drain(readDeadline time.Duration) error {
	deadline := time.Now().Add(readDeadline)
	for {
		if time.Now().After(deadline) {
			return ErrTimeoutDraining
		}
		_, err := s.Receive()
		if err == ErrGoodbye {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Close sends a best-effort ChatGoodbye and closes the underlying
// transport. Safe to call more than once; only the first call has any
// effect.
func (s *Session) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.sendMu.Lock()
		s.closedFlag.Store(true)
		_ = s.sendFrame(&wire.ChatGoodbyeMessage{})
		s.sendMu.Unlock()

		s.reg.SessionClosed()
		s.log.Debug().Msg("session closed")
		closeErr = s.conn.Close()
	})
	return closeErr
}

// fatal wraps err as a Failure, logs it, marks the session closed so
// further Send/Receive calls short-circuit instead of reusing
// compromised AEAD state, and drops the underlying connection outright,
// matching the teacher's isClosed-checked-on-every-call pattern.
func (s *Session) fatal(kind FailureKind, err error) error {
	s.closedFlag.Store(true)
	wrapped := fail(kind, err)
	s.log.Warn().Err(wrapped).Msg("session failure")
	_ = s.conn.Close()
	return wrapped
}

// fatalNotify is fatal for call sites on the receive path: it also
// makes one best-effort attempt, under sendMu and before the
// connection is dropped, to tell the peer why.
func (s *Session) fatalNotify(kind FailureKind, err error) error {
	s.sendMu.Lock()
	errMsg := &wire.ErrorMessage{Code: uint16(kind), Message: err.Error()}
	if ciphertext, sealErr := s.send.Seal(wire.Encode(errMsg)); sealErr == nil {
		_ = wire.WriteFrame(s.conn, ciphertext, s.cfg.MaxFrameSize)
	}
	s.sendMu.Unlock()

	return s.fatal(kind, err)
}
