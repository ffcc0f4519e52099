package voynich

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jacklund/voynich/identity"
	"github.com/jacklund/voynich/telemetry"
	"github.com/jacklund/voynich/wire"
	"github.com/stretchr/testify/require"
)

func testSessionConfig() Config {
	cfg := DefaultConfig()
	cfg.HandshakeDeadline = 2 * time.Second
	return cfg
}

func establishSessions(t *testing.T) (initiator, responder *Session) {
	t.Helper()

	alice, err := identity.GenerateLongTermKeypair()
	require.NoError(t, err)
	bob, err := identity.GenerateLongTermKeypair()
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })

	type connResult struct {
		sess *Session
		err  error
	}
	initCh := make(chan connResult, 1)
	respCh := make(chan connResult, 1)

	go func() {
		s, err := Connect(context.Background(), clientConn, bob.ID(), alice, testSessionConfig(), telemetry.Nop(), nil)
		initCh <- connResult{s, err}
	}()
	go func() {
		s, err := Accept(context.Background(), serverConn, bob, testSessionConfig(), telemetry.Nop(), nil)
		respCh <- connResult{s, err}
	}()

	initRes := <-initCh
	respRes := <-respCh
	require.NoError(t, initRes.err)
	require.NoError(t, respRes.err)

	return initRes.sess, respRes.sess
}

func TestSessionSendReceiveRoundTrip(t *testing.T) {
	initiator, responder := establishSessions(t)
	defer initiator.Close()
	defer responder.Close()

	err := initiator.Send(wire.ChatMessage{Recipient: responder.PeerIdentity().ID, Body: "hello"})
	require.NoError(t, err)

	got, err := responder.Receive()
	require.NoError(t, err)
	require.Equal(t, "hello", got.Body)
	require.Equal(t, initiator.LocalIdentity().ID, got.Sender)
}

func TestSessionSenderFieldIsNeverTrusted(t *testing.T) {
	initiator, responder := establishSessions(t)
	defer initiator.Close()
	defer responder.Close()

	err := initiator.Send(wire.ChatMessage{Sender: "someone-else-entirely", Body: "spoofed sender"})
	require.NoError(t, err)

	got, err := responder.Receive()
	require.NoError(t, err)
	require.Equal(t, initiator.LocalIdentity().ID, got.Sender)
	require.NotEqual(t, "someone-else-entirely", got.Sender)
}

func TestSessionCloseSendsGoodbye(t *testing.T) {
	initiator, responder := establishSessions(t)
	defer responder.Close()

	require.NoError(t, initiator.Close())

	_, err := responder.Receive()
	require.ErrorIs(t, err, ErrGoodbye)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	initiator, responder := establishSessions(t)
	defer responder.Close()

	require.NoError(t, initiator.Close())
	require.NoError(t, initiator.Close())
}

func TestSessionSendAfterCloseFails(t *testing.T) {
	initiator, responder := establishSessions(t)
	defer responder.Close()

	require.NoError(t, initiator.Close())
	err := initiator.Send(wire.ChatMessage{Body: "too late"})
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionDrainStopsAtGoodbye(t *testing.T) {
	initiator, responder := establishSessions(t)
	defer responder.Close()

	go func() {
		_ = initiator.Send(wire.ChatMessage{Body: "one"})
		_ = initiator.Send(wire.ChatMessage{Body: "two"})
		_ = initiator.Close()
	}()

	err := responder.Drain(2 * time.Second)
	require.NoError(t, err)
}

func TestSessionClosesOnAEADAuthFailure(t *testing.T) {
	initiator, responder := establishSessions(t)
	defer initiator.Close()
	defer responder.Close()

	ciphertext, err := initiator.send.Seal(wire.Encode(&wire.ChatMessage{Body: "tampered"}))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xFF // corrupt the auth tag

	require.NoError(t, wire.WriteFrame(initiator.conn, ciphertext, initiator.cfg.MaxFrameSize))

	_, err = responder.Receive()
	require.Error(t, err)
	var f *Failure
	require.ErrorAs(t, err, &f)
	require.Equal(t, FailureAuthentication, f.Kind)

	// The session must not let a second call reuse the channel or
	// transport after a declared-fatal failure.
	_, err = responder.Receive()
	require.ErrorIs(t, err, ErrSessionClosed)

	err = responder.Send(wire.ChatMessage{Body: "after failure"})
	require.ErrorIs(t, err, ErrSessionClosed)

	// The underlying connection must actually have been dropped, not
	// just flagged closed at the Session level.
	_, err = responder.conn.Write([]byte("x"))
	require.Error(t, err)
}

func TestConnectCancellationClosesConnAndUnblocks(t *testing.T) {
	alice, err := identity.GenerateLongTermKeypair()
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	cfg := testSessionConfig()
	cfg.HandshakeDeadline = time.Minute // only cancellation should end this

	go func() {
		buf := make([]byte, 4096)
		_, _ = serverConn.Read(buf) // absorb the KeyExchange, never answer
	}()

	ctx, cancel := context.WithCancel(context.Background())
	resCh := make(chan error, 1)
	go func() {
		_, err := Connect(ctx, clientConn, "bob", alice, cfg, telemetry.Nop(), nil)
		resCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-resCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not unblock within 2s of context cancellation")
	}

	_, err = clientConn.Write([]byte("x"))
	require.Error(t, err, "conn should have been closed on cancellation")
}

func TestConnectWrongIdentityFails(t *testing.T) {
	alice, err := identity.GenerateLongTermKeypair()
	require.NoError(t, err)
	bob, err := identity.GenerateLongTermKeypair()
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		_, _ = Accept(context.Background(), serverConn, bob, testSessionConfig(), telemetry.Nop(), nil)
	}()

	_, err = Connect(context.Background(), clientConn, "not-actually-bob", alice, testSessionConfig(), telemetry.Nop(), nil)
	require.Error(t, err)
	var f *Failure
	require.ErrorAs(t, err, &f)
	require.Equal(t, FailureIdentityMismatch, f.Kind)
}
