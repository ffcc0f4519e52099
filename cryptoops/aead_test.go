package cryptoops

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, SessionKeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestChannelSealOpenRoundTrip(t *testing.T) {
	send, err := NewChannel(testKey(t), 64)
	require.NoError(t, err)
	recv, err := NewChannel(testKey(t), 64)
	require.NoError(t, err)

	for _, msg := range [][]byte{[]byte("hello"), []byte(""), []byte("a longer chat message body here")} {
		ct, err := send.Seal(msg)
		require.NoError(t, err)
		pt, err := recv.Open(ct)
		require.NoError(t, err)
		require.Equal(t, msg, pt)
	}
}

func TestChannelCiphertextIsPaddedToBlockMultiple(t *testing.T) {
	send, err := NewChannel(testKey(t), 64)
	require.NoError(t, err)

	ct, err := send.Seal([]byte("hi"))
	require.NoError(t, err)

	// ciphertext = padded_plaintext + 16-byte poly1305 tag.
	require.Equal(t, 0, (len(ct)-chacha20poly1305Overhead())%64)
}

func chacha20poly1305Overhead() int { return 16 }

func TestChannelTamperedCiphertextFailsAuthentication(t *testing.T) {
	send, err := NewChannel(testKey(t), 64)
	require.NoError(t, err)
	recv, err := NewChannel(testKey(t), 64)
	require.NoError(t, err)

	ct, err := send.Seal([]byte("hello"))
	require.NoError(t, err)
	ct[0] ^= 0xFF

	_, err = recv.Open(ct)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestChannelReplayedFrameFailsOnSecondDeliveryDueToCounterMismatch(t *testing.T) {
	send, err := NewChannel(testKey(t), 64)
	require.NoError(t, err)
	recv, err := NewChannel(testKey(t), 64)
	require.NoError(t, err)

	ct, err := send.Seal([]byte("hello"))
	require.NoError(t, err)

	_, err = recv.Open(ct)
	require.NoError(t, err)

	// Replaying the same ciphertext: receiver's counter has advanced, so
	// the nonce used to attempt decryption no longer matches the one it
	// was encrypted under.
	_, err = recv.Open(ct)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestChannelNonceExhaustionIsFatalBeforeReuse(t *testing.T) {
	send, err := NewChannel(testKey(t), 64)
	require.NoError(t, err)
	send.counter = ^uint64(0)

	_, err = send.Seal([]byte("last"))
	require.ErrorIs(t, err, ErrNonceExhausted)
}

func TestUnpadPlaintextRejectsOutOfRangeLength(t *testing.T) {
	bogus := make([]byte, 8)
	bogus[3] = 0xFF // length prefix claims far more bytes than present
	_, err := unpadPlaintext(bogus)
	require.ErrorIs(t, err, ErrMalformedPadding)
}
