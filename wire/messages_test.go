package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTripAllVariants(t *testing.T) {
	cases := []Message{
		&KeyExchangeMessage{EphemeralPublic: []byte{1, 2, 3, 4}},
		&IdentifyMessage{OnionID: "alice", LongTermPublic: []byte{9, 9, 9}, Signature: []byte{7, 7}},
		&ChatMessage{Sender: "alice", Recipient: "bob", Timestamp: 1234567890, Body: "hello"},
		&ChatGoodbyeMessage{},
		&ErrorMessage{Code: 42, Message: "bad handshake"},
	}

	for _, original := range cases {
		encoded := Encode(original)
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, original, decoded)
	}
}

func TestDecodeUnknownTagFails(t *testing.T) {
	_, err := Decode([]byte{0xFF})
	require.ErrorIs(t, err, ErrUnknownTag)
}

func TestDecodeEmptyFails(t *testing.T) {
	_, err := Decode(nil)
	require.ErrorIs(t, err, ErrTruncatedMessage)
}

func TestDecodeTruncatedFieldFails(t *testing.T) {
	encoded := Encode(&KeyExchangeMessage{EphemeralPublic: []byte{1, 2, 3, 4}})
	_, err := Decode(encoded[:len(encoded)-2])
	require.ErrorIs(t, err, ErrTruncatedMessage)
}

func TestChatMessageEmptyFieldsRoundTrip(t *testing.T) {
	original := &ChatMessage{Sender: "", Recipient: "", Timestamp: 0, Body: ""}
	decoded, err := Decode(Encode(original))
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}
