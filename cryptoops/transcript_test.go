package cryptoops

import (
	"testing"

	"github.com/jacklund/voynich/identity"
	"github.com/stretchr/testify/require"
)

func TestTranscriptHashStableAndSensitiveToInputs(t *testing.T) {
	tr1 := Transcript{ResponderOnionID: "bob", SharedSecret: []byte("secret-bytes")}
	tr2 := Transcript{ResponderOnionID: "bob", SharedSecret: []byte("secret-bytes")}
	require.Equal(t, tr1.Hash(), tr2.Hash())

	tr3 := Transcript{ResponderOnionID: "mallory", SharedSecret: []byte("secret-bytes")}
	require.NotEqual(t, tr1.Hash(), tr3.Hash())
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	initiator, err := identity.GenerateLongTermKeypair()
	require.NoError(t, err)

	tr := Transcript{ResponderOnionID: "bob", SharedSecret: []byte("shared-secret")}
	sig := Sign(initiator, tr)

	err = Verify(tr, initiator.ID(), initiator.PublicKey(), sig)
	require.NoError(t, err)
}

func TestVerifyRejectsSignatureUnderWrongKey(t *testing.T) {
	initiator, err := identity.GenerateLongTermKeypair()
	require.NoError(t, err)
	other, err := identity.GenerateLongTermKeypair()
	require.NoError(t, err)

	tr := Transcript{ResponderOnionID: "bob", SharedSecret: []byte("shared-secret")}
	sig := Sign(initiator, tr)

	err = Verify(tr, initiator.ID(), other.PublicKey(), sig)
	require.ErrorIs(t, err, ErrSignatureVerification)
}

func TestVerifyRejectsMismatchedOnionID(t *testing.T) {
	initiator, err := identity.GenerateLongTermKeypair()
	require.NoError(t, err)

	tr := Transcript{ResponderOnionID: "bob", SharedSecret: []byte("shared-secret")}
	sig := Sign(initiator, tr)

	err = Verify(tr, "someone-else", initiator.PublicKey(), sig)
	require.ErrorIs(t, err, ErrSignatureVerification)
}
