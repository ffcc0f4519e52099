package cryptoops

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jacklund/voynich/identity"
	"lukechampine.com/blake3"
)

// Transcript is the handshake material hashed once and signed by each
// side. It binds the signature to the session's shared secret and to the
// responder's onion id, the one identity value both sides already hold
// the instant the shared secret is available (the initiator dialed it;
// the responder trivially knows its own id) — see DESIGN.md for why the
// initiator's onion id is deliberately not a hashed input here.
type Transcript struct {
	ResponderOnionID string
	SharedSecret     []byte
}

// Hash computes H = hash(transcript), length-prefixing each field so the
// encoding is unambiguous.
func (t Transcript) Hash() []byte {
	h := blake3.New(32, nil)
	writeLP(h, []byte(t.ResponderOnionID))
	writeLP(h, t.SharedSecret)
	return h.Sum(nil)
}

func writeLP(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	h.Write(lenBuf[:])
	h.Write(b)
}

// ErrSignatureVerification is returned when a peer's Identify signature
// fails to verify under their presented long-term public key.
var ErrSignatureVerification = errors.New("cryptoops: signature verification failed")

// Sign produces sig_i = Sign(H || own_onion_id) under the local long-term
// keypair.
func Sign(kp *identity.LongTermKeypair, transcript Transcript) []byte {
	h := transcript.Hash()
	toSign := make([]byte, 0, len(h)+len(kp.ID()))
	toSign = append(toSign, h...)
	toSign = append(toSign, []byte(kp.ID())...)
	return kp.Sign(toSign)
}

// Verify recomputes H from the locally-known transcript, reconstructs
// to_sign_peer = H || peerOnionID, and verifies sig under peerPublicKey.
func Verify(transcript Transcript, peerOnionID string, peerPublicKey ed25519.PublicKey, sig []byte) error {
	h := transcript.Hash()
	toSign := make([]byte, 0, len(h)+len(peerOnionID))
	toSign = append(toSign, h...)
	toSign = append(toSign, []byte(peerOnionID)...)
	if !identity.Verify(peerPublicKey, toSign, sig) {
		return fmt.Errorf("%w: onion id %q", ErrSignatureVerification, peerOnionID)
	}
	return nil
}
