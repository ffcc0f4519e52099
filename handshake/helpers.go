package handshake

import (
	"errors"
	"os"

	"github.com/jacklund/voynich/cryptoops"
	"github.com/jacklund/voynich/wire"
)

func writeMessage(w interface {
	Write(p []byte) (int, error)
}, maxFrameSize uint32, msg wire.Message) error {
	return wire.WriteFrame(w, wire.Encode(msg), maxFrameSize)
}

func readMessage(r interface {
	Read(p []byte) (int, error)
}, maxFrameSize uint32) (wire.Message, error) {
	payload, err := wire.ReadFrame(r, maxFrameSize)
	if err != nil {
		return nil, err
	}
	return wire.Decode(payload)
}

func isDeadlineExceeded(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// sendErrorBestEffort writes one Error frame describing a locally
// detected fatal failure before the caller tears down the transport.
// The write is not awaited for success; a peer that is already gone
// simply never sees it.
func sendErrorBestEffort(w interface {
	Write(p []byte) (int, error)
}, maxFrameSize uint32, cause error) {
	_ = writeMessage(w, maxFrameSize, &wire.ErrorMessage{
		Code:    errorCode(cause),
		Message: cause.Error(),
	})
}

// errorCode assigns a small stable numeric code per failure category,
// mirroring failureKind's classification.
func errorCode(err error) uint16 {
	switch failureKind(err) {
	case "framing":
		return 1
	case "serialization":
		return 2
	case "protocol":
		return 3
	case "key_agreement":
		return 4
	case "signature":
		return 5
	case "identity_mismatch":
		return 6
	case "timeout":
		return 7
	default:
		return 0
	}
}

// failureKind classifies an error from Run into the same label strings
// voynich.FailureKind.String() produces, for metrics labeling without an
// import cycle back to the root package.
func failureKind(err error) string {
	switch {
	case errors.Is(err, wire.ErrFrameTooLarge), errors.Is(err, wire.ErrFrameTruncated):
		return "framing"
	case errors.Is(err, wire.ErrUnknownTag), errors.Is(err, wire.ErrTruncatedMessage):
		return "serialization"
	case errors.Is(err, ErrDoubleFrame), errors.Is(err, ErrForbiddenFrame), errors.Is(err, ErrPeerReportedError):
		return "protocol"
	case errors.Is(err, cryptoops.ErrContributoryBehavior), errors.Is(err, cryptoops.ErrInvalidPeerPublicKey):
		return "key_agreement"
	case errors.Is(err, cryptoops.ErrSignatureVerification):
		return "signature"
	case errors.Is(err, ErrIdentityMismatch):
		return "identity_mismatch"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "transport_io"
	}
}
