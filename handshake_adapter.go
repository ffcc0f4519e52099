package voynich

import (
	"context"
	"errors"

	"github.com/jacklund/voynich/cryptoops"
	"github.com/jacklund/voynich/handshake"
	"github.com/jacklund/voynich/transport"
	"github.com/jacklund/voynich/wire"
)

// watchCancellation closes conn as soon as ctx is done, so a blocked
// handshake read unblocks instead of waiting out the full handshake
// deadline. The caller must invoke the returned stop func once the
// handshake is no longer in flight, so a later context cancellation
// doesn't reach back and close a conn a live Session now owns.
func watchCancellation(ctx context.Context, conn transport.Conn) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// handshakeConfig narrows a Config down to what the handshake driver
// consumes.
func handshakeConfig(cfg Config) handshake.Config {
	return handshake.Config{
		MaxFrameSize:      cfg.MaxFrameSize,
		HandshakeDeadline: cfg.HandshakeDeadline,
		PaddingBlockSize:  cfg.PaddingBlockSize,
		HKDFInfoLabel:     cfg.HKDFInfoLabel,
	}
}

// translateHandshakeErr classifies a handshake.Driver.Run error into the
// same FailureKind table callers see from Session, so a caller need not
// know whether a Failure originated during the handshake or afterward.
func translateHandshakeErr(err error) error {
	switch {
	case errors.Is(err, wire.ErrFrameTooLarge), errors.Is(err, wire.ErrFrameTruncated):
		return fail(FailureFraming, err)
	case errors.Is(err, wire.ErrUnknownTag), errors.Is(err, wire.ErrTruncatedMessage):
		return fail(FailureSerialization, err)
	case errors.Is(err, handshake.ErrDoubleFrame), errors.Is(err, handshake.ErrForbiddenFrame), errors.Is(err, handshake.ErrPeerReportedError):
		return fail(FailureProtocol, err)
	case errors.Is(err, cryptoops.ErrContributoryBehavior), errors.Is(err, cryptoops.ErrInvalidPeerPublicKey):
		return fail(FailureKeyAgreement, err)
	case errors.Is(err, cryptoops.ErrSignatureVerification):
		return fail(FailureSignature, err)
	case errors.Is(err, handshake.ErrIdentityMismatch):
		return fail(FailureIdentityMismatch, err)
	case errors.Is(err, handshake.ErrTimeout):
		return fail(FailureTimeout, err)
	default:
		return fail(FailureTransportIO, err)
	}
}
