package voynich

import (
	"context"

	"github.com/jacklund/voynich/handshake"
	"github.com/jacklund/voynich/identity"
	"github.com/jacklund/voynich/metrics"
	"github.com/jacklund/voynich/telemetry"
	"github.com/jacklund/voynich/transport"
)

// Connect dials out over an already-established transport.Conn, running
// the initiator side of the handshake and, on success, returning a
// ready Session. remoteOnionID is the onion id the caller intended to
// reach; the handshake fails with a Failure{Kind: FailureIdentityMismatch}
// if the peer presents anything else.
func Connect(ctx context.Context, conn transport.Conn, remoteOnionID string, local *identity.LongTermKeypair, cfg Config, log telemetry.Logger, reg *metrics.Registry) (*Session, error) {
	hcfg := handshakeConfig(cfg)
	driver := handshake.NewDriver(hcfg, local, handshake.RoleInitiator, remoteOnionID, log, reg)

	stop := watchCancellation(ctx, conn)
	defer stop()

	result, err := driver.Run(ctx, conn)
	if err != nil {
		return nil, translateHandshakeErr(err)
	}

	return newSession(conn, local.Identity(), result.PeerIdentity, result.SendChannel, result.RecvChannel, cfg, log, reg), nil
}
