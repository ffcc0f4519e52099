package voynich

import (
	"context"

	"github.com/jacklund/voynich/handshake"
	"github.com/jacklund/voynich/identity"
	"github.com/jacklund/voynich/metrics"
	"github.com/jacklund/voynich/telemetry"
	"github.com/jacklund/voynich/transport"
)

// Accept runs the responder side of the handshake over an
// already-accepted transport.Conn and, on success, returns a ready
// Session. The responder's own onion id is whatever local derives to;
// Accept does not know in advance which peer will connect.
func Accept(ctx context.Context, conn transport.Conn, local *identity.LongTermKeypair, cfg Config, log telemetry.Logger, reg *metrics.Registry) (*Session, error) {
	hcfg := handshakeConfig(cfg)
	driver := handshake.NewDriver(hcfg, local, handshake.RoleResponder, "", log, reg)

	stop := watchCancellation(ctx, conn)
	defer stop()

	result, err := driver.Run(ctx, conn)
	if err != nil {
		return nil, translateHandshakeErr(err)
	}

	return newSession(conn, local.Identity(), result.PeerIdentity, result.SendChannel, result.RecvChannel, cfg, log, reg), nil
}

// Listener accepts raw transport connections and runs Accept on each,
// so a caller driving a listen loop gets ready Sessions directly.
type Listener struct {
	local *identity.LongTermKeypair
	cfg   Config
	log   telemetry.Logger
	reg   *metrics.Registry
}

// NewListener constructs a Listener bound to one local identity.
func NewListener(local *identity.LongTermKeypair, cfg Config, log telemetry.Logger, reg *metrics.Registry) *Listener {
	return &Listener{local: local, cfg: cfg, log: log, reg: reg}
}

// Handle runs the responder handshake on one already-accepted
// connection. Callers typically invoke this in its own goroutine per
// accepted connection, since a stalled peer can occupy a handshake for
// up to the configured HandshakeDeadline.
func (l *Listener) Handle(ctx context.Context, conn transport.Conn) (*Session, error) {
	return Accept(ctx, conn, l.local, l.cfg, l.log, l.reg)
}
