// Package transport implements the §6 transport contract: a bidirectional
// reliable byte stream with read, write, close, and deadlines. The onion
// routing substrate itself is out of scope; this package only adapts
// concrete byte streams (TCP, WebSocket) to the contract this module
// consumes.
package transport

import "time"

// Conn is the byte-stream contract the handshake and Session consume.
// No transport-level metadata is trusted beyond whatever remote
// identifier the caller supplies out of band when dialing.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}
