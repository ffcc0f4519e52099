// Package wire implements the length-delimited framing codec (component A)
// and the typed-message structural serialization (component B).
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const frameHeaderSize = 4

var (
	// ErrFrameTooLarge is returned when a frame's declared or actual
	// length exceeds the configured maximum.
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")
	// ErrFrameTruncated is returned when the transport closes or errors
	// before a complete frame has been read.
	ErrFrameTruncated = errors.New("wire: frame truncated before completion")
)

// WriteFrame writes payload as len:u32be || bytes. It returns
// ErrFrameTooLarge without writing anything if payload exceeds
// maxFrameSize.
func WriteFrame(w io.Writer, payload []byte, maxFrameSize uint32) error {
	if uint32(len(payload)) > maxFrameSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), maxFrameSize)
	}
	var hdr [frameHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one complete frame. A clean close at a frame boundary
// (zero bytes of a new header read) is reported as io.EOF; any other
// read error is reported as ErrFrameTruncated, since no complete frame
// was read. The underlying read error stays wrapped, so a deadline
// expiry is still detectable with errors.Is.
func ReadFrame(r io.Reader, maxFrameSize uint32) ([]byte, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: reading header: %w", ErrFrameTruncated, err)
	}

	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxFrameSize)
	}
	if n == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: reading payload: %w", ErrFrameTruncated, err)
	}
	return payload, nil
}
