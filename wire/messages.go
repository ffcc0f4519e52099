package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Tag identifies the structural type of an encoded message.
type Tag byte

const (
	TagKeyExchange Tag = iota + 1
	TagIdentify
	TagChat
	TagChatGoodbye
	TagError
)

// ErrUnknownTag is returned when decoding encounters a tag byte that does
// not correspond to any known variant.
var ErrUnknownTag = errors.New("wire: unknown message tag")

// ErrTruncatedMessage is returned when a structural field runs past the
// end of the buffer being decoded.
var ErrTruncatedMessage = errors.New("wire: truncated message body")

// Message is any of the five structural variants the handshake and
// session exchange.
type Message interface {
	Tag() Tag
	encode() []byte
}

// KeyExchangeMessage carries one side's ephemeral public key.
type KeyExchangeMessage struct {
	EphemeralPublic []byte
}

func (m *KeyExchangeMessage) Tag() Tag { return TagKeyExchange }

func (m *KeyExchangeMessage) encode() []byte {
	var buf []byte
	buf = appendBytes(buf, m.EphemeralPublic)
	return buf
}

// IdentifyMessage carries a side's onion id, long-term public key, and a
// signature over the handshake transcript.
type IdentifyMessage struct {
	OnionID        string
	LongTermPublic []byte
	Signature      []byte
}

func (m *IdentifyMessage) Tag() Tag { return TagIdentify }

func (m *IdentifyMessage) encode() []byte {
	var buf []byte
	buf = appendString(buf, m.OnionID)
	buf = appendBytes(buf, m.LongTermPublic)
	buf = appendBytes(buf, m.Signature)
	return buf
}

// ChatMessage is the application payload exchanged post-handshake.
type ChatMessage struct {
	Sender    string
	Recipient string
	Timestamp int64
	Body      string
}

func (m *ChatMessage) Tag() Tag { return TagChat }

func (m *ChatMessage) encode() []byte {
	var buf []byte
	buf = appendString(buf, m.Sender)
	buf = appendString(buf, m.Recipient)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(m.Timestamp))
	buf = append(buf, ts[:]...)
	buf = appendString(buf, m.Body)
	return buf
}

// ChatGoodbyeMessage signals a clean half-close; it carries no fields.
type ChatGoodbyeMessage struct{}

func (m *ChatGoodbyeMessage) Tag() Tag        { return TagChatGoodbye }
func (m *ChatGoodbyeMessage) encode() []byte { return nil }

// ErrorMessage is an optional, best-effort diagnostic sent before close.
type ErrorMessage struct {
	Code    uint16
	Message string
}

func (m *ErrorMessage) Tag() Tag { return TagError }

func (m *ErrorMessage) encode() []byte {
	var buf []byte
	var code [2]byte
	binary.BigEndian.PutUint16(code[:], m.Code)
	buf = append(buf, code[:]...)
	buf = appendString(buf, m.Message)
	return buf
}

// Encode renders a Message to its wire bytes: one tag byte followed by
// the variant's structural encoding.
func Encode(m Message) []byte {
	body := m.encode()
	out := make([]byte, 0, 1+len(body))
	out = append(out, byte(m.Tag()))
	out = append(out, body...)
	return out
}

// Decode parses a tag byte followed by a variant's structural encoding.
// Unknown tags return ErrUnknownTag.
func Decode(data []byte) (Message, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty message", ErrTruncatedMessage)
	}
	tag := Tag(data[0])
	body := data[1:]

	switch tag {
	case TagKeyExchange:
		pub, _, err := readBytes(body)
		if err != nil {
			return nil, err
		}
		return &KeyExchangeMessage{EphemeralPublic: pub}, nil
	case TagIdentify:
		id, rest, err := readString(body)
		if err != nil {
			return nil, err
		}
		pub, rest, err := readBytes(rest)
		if err != nil {
			return nil, err
		}
		sig, _, err := readBytes(rest)
		if err != nil {
			return nil, err
		}
		return &IdentifyMessage{OnionID: id, LongTermPublic: pub, Signature: sig}, nil
	case TagChat:
		sender, rest, err := readString(body)
		if err != nil {
			return nil, err
		}
		recipient, rest, err := readString(rest)
		if err != nil {
			return nil, err
		}
		if len(rest) < 8 {
			return nil, fmt.Errorf("%w: chat timestamp", ErrTruncatedMessage)
		}
		ts := int64(binary.BigEndian.Uint64(rest[:8]))
		rest = rest[8:]
		bodyText, _, err := readString(rest)
		if err != nil {
			return nil, err
		}
		return &ChatMessage{Sender: sender, Recipient: recipient, Timestamp: ts, Body: bodyText}, nil
	case TagChatGoodbye:
		return &ChatGoodbyeMessage{}, nil
	case TagError:
		if len(body) < 2 {
			return nil, fmt.Errorf("%w: error code", ErrTruncatedMessage)
		}
		code := binary.BigEndian.Uint16(body[:2])
		msg, _, err := readString(body[2:])
		if err != nil {
			return nil, err
		}
		return &ErrorMessage{Code: code, Message: msg}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
}

func appendBytes(buf []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, b...)
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func readBytes(data []byte) (value []byte, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("%w: length prefix", ErrTruncatedMessage)
	}
	n := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	if uint64(n) > uint64(len(data)) {
		return nil, nil, fmt.Errorf("%w: field of %d bytes", ErrTruncatedMessage, n)
	}
	value = make([]byte, n)
	copy(value, data[:n])
	return value, data[n:], nil
}

func readString(data []byte) (value string, rest []byte, err error) {
	b, rest, err := readBytes(data)
	if err != nil {
		return "", nil, err
	}
	return string(b), rest, nil
}
