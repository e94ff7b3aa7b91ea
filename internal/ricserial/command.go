// Package ricserial implements the delimited binary envelope spoken by the robot
// over its WebSocket link ("serial over WebSocket").
//
// Every envelope has the shape
//
//	0xE7 | id | msgType | flags | body... | checksum | 0xE7
//
// where checksum is the XOR of id, msgType, flags and body. Requests come in three
// shapes selected by flags: a NUL-terminated REST path (0x00), a JSON document (0x03),
// or opaque binary data (anything else).
package ricserial

import (
	"errors"
)

const (
	// Delim starts and ends every envelope
	Delim byte = 0xE7

	// MsgTypeRequest is the msgType used for requests built by EncodeCommand
	MsgTypeRequest byte = 0x00
	// MsgTypeResponse is the msgType of every generated response
	MsgTypeResponse byte = 0x02

	FlagRest byte = 0x00
	FlagJSON byte = 0x03

	headerSize = 3
)

var (
	// ErrBadEnvelope is returned when delimiters or the fixed header are missing
	ErrBadEnvelope = errors.New("malformed envelope")
	// ErrChecksum is returned when a response checksum does not match its content
	ErrChecksum = errors.New("envelope checksum mismatch")
)

// Kind identifies a Command variant
type Kind int

const (
	KindUnknown Kind = iota
	KindRest
	KindJSON
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindRest:
		return "rest"
	case KindJSON:
		return "json"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Command is a decoded request: one of Rest, JSON, Binary or Unknown
type Command interface {
	Kind() Kind
	// MsgID is the id the peer expects to see echoed in the response
	MsgID() byte
}

// Rest is a URL-like request such as "traj/walk?stepLength=25"
type Rest struct {
	ID   byte
	Path string
}

// JSON carries an arbitrary JSON document, typically {"cmdName": ...}
type JSON struct {
	ID   byte
	Data any
}

// Binary is an opaque payload acknowledged without interpretation
type Binary struct {
	ID      byte
	Subtype byte
	Flags   byte
	Data    []byte
}

// Unknown is a payload without delimiters or too short for the fixed header
type Unknown struct {
	Raw []byte
}

func (Rest) Kind() Kind      { return KindRest }
func (c Rest) MsgID() byte   { return c.ID }
func (JSON) Kind() Kind      { return KindJSON }
func (c JSON) MsgID() byte   { return c.ID }
func (Binary) Kind() Kind    { return KindBinary }
func (c Binary) MsgID() byte { return c.ID }
func (Unknown) Kind() Kind   { return KindUnknown }

// MsgID is always zero, there is no header to take an id from
func (Unknown) MsgID() byte { return 0 }

// Checksum is the XOR of every byte in b
func Checksum(b []byte) byte {
	var c byte
	for _, x := range b {
		c ^= x
	}
	return c
}

// wrap appends the checksum of content and surrounds the result with delimiters
func wrap(content []byte) []byte {
	out := make([]byte, 0, len(content)+3)
	out = append(out, Delim)
	out = append(out, content...)
	out = append(out, Checksum(content), Delim)
	return out
}

// unwrap strips the delimiters, returning the inner content (checksum included)
func unwrap(payload []byte) ([]byte, bool) {
	if len(payload) < 2 || payload[0] != Delim || payload[len(payload)-1] != Delim {
		return nil, false
	}
	return payload[1 : len(payload)-1], true
}
