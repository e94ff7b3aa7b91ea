package ws

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Opcode is the 4-bit WebSocket frame type
type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

const (
	finBit  = 0x80
	maskBit = 0x80

	len16Code = 126
	len64Code = 127
)

// MaxPayloadCeiling caps every frame payload, including when no limit is configured
const MaxPayloadCeiling = 64 << 20

var (
	// ErrFrameTooLarge is returned when a frame announces a payload above the configured limit
	ErrFrameTooLarge = errors.New("websocket frame exceeds size limit")
	// ErrBadLength is returned for 64-bit lengths with the most significant bit set
	ErrBadLength = errors.New("websocket frame length has the most significant bit set")
)

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("opcode(0x%x)", byte(o))
	}
}

// IsControl reports whether the opcode is a control frame (close, ping, pong)
func (o Opcode) IsControl() bool {
	return o&0x08 != 0
}

// Frame is one WebSocket message. Fragments are not reassembled, every
// frame is handed to the caller as a complete message.
type Frame struct {
	Final   bool
	Opcode  Opcode
	Masked  bool
	Payload []byte
}

// ReadFrame decodes the next frame from r, unmasking the payload if the peer masked it.
// A short read anywhere in the frame (peer gone mid-frame) yields io.EOF so callers can
// treat it as an orderly disconnect. maxPayload <= 0 or above MaxPayloadCeiling falls back
// to MaxPayloadCeiling.
func ReadFrame(r io.Reader, maxPayload int64) (*Frame, error) {
	var header [2]byte
	if err := readFull(r, header[:]); err != nil {
		return nil, err
	}

	f := &Frame{
		Final:  header[0]&finBit != 0,
		Opcode: Opcode(header[0] & 0x0F),
		Masked: header[1]&maskBit != 0,
	}

	length := uint64(header[1] & 0x7F)
	switch length {
	case len16Code:
		var ext [2]byte
		if err := readFull(r, ext[:]); err != nil {
			return nil, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case len64Code:
		var ext [8]byte
		if err := readFull(r, ext[:]); err != nil {
			return nil, err
		}
		length = binary.BigEndian.Uint64(ext[:])
		if length>>63 != 0 {
			return nil, ErrBadLength
		}
	}

	limit := maxPayload
	if limit <= 0 || limit > MaxPayloadCeiling {
		limit = MaxPayloadCeiling
	}
	if length > uint64(limit) {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, length, limit)
	}

	var key [4]byte
	if f.Masked {
		if err := readFull(r, key[:]); err != nil {
			return nil, err
		}
	}

	f.Payload = make([]byte, length)
	if err := readFull(r, f.Payload); err != nil {
		return nil, err
	}

	if f.Masked {
		MaskBytes(key, f.Payload)
	}

	return f, nil
}

// EncodeFrame builds a final, unmasked frame. Server frames are never masked.
func EncodeFrame(payload []byte, op Opcode) []byte {
	buf := appendHeader(make([]byte, 0, 10+len(payload)), op, false, len(payload))
	return append(buf, payload...)
}

// EncodeMaskedFrame builds a final frame masked with key, the way a client sends it
func EncodeMaskedFrame(payload []byte, op Opcode, key [4]byte) []byte {
	buf := appendHeader(make([]byte, 0, 14+len(payload)), op, true, len(payload))
	buf = append(buf, key[:]...)
	start := len(buf)
	buf = append(buf, payload...)
	MaskBytes(key, buf[start:])
	return buf
}

// WriteFrame encodes payload as a single unmasked frame and writes it to w
func WriteFrame(w io.Writer, payload []byte, op Opcode) error {
	if _, err := w.Write(EncodeFrame(payload, op)); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", op, err)
	}
	return nil
}

// MaskBytes XORs b in place with key; byte i uses key[i%4]. Masking is its own inverse.
func MaskBytes(key [4]byte, b []byte) {
	for i := range b {
		b[i] ^= key[i%4]
	}
}

func appendHeader(buf []byte, op Opcode, masked bool, n int) []byte {
	buf = append(buf, finBit|byte(op&0x0F))

	var mask byte
	if masked {
		mask = maskBit
	}

	switch {
	case n < len16Code:
		buf = append(buf, mask|byte(n))
	case n <= 0xFFFF:
		buf = append(buf, mask|len16Code)
		buf = binary.BigEndian.AppendUint16(buf, uint16(n))
	default:
		buf = append(buf, mask|len64Code)
		buf = binary.BigEndian.AppendUint64(buf, uint64(n))
	}
	return buf
}

// readFull maps every short read to io.EOF
func readFull(r io.Reader, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if _, err := io.ReadFull(r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return err
	}
	return nil
}
