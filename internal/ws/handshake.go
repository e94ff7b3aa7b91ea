package ws

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Mode selects how the negotiator treats upgrade requests without a Sec-WebSocket-Key
type Mode string

const (
	// ModePermissive accepts keyless requests and answers 101 without Sec-WebSocket-Accept.
	// The robot's own client library never sends a key, so this is the default.
	ModePermissive Mode = "permissive"
	// ModeStrict requires a key and rejects the request otherwise.
	ModeStrict Mode = "strict"
)

const (
	// MaxRequestBytes bounds the initial HTTP request read
	MaxRequestBytes = 4096

	acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
)

var (
	// ErrNoRequest means the peer sent nothing before the bounded read completed
	ErrNoRequest = errors.New("no handshake request received")
	// ErrMissingKey is returned in strict mode for requests without Sec-WebSocket-Key
	ErrMissingKey = errors.New("Sec-WebSocket-Key header is missing")
)

// ParseMode validates a configured handshake mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePermissive, "":
		return ModePermissive, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("unknown handshake mode %q (want %q or %q)", s, ModePermissive, ModeStrict)
	}
}

// Handshake describes a completed upgrade
type Handshake struct {
	RequestLine string
	Key         string
	Accept      string
	// Fallback is true when the keyless path was taken
	Fallback bool
	// Leftover holds bytes the peer sent after the request headers; they belong to the first frame
	Leftover []byte
}

// ComputeAccept derives Sec-WebSocket-Accept from a client key
func ComputeAccept(key string) string {
	sum := sha1.Sum([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Negotiate reads the upgrade request from rw and writes the 101 response.
// Nothing is written when the peer sends no bytes; the caller just drops the connection.
func Negotiate(rw io.ReadWriter, mode Mode) (*Handshake, error) {
	raw, leftover, err := readRequest(rw)
	if err != nil {
		return nil, err
	}

	hs := ParseRequest(raw)
	hs.Leftover = leftover

	if hs.Key == "" {
		if mode == ModeStrict {
			_, _ = io.WriteString(rw, "HTTP/1.1 400 Bad Request\r\nConnection: close\r\n\r\n")
			return hs, ErrMissingKey
		}
		hs.Fallback = true
	} else {
		hs.Accept = ComputeAccept(hs.Key)
	}

	if _, err := rw.Write(BuildResponse(hs)); err != nil {
		return hs, fmt.Errorf("failed to write handshake response: %w", err)
	}
	return hs, nil
}

// ParseRequest scans the request headers case-insensitively for Sec-WebSocket-Key
func ParseRequest(raw []byte) *Handshake {
	hs := &Handshake{}
	for i, line := range strings.Split(strings.ToValidUTF8(string(raw), ""), "\r\n") {
		if i == 0 {
			hs.RequestLine = line
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Sec-WebSocket-Key") {
			hs.Key = strings.TrimSpace(value)
			break
		}
	}
	return hs
}

// BuildResponse renders the 101 reply; the Accept header is only present when a key was sent
func BuildResponse(hs *Handshake) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	if hs.Accept != "" {
		b.WriteString("Sec-WebSocket-Accept: " + hs.Accept + "\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// readRequest reads until the blank line ending the headers, MaxRequestBytes, or EOF
func readRequest(r io.Reader) (request, leftover []byte, err error) {
	buf := make([]byte, MaxRequestBytes)
	n := 0
	for n < len(buf) {
		m, rerr := r.Read(buf[n:])
		n += m
		if end := bytes.Index(buf[:n], []byte("\r\n\r\n")); end >= 0 {
			end += 4
			return buf[:end], append([]byte(nil), buf[end:n]...), nil
		}
		if rerr != nil {
			break
		}
	}
	if n == 0 {
		return nil, nil, ErrNoRequest
	}
	return buf[:n], nil, nil
}
