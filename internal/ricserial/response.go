package ricserial

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Response subtypes, carried in the flags position of a response envelope
const (
	SubtypeText  byte = 0x00
	SubtypeJSON  byte = 0x03
	SubtypeError byte = 0xFF
)

const okText = "OK"

// ResponseKind identifies the response shape
type ResponseKind int

const (
	RespOK ResponseKind = iota
	RespValue
	RespJSON
	RespError
)

func (k ResponseKind) String() string {
	switch k {
	case RespOK:
		return "ok"
	case RespValue:
		return "value"
	case RespJSON:
		return "json"
	case RespError:
		return "error"
	default:
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
}

// Response is what the emulator sends back for one Command
type Response struct {
	ID   byte
	Kind ResponseKind
	// Text holds the value for RespValue and the message for RespError
	Text string
	// Data holds the document for RespJSON
	Data any
}

func OK(id byte) Response { return Response{ID: id, Kind: RespOK} }

func Value(id byte, text string) Response { return Response{ID: id, Kind: RespValue, Text: text} }

func JSONResponse(id byte, data any) Response { return Response{ID: id, Kind: RespJSON, Data: data} }

func Error(id byte, msg string) Response { return Response{ID: id, Kind: RespError, Text: msg} }

// Encode serializes the response into an envelope with its checksum
func (r Response) Encode() ([]byte, error) {
	var subtype byte
	var body []byte

	switch r.Kind {
	case RespOK:
		subtype, body = SubtypeText, []byte(okText+"\x00")
	case RespValue:
		subtype, body = SubtypeText, []byte(r.Text+"\x00")
	case RespJSON:
		b, err := json.Marshal(r.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal json response: %w", err)
		}
		subtype, body = SubtypeJSON, b
	case RespError:
		subtype, body = SubtypeError, []byte(r.Text+"\x00")
	default:
		return nil, fmt.Errorf("unknown response kind %d", int(r.Kind))
	}

	content := make([]byte, 0, headerSize+len(body))
	content = append(content, r.ID, MsgTypeResponse, subtype)
	content = append(content, body...)
	return wrap(content), nil
}

// DecodeResponse parses a generated response envelope and verifies its checksum.
// A text body of exactly "OK" decodes as RespOK, any other text as RespValue.
func DecodeResponse(payload []byte) (Response, error) {
	content, ok := unwrap(payload)
	if !ok || len(content) < headerSize+1 {
		return Response{}, ErrBadEnvelope
	}

	sum := content[len(content)-1]
	content = content[:len(content)-1]
	if Checksum(content) != sum {
		return Response{}, fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrChecksum, sum, Checksum(content))
	}

	id, subtype, body := content[0], content[2], content[headerSize:]

	switch subtype {
	case SubtypeJSON:
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return Response{}, fmt.Errorf("%w: bad json body: %v", ErrBadEnvelope, err)
		}
		return JSONResponse(id, v), nil
	case SubtypeError:
		return Error(id, cString(body)), nil
	default:
		text := cString(body)
		if text == okText {
			return OK(id), nil
		}
		return Value(id, text), nil
	}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0x00); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
