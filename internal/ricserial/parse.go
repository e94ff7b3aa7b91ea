package ricserial

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Parse decodes a request envelope. It never fails: anything that does not fit
// one of the known shapes falls back to Binary or Unknown.
func Parse(payload []byte) Command {
	content, ok := unwrap(payload)
	if !ok || len(content) < headerSize {
		return Unknown{Raw: append([]byte(nil), payload...)}
	}

	id, msgType, flags := content[0], content[1], content[2]
	body := content[headerSize:]

	if flags == FlagRest {
		if end := bytes.IndexByte(body, 0x00); end >= 0 {
			return Rest{ID: id, Path: strings.ToValidUTF8(string(body[:end]), "")}
		}
	}

	if flags == FlagJSON {
		if data, ok := decodeJSONBody(content); ok {
			return JSON{ID: id, Data: data}
		}
	}

	return Binary{
		ID:      id,
		Subtype: msgType,
		Flags:   flags,
		Data:    append([]byte(nil), body...),
	}
}

// decodeJSONBody strips the trailing checksum when it matches the header and body,
// otherwise the whole body is tried so peers that omit the checksum still parse.
func decodeJSONBody(content []byte) (any, bool) {
	body := content[headerSize:]
	if n := len(body); n > 0 && Checksum(content[:len(content)-1]) == body[n-1] {
		if v, ok := unmarshalJSON(body[:n-1]); ok {
			return v, true
		}
	}
	return unmarshalJSON(body)
}

func unmarshalJSON(b []byte) (any, bool) {
	if len(b) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(strings.ToValidUTF8(string(b), "")), &v); err != nil {
		return nil, false
	}
	return v, true
}

// EncodeCommand builds a request envelope, the inverse of Parse
func EncodeCommand(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case Rest:
		content := []byte{c.ID, MsgTypeRequest, FlagRest}
		content = append(content, c.Path...)
		content = append(content, 0x00)
		return wrap(content), nil
	case JSON:
		body, err := json.Marshal(c.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal json command: %w", err)
		}
		content := append([]byte{c.ID, MsgTypeRequest, FlagJSON}, body...)
		return wrap(content), nil
	case Binary:
		content := append([]byte{c.ID, c.Subtype, c.Flags}, c.Data...)
		return wrap(content), nil
	case Unknown:
		return append([]byte(nil), c.Raw...), nil
	default:
		return nil, fmt.Errorf("%w: unsupported command %T", ErrBadEnvelope, cmd)
	}
}
