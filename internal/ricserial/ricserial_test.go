package ricserial

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseRest(t *testing.T) {
	payload := []byte{Delim, 7, MsgTypeRequest, FlagRest}
	payload = append(payload, "traj/walk?stepLength=25"...)
	payload = append(payload, 0x00, 0x55, Delim)

	cmd := Parse(payload)
	rest, ok := cmd.(Rest)
	if !ok {
		t.Fatalf("expected Rest, got %T", cmd)
	}
	if rest.ID != 7 {
		t.Fatalf("expected id 7, got %d", rest.ID)
	}
	if rest.Path != "traj/walk?stepLength=25" {
		t.Fatalf("unexpected path %q", rest.Path)
	}
}

func TestParseRestDropsInvalidUTF8(t *testing.T) {
	payload := []byte{Delim, 1, 0, FlagRest, 'b', 0xFF, 'a', 't', 0x00, Delim}
	rest, ok := Parse(payload).(Rest)
	if !ok {
		t.Fatalf("expected Rest")
	}
	if rest.Path != "bat" {
		t.Fatalf("expected invalid bytes dropped, got %q", rest.Path)
	}
}

func TestParseRestWithoutNULIsBinary(t *testing.T) {
	payload := []byte{Delim, 3, 0x01, FlagRest, 'a', 'b', Delim}
	bin, ok := Parse(payload).(Binary)
	if !ok {
		t.Fatalf("expected Binary")
	}
	if bin.ID != 3 || bin.Subtype != 0x01 || bin.Flags != FlagRest {
		t.Fatalf("unexpected header %+v", bin)
	}
	if !bytes.Equal(bin.Data, []byte("ab")) {
		t.Fatalf("unexpected data %q", bin.Data)
	}
}

func TestParseJSONWithChecksum(t *testing.T) {
	payload, err := EncodeCommand(JSON{ID: 42, Data: map[string]any{"cmdName": "subscription"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cmd, ok := Parse(payload).(JSON)
	if !ok {
		t.Fatalf("expected JSON, got %T", Parse(payload))
	}
	if cmd.ID != 42 {
		t.Fatalf("expected id 42, got %d", cmd.ID)
	}
	m, ok := cmd.Data.(map[string]any)
	if !ok || m["cmdName"] != "subscription" {
		t.Fatalf("unexpected data %#v", cmd.Data)
	}
}

func TestParseJSONWithoutChecksum(t *testing.T) {
	payload := []byte{Delim, 9, MsgTypeRequest, FlagJSON}
	payload = append(payload, `{"cmdName":"x"}`...)
	payload = append(payload, Delim)

	cmd, ok := Parse(payload).(JSON)
	if !ok {
		t.Fatalf("expected JSON for checksum-less body")
	}
	if cmd.Data.(map[string]any)["cmdName"] != "x" {
		t.Fatalf("unexpected data %#v", cmd.Data)
	}
}

func TestParseBadJSONFallsThroughToBinary(t *testing.T) {
	payload := []byte{Delim, 5, 0x01, FlagJSON, '{', 'n', 'o', Delim}
	bin, ok := Parse(payload).(Binary)
	if !ok {
		t.Fatalf("expected Binary fallback")
	}
	if bin.ID != 5 || bin.Flags != FlagJSON {
		t.Fatalf("unexpected binary %+v", bin)
	}
}

func TestParseUnknown(t *testing.T) {
	cases := map[string][]byte{
		"empty":           {},
		"single":          {Delim},
		"no start delim":  {0x00, 1, 2, 3, Delim},
		"no end delim":    {Delim, 1, 2, 3, 0x00},
		"short header":    {Delim, 1, 2, Delim},
		"only delimiters": {Delim, Delim},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			cmd := Parse(payload)
			if cmd.Kind() != KindUnknown {
				t.Fatalf("expected unknown, got %s", cmd.Kind())
			}
			if !bytes.Equal(cmd.(Unknown).Raw, payload) {
				t.Fatalf("raw payload not preserved")
			}
		})
	}
}

func TestEncodeCommandRoundTrip(t *testing.T) {
	cmds := []Command{
		Rest{ID: 1, Path: "v2/battery"},
		Binary{ID: 2, Subtype: 0x10, Flags: 0x01, Data: []byte{1, 2, 3}},
	}
	for _, want := range cmds {
		payload, err := EncodeCommand(want)
		if err != nil {
			t.Fatalf("encode %T: %v", want, err)
		}
		got := Parse(payload)
		if got.Kind() != want.Kind() || got.MsgID() != want.MsgID() {
			t.Fatalf("round trip mismatch: %#v -> %#v", want, got)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	cases := []Response{
		OK(3),
		Value(4, "8.40"),
		JSONResponse(5, map[string]any{"rslt": "ok", "subscribed": true}),
		Error(6, "Unknown command"),
	}
	for _, want := range cases {
		payload, err := want.Encode()
		if err != nil {
			t.Fatalf("encode %s: %v", want.Kind, err)
		}
		got, err := DecodeResponse(payload)
		if err != nil {
			t.Fatalf("decode %s: %v", want.Kind, err)
		}
		if got.Kind != want.Kind || got.ID != want.ID || got.Text != want.Text {
			t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
		}
	}
}

func TestOKWireFormat(t *testing.T) {
	payload, err := OK(0x11).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body := []byte{0x11, MsgTypeResponse, SubtypeText, 'O', 'K', 0x00}
	want := append([]byte{Delim}, body...)
	want = append(want, Checksum(body), Delim)
	if !bytes.Equal(payload, want) {
		t.Fatalf("want % x, got % x", want, payload)
	}
}

func TestJSONResponseIsCompact(t *testing.T) {
	payload, err := JSONResponse(1, map[string]float64{"x": 0.05}).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body := payload[4 : len(payload)-2]
	if string(body) != `{"x":0.05}` {
		t.Fatalf("unexpected json body %q", body)
	}
	if payload[3] != SubtypeJSON {
		t.Fatalf("expected json subtype, got 0x%02x", payload[3])
	}
}

func TestChecksum(t *testing.T) {
	payload, err := Value(9, "8.39").Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	content := payload[1 : len(payload)-2]
	sum := payload[len(payload)-2]
	if Checksum(content) != sum {
		t.Fatalf("checksum byte 0x%02x does not match xor 0x%02x", sum, Checksum(content))
	}

	corrupted := append([]byte(nil), payload...)
	corrupted[5] ^= 0x01
	if Checksum(corrupted[1:len(corrupted)-2]) == sum {
		t.Fatalf("corrupting a byte did not change the checksum")
	}
	if _, err := DecodeResponse(corrupted); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
}

func TestDecodeResponseRejectsMissingDelimiters(t *testing.T) {
	if _, err := DecodeResponse([]byte{1, 2, 3, 4, 5}); !errors.Is(err, ErrBadEnvelope) {
		t.Fatalf("expected ErrBadEnvelope, got %v", err)
	}
}
