package gossip

import "testing"

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	msg := HeaderMessage{Sender: "a:1", MessageType: Request, Headers: []string{"d1", "d2"}}
	frame, err := encodeFrame(tagHeader, msg)
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}

	tag, body, err := decodeFrame(frame)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if tag != tagHeader {
		t.Fatalf("expected tagHeader, got 0x%02x", tag)
	}

	var decoded HeaderMessage
	if err := defaultCodec.Decode(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Sender != msg.Sender || len(decoded.Headers) != 2 {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestDecodeFrameRejectsEmpty(t *testing.T) {
	if _, _, err := decodeFrame(nil); err == nil {
		t.Fatalf("expected error for empty frame")
	}
}

func TestDecodeFrameMasksLowerNibble(t *testing.T) {
	frame := []byte{tagContent | 0x03, 0xa0} // lower nibble reserved bits set
	tag, _, err := decodeFrame(frame)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if tag != tagContent {
		t.Fatalf("expected masked tag tagContent, got 0x%02x", tag)
	}
}
