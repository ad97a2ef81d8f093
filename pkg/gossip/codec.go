package gossip

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// codec encodes and decodes message bodies. The reference encoding is CBOR;
// any self-describing, schema-evolvable format can be substituted by
// implementing this interface, per the protocol's wire format requirements.
type codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() *cborCodec {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("gossip: invalid cbor encode options: %v", err))
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("gossip: invalid cbor decode options: %v", err))
	}
	return &cborCodec{enc: enc, dec: dec}
}

func (c *cborCodec) Encode(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c *cborCodec) Decode(data []byte, v any) error {
	return c.dec.Unmarshal(data, v)
}

var defaultCodec = newCBORCodec()

// encodeFrame prepends the protocol tag byte to the codec-encoded body.
func encodeFrame(tag byte, body any) ([]byte, error) {
	encoded, err := defaultCodec.Encode(body)
	if err != nil {
		return nil, fmt.Errorf("gossip: encode body: %w", err)
	}
	frame := make([]byte, 0, len(encoded)+1)
	frame = append(frame, tag)
	frame = append(frame, encoded...)
	return frame, nil
}

// decodeFrame splits the leading protocol tag from the body and reports the
// masked tag alongside the remaining bytes.
func decodeFrame(frame []byte) (tag byte, body []byte, err error) {
	if len(frame) == 0 {
		return 0, nil, fmt.Errorf("gossip: empty frame")
	}
	return frame[0] & tagMask, frame[1:], nil
}
