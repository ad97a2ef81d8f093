package gossip

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// contentCompressor compresses and decompresses update content with zstd.
// Encoders and decoders are expensive to build, so each is created once
// and reused; both are safe for concurrent use.
type contentCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	once    sync.Once
	initErr error
}

func newContentCompressor() *contentCompressor {
	return &contentCompressor{}
}

func (c *contentCompressor) init() {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		c.initErr = fmt.Errorf("gossip: build zstd encoder: %w", err)
		return
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		c.initErr = fmt.Errorf("gossip: build zstd decoder: %w", err)
		return
	}
	c.encoder = enc
	c.decoder = dec
}

func (c *contentCompressor) compress(content []byte) ([]byte, error) {
	c.once.Do(c.init)
	if c.initErr != nil {
		return nil, c.initErr
	}
	return c.encoder.EncodeAll(content, make([]byte, 0, len(content))), nil
}

func (c *contentCompressor) decompress(content []byte) ([]byte, error) {
	c.once.Do(c.init)
	if c.initErr != nil {
		return nil, c.initErr
	}
	out, err := c.decoder.DecodeAll(content, nil)
	if err != nil {
		return nil, fmt.Errorf("gossip: zstd decode: %w", err)
	}
	return out, nil
}
