package gossip

import (
	"bytes"
	"testing"
)

func TestContentCompressorRoundTrip(t *testing.T) {
	c := newContentCompressor()
	original := bytes.Repeat([]byte("the quick brown fox "), 64)

	compressed, err := c.compress(original)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if bytes.Equal(compressed, original) {
		t.Fatalf("expected compressed output to differ from input")
	}

	decompressed, err := c.decompress(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(decompressed, original) {
		t.Fatalf("round trip mismatch")
	}
}

func TestContentCompressorDecompressRejectsGarbage(t *testing.T) {
	c := newContentCompressor()
	if _, err := c.decompress([]byte("not zstd data at all")); err == nil {
		t.Fatalf("expected error decompressing garbage")
	}
}
