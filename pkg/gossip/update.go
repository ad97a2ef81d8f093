package gossip

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Update is an opaque binary update disseminated by the gossip layer.
// Digest is the sole identity: equal content implies equal digest, and the
// digest is deterministic (BLAKE3-256, hex-encoded).
type Update struct {
	Content []byte
	Digest  string
}

// NewUpdate computes the digest of content and returns the Update.
func NewUpdate(content []byte) Update {
	return Update{Content: content, Digest: digestOf(content)}
}

func digestOf(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// UpdateHandler receives updates acquired over the network. It is never
// invoked for a digest the local node itself submitted.
type UpdateHandler interface {
	OnUpdate(Update)
}

// UpdateHandlerFunc adapts a plain function to UpdateHandler.
type UpdateHandlerFunc func(Update)

func (f UpdateHandlerFunc) OnUpdate(u Update) { f(u) }
