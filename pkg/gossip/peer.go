package gossip

import "math"

// Peer is a participant identified by its network address. Equality and
// hashing are on address only; age is metadata carried alongside it.
type Peer struct {
	Address string `cbor:"address"`
	Age     uint16 `cbor:"age"`
}

// NewPeer returns a peer at the given address with age 0.
func NewPeer(address string) Peer {
	return Peer{Address: address}
}

// incrementAge saturates at math.MaxUint16 rather than wrapping.
func (p *Peer) incrementAge() {
	if p.Age < math.MaxUint16 {
		p.Age++
	}
}

func clonePeers(peers []Peer) []Peer {
	out := make([]Peer, len(peers))
	copy(out, peers)
	return out
}
