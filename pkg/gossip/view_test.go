package gossip

import (
	"math/rand/v2"
	"testing"

	"pgregory.net/rapid"
)

func newTestRNG() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestViewSeedExcludesSelf(t *testing.T) {
	v := newView("self:1")
	v.seed([]Peer{{Address: "self:1"}, {Address: "peer:2"}})
	if len(v.peers) != 1 || v.peers[0].Address != "peer:2" {
		t.Fatalf("expected only peer:2 in view, got %v", v.peers)
	}
}

func TestViewGetPeerDrainsQueueFirst(t *testing.T) {
	v := newView("self:1")
	v.peers = []Peer{{Address: "a"}, {Address: "b"}}
	v.queue = []Peer{{Address: "b"}}
	rng := newTestRNG()

	p, ok := v.getPeer(rng)
	if !ok || p.Address != "b" {
		t.Fatalf("expected queued peer b first, got %+v ok=%v", p, ok)
	}
	if len(v.queue) != 0 {
		t.Fatalf("expected queue drained, got %v", v.queue)
	}

	// Queue now empty; falls back to random selection from peers.
	p, ok = v.getPeer(rng)
	if !ok {
		t.Fatalf("expected a peer from the view")
	}
}

func TestViewSelectMergeDedupesKeepsFreshest(t *testing.T) {
	v := newView("self:1")
	v.peers = []Peer{{Address: "a", Age: 5}}
	rng := newTestRNG()
	v.selectMerge(30, 3, 12, []Peer{{Address: "a", Age: 1}}, rng)

	if len(v.peers) != 1 {
		t.Fatalf("expected one entry for a, got %d", len(v.peers))
	}
	if v.peers[0].Age != 1 {
		t.Fatalf("expected freshest (lowest) age kept, got %d", v.peers[0].Age)
	}
}

func TestViewSelectMergeExcludesHostAddress(t *testing.T) {
	v := newView("self:1")
	rng := newTestRNG()
	v.selectMerge(30, 3, 12, []Peer{{Address: "self:1"}, {Address: "other:2"}}, rng)

	for _, p := range v.peers {
		if p.Address == "self:1" {
			t.Fatalf("host address leaked into view: %v", v.peers)
		}
	}
	if len(v.peers) != 1 {
		t.Fatalf("expected exactly one peer admitted, got %d", len(v.peers))
	}
}

func TestViewBuildBufferIncludesSelf(t *testing.T) {
	v := newView("self:1")
	for i := 0; i < 10; i++ {
		v.peers = append(v.peers, NewPeer(string(rune('a'+i))))
	}
	rng := newTestRNG()
	buf := v.buildBuffer("self:1", 30, 3, rng)
	if len(buf) == 0 || buf[0].Address != "self:1" {
		t.Fatalf("expected buffer to start with self, got %v", buf)
	}
}

func TestViewRemoveAtRandomConvergesToLimit(t *testing.T) {
	v := newView("self:1")
	for i := 0; i < 50; i++ {
		v.peers = append(v.peers, NewPeer(string(rune(i))))
	}
	rng := newTestRNG()
	v.removeAtRandom(30, rng)
	if len(v.peers) != 30 {
		t.Fatalf("expected view trimmed to 30, got %d", len(v.peers))
	}
}

// TestViewSelectMergeNeverExceedsViewSize is a property test: no matter the
// starting view, buffer contents, or c/h/s parameters, selectMerge must
// never leave more than c peers in the view.
func TestViewSelectMergeNeverExceedsViewSize(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := rapid.IntRange(1, 40).Draw(t, "c")
		h := rapid.IntRange(0, c).Draw(t, "h")
		s := rapid.IntRange(0, c).Draw(t, "s")
		startCount := rapid.IntRange(0, 60).Draw(t, "startCount")
		bufferCount := rapid.IntRange(0, 60).Draw(t, "bufferCount")

		v := newView("self")
		for i := 0; i < startCount; i++ {
			v.peers = append(v.peers, Peer{Address: rapid.StringMatching(`p[0-9]{1,3}`).Draw(t, "addr"), Age: uint16(rapid.IntRange(0, 1000).Draw(t, "age"))})
		}
		buffer := make([]Peer, 0, bufferCount)
		for i := 0; i < bufferCount; i++ {
			buffer = append(buffer, Peer{Address: rapid.StringMatching(`p[0-9]{1,3}`).Draw(t, "bufAddr"), Age: uint16(rapid.IntRange(0, 1000).Draw(t, "bufAge"))})
		}

		rng := rand.New(rand.NewPCG(uint64(startCount), uint64(bufferCount)))
		v.selectMerge(c, h, s, buffer, rng)

		if len(v.peers) > c {
			t.Fatalf("view exceeded c=%d after merge: len=%d", c, len(v.peers))
		}

		seen := make(map[string]bool, len(v.peers))
		for _, p := range v.peers {
			if p.Address == "self" {
				t.Fatalf("host address present in view after merge")
			}
			if seen[p.Address] {
				t.Fatalf("duplicate address %s after merge", p.Address)
			}
			seen[p.Address] = true
		}
	})
}
