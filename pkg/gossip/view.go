package gossip

import (
	"math/rand/v2"
	"sort"
)

// view is a node's bounded local sample of the network: the peers slice
// (length <= viewSize, no duplicate addresses, host address never present)
// plus a FIFO of peers newly admitted since the application last drained it
// via getPeer. It is owned by exactly one peerSamplingService and is always
// accessed under that service's lock.
type view struct {
	hostAddress string
	peers       []Peer
	queue       []Peer
}

func newView(hostAddress string) *view {
	return &view{hostAddress: hostAddress}
}

// seed filters out the host's own address and installs the remainder as
// the initial peer set. Called once, before the first sampling tick.
func (v *view) seed(initial []Peer) {
	for _, p := range initial {
		if p.Address != v.hostAddress {
			v.peers = append(v.peers, p)
		}
	}
}

// selectPeer uniformly picks a random peer from the view, or reports none.
func (v *view) selectPeer(rng *rand.Rand) (Peer, bool) {
	if len(v.peers) == 0 {
		return Peer{}, false
	}
	return v.peers[rng.IntN(len(v.peers))], true
}

// getPeer pops the oldest undelivered peer from the queue; if the queue is
// empty it falls back to a uniformly-random peer from the view.
func (v *view) getPeer(rng *rand.Rand) (Peer, bool) {
	if len(v.queue) > 0 {
		p := v.queue[0]
		v.queue = v.queue[1:]
		return p, true
	}
	return v.selectPeer(rng)
}

func (v *view) snapshot() []Peer {
	return clonePeers(v.peers)
}

// permute randomly reorders the view in place.
func (v *view) permute(rng *rand.Rand) {
	rng.Shuffle(len(v.peers), func(i, j int) {
		v.peers[i], v.peers[j] = v.peers[j], v.peers[i]
	})
}

// moveOldestToEnd stably moves the h oldest peers (by age, descending) to
// the tail of the view, leaving the rest in their current relative order.
func (v *view) moveOldestToEnd(h int) {
	if h <= 0 || len(v.peers) <= h {
		return
	}
	oldest := clonePeers(v.peers)
	sort.SliceStable(oldest, func(i, j int) bool { return oldest[i].Age > oldest[j].Age })
	oldest = oldest[:h]

	isOldest := make(map[string]bool, h)
	for _, p := range oldest {
		isOldest[p.Address] = true
	}

	head := make([]Peer, 0, len(v.peers)-h)
	tail := make([]Peer, 0, h)
	for _, p := range v.peers {
		if isOldest[p.Address] {
			tail = append(tail, p)
		} else {
			head = append(head, p)
		}
	}
	v.peers = append(head, tail...)
}

// head returns the first min(c/2-1, len) peers of the view.
func (v *view) head(c int) []Peer {
	count := c/2 - 1
	if count > len(v.peers) {
		count = len(v.peers)
	}
	if count < 0 {
		count = 0
	}
	return clonePeers(v.peers[:count])
}

// increaseAge increments the age of every peer in the view by 1, saturating.
func (v *view) increaseAge() {
	for i := range v.peers {
		v.peers[i].incrementAge()
	}
}

// buildBuffer implements the buffer-construction procedure shared by the
// outbound push cycle and the inbound pull response: permute, move the h
// oldest to the tail, then take [self] ++ head(c).
func (v *view) buildBuffer(selfAddress string, c, h int, rng *rand.Rand) []Peer {
	v.permute(rng)
	v.moveOldestToEnd(h)
	buffer := make([]Peer, 0, 1+c/2)
	buffer = append(buffer, NewPeer(selfAddress))
	buffer = append(buffer, v.head(c)...)
	return buffer
}

// selectMerge runs the canonical SELECT(c, h, s, buffer) algorithm in the
// exact required order: append, dedup-by-freshest-age, remove old, remove
// head, remove at random, then resync the application queue.
func (v *view) selectMerge(c, h, s int, buffer []Peer, rng *rand.Rand) {
	for _, p := range buffer {
		if p.Address != v.hostAddress {
			v.peers = append(v.peers, p)
		}
	}
	v.removeDuplicates()
	v.removeOldItems(c, h)
	v.removeHead(c, s)
	v.removeAtRandom(c, rng)
	v.updateQueue()
}

// removeDuplicates groups peers by address and keeps the entry with the
// smallest age (the freshest observation) for each address.
func (v *view) removeDuplicates() {
	best := make(map[string]Peer, len(v.peers))
	order := make([]string, 0, len(v.peers))
	for _, p := range v.peers {
		existing, ok := best[p.Address]
		if !ok {
			order = append(order, p.Address)
			best[p.Address] = p
			continue
		}
		if p.Age < existing.Age {
			best[p.Address] = p
		}
	}
	deduped := make([]Peer, 0, len(order))
	for _, addr := range order {
		deduped = append(deduped, best[addr])
	}
	v.peers = deduped
}

// removeOldItems ejects min(h, over) peers with the largest ages, where
// over = max(0, len-c). Ties are broken by position: a stable sort keeps
// equal-age peers in their original relative order, and the oldest
// removalCount entries of that order are the ones ejected. Addresses are
// unique at this point (removeDuplicates already ran).
func (v *view) removeOldItems(c, h int) {
	over := len(v.peers) - c
	if over < 0 {
		over = 0
	}
	removalCount := min(h, over)
	if removalCount <= 0 {
		return
	}
	byAgeDesc := clonePeers(v.peers)
	sort.SliceStable(byAgeDesc, func(i, j int) bool { return byAgeDesc[i].Age > byAgeDesc[j].Age })

	removeAddr := make(map[string]bool, removalCount)
	for _, p := range byAgeDesc[:removalCount] {
		removeAddr[p.Address] = true
	}
	newPeers := make([]Peer, 0, len(v.peers)-removalCount)
	for _, p := range v.peers {
		if !removeAddr[p.Address] {
			newPeers = append(newPeers, p)
		}
	}
	v.peers = newPeers
}

// removeHead drops min(s, over) peers from the front of the view, where
// over = max(0, len-c).
func (v *view) removeHead(c, s int) {
	over := len(v.peers) - c
	if over < 0 {
		over = 0
	}
	removalCount := min(s, over)
	if removalCount > 0 {
		v.peers = v.peers[removalCount:]
	}
}

// removeAtRandom uniformly removes peers one at a time until len <= c.
func (v *view) removeAtRandom(c int, rng *rand.Rand) {
	for len(v.peers) > c {
		idx := rng.IntN(len(v.peers))
		v.peers = append(v.peers[:idx], v.peers[idx+1:]...)
	}
}

// updateQueue appends newly-present peers to the queue (FIFO among
// additions) and drops queued peers no longer present in the view.
func (v *view) updateQueue() {
	present := make(map[string]bool, len(v.peers))
	for _, p := range v.peers {
		present[p.Address] = true
	}
	queued := make(map[string]bool, len(v.queue))
	for _, p := range v.queue {
		queued[p.Address] = true
	}

	filtered := make([]Peer, 0, len(v.queue))
	for _, p := range v.queue {
		if present[p.Address] {
			filtered = append(filtered, p)
		}
	}
	for _, p := range v.peers {
		if !queued[p.Address] {
			filtered = append(filtered, p)
		}
	}
	v.queue = filtered
}
