package gossip

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeSender records every frame sent, keyed by destination address.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentFrame
	fail bool
}

type sentFrame struct {
	address string
	frame   []byte
}

func (f *fakeSender) send(ctx context.Context, address string, frame []byte) error {
	if f.fail {
		return errUnknownProtocolTag
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentFrame{address: address, frame: frame})
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestPeerSamplingServiceMergeDiscovered(t *testing.T) {
	p := newPeerSamplingService("self:1", DefaultPeerSamplingConfig(), &fakeSender{}, nil, testLogger())
	p.mergeDiscovered([]string{"a:1", "b:2"})

	peers := p.peers()
	if len(peers) != 2 {
		t.Fatalf("expected 2 peers merged, got %d", len(peers))
	}
}

func TestPeerSamplingServiceMergeDiscoveredIgnoresEmpty(t *testing.T) {
	p := newPeerSamplingService("self:1", DefaultPeerSamplingConfig(), &fakeSender{}, nil, testLogger())
	p.mergeDiscovered(nil)
	if len(p.peers()) != 0 {
		t.Fatalf("expected no peers")
	}
}

func TestPeerSamplingServiceGetPeerEmptyView(t *testing.T) {
	p := newPeerSamplingService("self:1", DefaultPeerSamplingConfig(), &fakeSender{}, nil, testLogger())
	if _, ok := p.getPeer(); ok {
		t.Fatalf("expected no peer in an empty view")
	}
}

func TestPeerSamplingServiceHandleInboundRequestRepliesWhenPullEnabled(t *testing.T) {
	cfg := DefaultPeerSamplingConfig()
	cfg.Pull = true
	sender := &fakeSender{}
	p := newPeerSamplingService("self:1", cfg, sender, nil, testLogger())
	p.view.seed([]Peer{{Address: "other:2"}})

	msg := newSamplingMessage("other:2", Request, []Peer{{Address: "third:3"}})
	p.handleInbound(context.Background(), msg)

	if sender.count() != 1 {
		t.Fatalf("expected a pull response sent, got %d sends", sender.count())
	}
}

func TestPeerSamplingServiceHandleInboundNoReplyWhenPullDisabled(t *testing.T) {
	cfg := DefaultPeerSamplingConfig()
	cfg.Pull = false
	sender := &fakeSender{}
	p := newPeerSamplingService("self:1", cfg, sender, nil, testLogger())

	msg := newSamplingMessage("other:2", Request, []Peer{{Address: "third:3"}})
	p.handleInbound(context.Background(), msg)

	if sender.count() != 0 {
		t.Fatalf("expected no reply with pull disabled, got %d sends", sender.count())
	}
}

func TestPeerSamplingServiceStartAndCloseStopsWorkers(t *testing.T) {
	cfg := DefaultPeerSamplingConfig()
	cfg.SamplingPeriod = time.Hour // never ticks during the test
	p := newPeerSamplingService("self:1", cfg, &fakeSender{}, nil, testLogger())

	ctx := context.Background()
	p.start(ctx, func() []Peer { return []Peer{{Address: "seed:1"}} })
	if len(p.peers()) != 1 {
		t.Fatalf("expected seed applied")
	}
	p.close()
}

func TestPeerSamplingServiceEnqueueDropsWhenFull(t *testing.T) {
	p := newPeerSamplingService("self:1", DefaultPeerSamplingConfig(), &fakeSender{}, nil, testLogger())
	for i := 0; i < cap(p.samplingCh)+1; i++ {
		p.enqueue(newSamplingMessage("x", Request, nil))
	}
	// Must not block or panic; channel stays at its bound.
	if len(p.samplingCh) != cap(p.samplingCh) {
		t.Fatalf("expected channel full at capacity, got %d/%d", len(p.samplingCh), cap(p.samplingCh))
	}
}
