package gossip

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// InitialPeersFunc yields the initial peer list for seeding a view. It may
// return nil or an empty slice; no eager contact is made at startup.
type InitialPeersFunc func() []Peer

// sender abstracts outbound delivery of a single encoded frame so the PSS
// and Gossip Service can be tested without a real socket.
type sender interface {
	send(ctx context.Context, address string, frame []byte) error
}

// peerSamplingService maintains a bounded, continuously-refreshed random
// view of other live peers and drives the push/pull sampling cycle.
type peerSamplingService struct {
	address string
	config  PeerSamplingConfig
	metrics *Metrics
	logger  *slog.Logger
	netSend sender

	mu   sync.Mutex
	view *view
	rng  *rand.Rand

	samplingCh chan PeerSamplingMessage

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func newPeerSamplingService(address string, cfg PeerSamplingConfig, s sender, m *Metrics, logger *slog.Logger) *peerSamplingService {
	return &peerSamplingService{
		address:    address,
		config:     cfg,
		metrics:    m,
		logger:     logger,
		netSend:    s,
		view:       newView(address),
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		samplingCh: make(chan PeerSamplingMessage, 256),
	}
}

// start seeds the view and launches the receive and periodic-sampling
// workers. ctx bounds their lifetime; close blocks until both exit.
func (p *peerSamplingService) start(ctx context.Context, initial InitialPeersFunc) {
	if initial != nil {
		p.mu.Lock()
		p.view.seed(initial())
		p.mu.Unlock()
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(2)
	go p.receiveLoop(runCtx)
	go p.samplingLoop(runCtx)
}

// close cancels the workers and waits for them to exit. Idempotent.
func (p *peerSamplingService) close() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// inboundChannel exposes the sampling channel so the listener can deliver
// decoded frames directly, without routing them through enqueue.
func (p *peerSamplingService) inboundChannel() chan<- PeerSamplingMessage {
	return p.samplingCh
}

// enqueue hands an inbound sampling message to the receive worker. Non-
// blocking drop if the channel is saturated, matching the bounded-FIFO
// resource model.
func (p *peerSamplingService) enqueue(msg PeerSamplingMessage) {
	select {
	case p.samplingCh <- msg:
	default:
		p.logger.Warn("sampling channel full, dropping message", "sender", msg.Sender)
	}
}

// getPeer returns a peer for use by the Gossip Service.
func (p *peerSamplingService) getPeer() (Peer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view.getPeer(p.rng)
}

// mergeDiscovered merges externally discovered peer addresses (e.g. from
// mDNS LAN discovery) into the view using the same SELECT procedure as a
// received sampling buffer, each starting at age 0.
func (p *peerSamplingService) mergeDiscovered(addresses []string) {
	if len(addresses) == 0 {
		return
	}
	buffer := make([]Peer, 0, len(addresses))
	for _, addr := range addresses {
		buffer = append(buffer, NewPeer(addr))
	}
	p.mu.Lock()
	p.view.selectMerge(p.config.ViewSize, p.config.HealingFactor, p.config.SwappingFactor, buffer, p.rng)
	size := len(p.view.peers)
	p.mu.Unlock()
	p.recordViewSize(size)
}

// peers returns a snapshot of the current view.
func (p *peerSamplingService) peers() []Peer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view.snapshot()
}

func (p *peerSamplingService) receiveLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.samplingCh:
			if !ok {
				return
			}
			p.handleInbound(ctx, msg)
		}
	}
}

func (p *peerSamplingService) handleInbound(ctx context.Context, msg PeerSamplingMessage) {
	p.mu.Lock()
	if msg.MessageType == Request && p.config.Pull {
		buffer := p.view.buildBuffer(p.address, p.config.ViewSize, p.config.HealingFactor, p.rng)
		p.mu.Unlock()
		p.sendSampling(ctx, msg.Sender, newSamplingMessage(p.address, Response, buffer))
		p.mu.Lock()
	}

	if msg.View != nil {
		p.view.selectMerge(p.config.ViewSize, p.config.HealingFactor, p.config.SwappingFactor, msg.View, p.rng)
	} else {
		p.logger.Warn("received sampling message with no view", "sender", msg.Sender)
	}
	p.view.increaseAge()
	size := len(p.view.peers)
	p.mu.Unlock()

	p.recordViewSize(size)
}

func (p *peerSamplingService) samplingLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		if !p.sleepCycle(ctx, p.config.SamplingPeriod, p.config.SamplingDeviation) {
			return
		}
		p.runSamplingCycle(ctx)
	}
}

// sleepCycle waits the base period plus U[0, deviation) jitter, returning
// false if ctx was cancelled first.
func (p *peerSamplingService) sleepCycle(ctx context.Context, period, deviation time.Duration) bool {
	jitter := time.Duration(0)
	if deviation > 0 {
		jitter = time.Duration(rand.Int64N(int64(deviation)))
	}
	t := time.NewTimer(period + jitter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *peerSamplingService) runSamplingCycle(ctx context.Context) {
	p.mu.Lock()
	partner, ok := p.view.selectPeer(p.rng)
	if !ok {
		p.mu.Unlock()
		p.logger.Warn("no peer found for sampling")
		return
	}

	var msg PeerSamplingMessage
	if p.config.Push {
		buffer := p.view.buildBuffer(p.address, p.config.ViewSize, p.config.HealingFactor, p.rng)
		msg = newSamplingMessage(p.address, Request, buffer)
	} else {
		msg = newSamplingMessage(p.address, Request, nil)
	}
	p.view.increaseAge()
	p.mu.Unlock()

	p.sendSampling(ctx, partner.Address, msg)
}

func (p *peerSamplingService) sendSampling(ctx context.Context, address string, msg PeerSamplingMessage) {
	frame, err := encodeFrame(tagSampling, msg)
	if err != nil {
		p.logger.Error("encode sampling message", "error", err)
		return
	}
	if err := p.netSend.send(ctx, address, frame); err != nil {
		p.logger.Debug("send sampling message failed", "peer", address, "error", err)
		p.metrics.incSamplingFailure()
		return
	}
	p.metrics.incSamplingSent()
}

func (p *peerSamplingService) recordViewSize(n int) {
	p.metrics.setViewSize(n)
}
