package gossip

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	headerChannelSize  = 256
	contentChannelSize = 256
)

// Config parameterizes a Service. Address is the local TCP listen address
// (host:port, or host:0 to let the OS pick a port).
type Config struct {
	Address string

	PeerSampling PeerSamplingConfig
	Gossip       GossipConfig

	// InitialPeers seeds the peer sampling view at Start. May be nil.
	InitialPeers InitialPeersFunc

	// Handler receives updates acquired from peers. May be nil.
	Handler UpdateHandler

	// Metrics is optional; a nil value disables instrumentation.
	Metrics *Metrics

	// Monitor optionally posts view/update snapshots to an external sink.
	Monitor MonitorConfig

	// MaxInboundConnsPerSec caps the rate of accepted connections on the
	// listener. Zero disables rate limiting.
	MaxInboundConnsPerSec float64

	// CompressionEnabled zstd-compresses content payloads on the wire.
	// All participating nodes must agree on this setting.
	CompressionEnabled bool

	Logger *slog.Logger
}

// Service runs one gossip node: the peer sampling service, the update
// store, and the three-phase header/content broadcast layer, all driven
// over a shared TCP listener.
type Service struct {
	address      string
	cfg          GossipConfig
	logger       *slog.Logger
	metrics      *Metrics
	monitor      *monitorSink
	handler      UpdateHandler
	initialPeers InitialPeersFunc
	inboundLimit float64
	compression  bool
	compressor   *contentCompressor

	pss   *peerSamplingService
	store *updateStore
	send  sender
	ln    *listener

	headerCh  chan HeaderMessage
	contentCh chan ContentMessage

	wg     sync.WaitGroup
	cancel context.CancelFunc

	started  atomic.Bool
	shutdown atomic.Bool
}

// New constructs a Service. It does not bind a socket or start any
// goroutine; call Start for that.
func New(cfg Config) (*Service, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("gossip: Config.Address is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tcp := newTCPSender(dialTimeout)
	s := &Service{
		address:      cfg.Address,
		cfg:          cfg.Gossip,
		logger:       logger,
		metrics:      cfg.Metrics,
		monitor:      newMonitorSink(cfg.Monitor, logger),
		handler:      cfg.Handler,
		initialPeers: cfg.InitialPeers,
		inboundLimit: cfg.MaxInboundConnsPerSec,
		compression:  cfg.CompressionEnabled,
		compressor:   newContentCompressor(),
		pss:          newPeerSamplingService(cfg.Address, cfg.PeerSampling, tcp, cfg.Metrics, logger),
		store:        newUpdateStore(cfg.Gossip.UpdateExpiration),
		send:         tcp,
		headerCh:     make(chan HeaderMessage, headerChannelSize),
		contentCh:    make(chan ContentMessage, contentChannelSize),
	}
	return s, nil
}

// Start binds the listener and launches every background worker. It is an
// error to call Start more than once.
func (s *Service) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	var limiter *rate.Limiter
	if s.inboundLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.inboundLimit), int(s.inboundLimit)+1)
	}
	ln, err := newListener(s.address, s.pss.inboundChannel(), s.headerCh, s.contentCh, limiter, s.metrics, s.logger)
	if err != nil {
		return err
	}
	s.ln = ln
	s.address = ln.addr()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.pss.start(runCtx, s.initialPeers)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.ln.run()
	}()

	s.wg.Add(3)
	go s.headerReceiveLoop(runCtx)
	go s.contentReceiveLoop(runCtx)
	go s.gossipLoop(runCtx)

	s.logger.Info("gossip service started", "address", s.address)
	return nil
}

// Addr returns the bound listen address, resolved if Config.Address used
// port 0. Valid only after Start succeeds.
func (s *Service) Addr() string {
	return s.address
}

// Submit admits a local update into the active set so it begins spreading
// on the next gossip cycle.
func (s *Service) Submit(content []byte) (Update, error) {
	if !s.started.Load() {
		return Update{}, ErrNotStarted
	}
	if s.shutdown.Load() {
		return Update{}, ErrShutdown
	}
	u, err := s.store.submit(content)
	if err != nil {
		s.metrics.incSubmit("rejected")
		return Update{}, err
	}
	s.metrics.incSubmit("accepted")
	s.metrics.setActiveUpdates(s.store.activeCount())
	return u, nil
}

// AddDiscoveredPeer merges an externally discovered peer address (e.g.
// from mDNS LAN discovery) into the peer sampling view.
func (s *Service) AddDiscoveredPeer(address string) {
	s.pss.mergeDiscovered([]string{address})
}

// Peers returns a snapshot of the current peer sampling view.
func (s *Service) Peers() []Peer {
	return s.pss.peers()
}

// IsActive reports whether digest is currently in the active update set.
func (s *Service) IsActive(digest string) bool {
	active, _ := s.store.has(digest)
	return active
}

// IsExpired reports whether digest is held as a removed tombstone.
func (s *Service) IsExpired(digest string) bool {
	_, removed := s.store.has(digest)
	return removed
}

// Shutdown stops every background worker and releases the listener. It
// blocks until all goroutines have exited. Idempotent.
func (s *Service) Shutdown() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.pss.close()

	var closeErr error
	if s.ln != nil {
		closeErr = s.ln.close()
		s.ln.nudge()
	}
	s.wg.Wait()
	s.logger.Info("gossip service shut down", "address", s.address)
	return closeErr
}

// gossipLoop drives the periodic outbound header advertisement cycle.
func (s *Service) gossipLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		if !s.sleepCycle(ctx, s.cfg.GossipPeriod, s.cfg.GossipDeviation) {
			return
		}
		s.runGossipCycle(ctx)
	}
}

func (s *Service) runGossipCycle(ctx context.Context) {
	partner, ok := s.pss.getPeer()
	if !ok {
		s.logger.Debug("no peer available for gossip cycle")
		return
	}

	var digests []string
	if s.cfg.Push {
		digests = s.store.activeDigestsForPush()
	}
	msg := HeaderMessage{Sender: s.address, MessageType: Request, Headers: digests}
	s.sendHeader(ctx, partner.Address, msg)

	s.store.clearExpired()
	s.metrics.setActiveUpdates(s.store.activeCount())
	s.monitor.report(s.address, peerAddresses(s.pss.peers()))
}

// headerReceiveLoop handles inbound header advertisements: 0x20-tagged
// frames carrying the sender's known digests.
func (s *Service) headerReceiveLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.headerCh:
			if !ok {
				return
			}
			s.handleHeader(ctx, msg)
		}
	}
}

func (s *Service) handleHeader(ctx context.Context, msg HeaderMessage) {
	if s.cfg.Pull && msg.Sender != s.address && msg.MessageType == Request && s.store.activeCount() > 0 {
		resp := HeaderMessage{Sender: s.address, MessageType: Response, Headers: s.store.activeDigests()}
		s.sendHeader(ctx, msg.Sender, resp)
	}

	wantContent := (msg.MessageType == Request && s.cfg.Push) || (msg.MessageType == Response && s.cfg.Pull)
	if !wantContent {
		return
	}
	wanted := s.store.wantedDigests(msg.Headers)
	if len(wanted) == 0 {
		return
	}
	req := ContentMessage{Sender: s.address, MessageType: Request, Content: make(map[string][]byte, len(wanted))}
	for _, d := range wanted {
		req.Content[d] = nil
	}
	s.sendContent(ctx, msg.Sender, req)
}

// contentReceiveLoop handles inbound content request/response frames.
func (s *Service) contentReceiveLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.contentCh:
			if !ok {
				return
			}
			s.handleContent(ctx, msg)
		}
	}
}

func (s *Service) handleContent(ctx context.Context, msg ContentMessage) {
	switch msg.MessageType {
	case Request:
		requested := make([]string, 0, len(msg.Content))
		for d := range msg.Content {
			requested = append(requested, d)
		}
		found := s.store.contentFor(requested)
		if len(found) == 0 {
			return
		}
		if s.compression {
			found = s.compressPayloads(found)
		}
		resp := ContentMessage{Sender: s.address, MessageType: Response, Content: found}
		s.sendContent(ctx, msg.Sender, resp)
	case Response:
		for digest, content := range msg.Content {
			if s.compression {
				plain, err := s.compressor.decompress(content)
				if err != nil {
					s.logger.Warn("decompress content failed", "digest", digest, "error", err)
					continue
				}
				content = plain
			}
			u, result := s.store.acceptContent(digest, content)
			switch result {
			case acceptedNew:
				if s.handler != nil {
					s.handler.OnUpdate(u)
				}
			case acceptedMismatch:
				s.logger.Warn("digest mismatch on received content", "claimed", digest)
				s.metrics.incDigestMismatch()
			case acceptedDuplicate:
				// already known; nothing to do
			}
		}
		s.store.clearExpired()
		s.metrics.setActiveUpdates(s.store.activeCount())
	}
}

func (s *Service) sendHeader(ctx context.Context, address string, msg HeaderMessage) {
	frame, err := encodeFrame(tagHeader, msg)
	if err != nil {
		s.logger.Error("encode header message", "error", err)
		return
	}
	if err := s.send.send(ctx, address, frame); err != nil {
		s.logger.Debug("send header message failed", "peer", address, "error", err)
		return
	}
	s.metrics.incHeadersSent()
}

func (s *Service) sendContent(ctx context.Context, address string, msg ContentMessage) {
	frame, err := encodeFrame(tagContent, msg)
	if err != nil {
		s.logger.Error("encode content message", "error", err)
		return
	}
	if err := s.send.send(ctx, address, frame); err != nil {
		s.logger.Debug("send content message failed", "peer", address, "error", err)
		return
	}
	if msg.MessageType == Request {
		s.metrics.incContentRequests()
	}
}

// sleepCycle waits the base period plus U[0, deviation) jitter, returning
// false if ctx was cancelled first. Mirrors peerSamplingService.sleepCycle.
func (s *Service) sleepCycle(ctx context.Context, period, deviation time.Duration) bool {
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

// compressPayloads returns a copy of found with every content value zstd-
// compressed. A value that fails to compress is sent uncompressed; a
// receiver with compression enabled decompresses every value, so it logs
// and skips such a value.
func (s *Service) compressPayloads(found map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(found))
	for digest, content := range found {
		compressed, err := s.compressor.compress(content)
		if err != nil {
			s.logger.Warn("compress content failed", "digest", digest, "error", err)
			out[digest] = content
			continue
		}
		out[digest] = compressed
	}
	return out
}

func peerAddresses(peers []Peer) []string {
	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = p.Address
	}
	return out
}
