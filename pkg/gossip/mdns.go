package gossip

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/libp2p/zeroconf/v2"
)

const (
	mdnsDomain         = "local."
	mdnsBrowseInterval = 30 * time.Second
	mdnsBrowseTimeout  = 10 * time.Second
	mdnsAddressTXTKey  = "address="
)

// MDNSDiscovery advertises this node's address over mDNS (DNS-SD) and
// periodically browses for other instances of the same service on the
// local network. Discovered addresses are handed to onPeer, which
// cmd/gossipd wires to Service.AddDiscoveredPeer.
type MDNSDiscovery struct {
	serviceName string
	address     string
	port        int
	onPeer      func(address string)
	logger      *slog.Logger

	server *zeroconf.Server
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMDNSDiscovery builds a discovery instance for address (host:port).
// serviceName should look like "_gossipd._tcp".
func NewMDNSDiscovery(serviceName, address string, onPeer func(string), logger *slog.Logger) (*MDNSDiscovery, error) {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	return &MDNSDiscovery{
		serviceName: serviceName,
		address:     address,
		port:        port,
		onPeer:      onPeer,
		logger:      logger,
	}, nil
}

// Start registers the mDNS advertisement and launches the periodic browse
// loop. ctx bounds the loop's lifetime; Close stops it early.
func (m *MDNSDiscovery) Start(ctx context.Context) error {
	instance := strings.ReplaceAll(m.address, ":", "-")
	server, err := zeroconf.Register(instance, m.serviceName, mdnsDomain, m.port, []string{mdnsAddressTXTKey + m.address}, nil)
	if err != nil {
		return err
	}
	m.server = server

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.browseLoop(runCtx)
	return nil
}

// Close stops advertising and browsing. Idempotent-safe to call once.
func (m *MDNSDiscovery) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.server != nil {
		m.server.Shutdown()
	}
	m.wg.Wait()
}

func (m *MDNSDiscovery) browseLoop(ctx context.Context) {
	defer m.wg.Done()
	m.runBrowse(ctx)

	ticker := time.NewTicker(mdnsBrowseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runBrowse(ctx)
		}
	}
}

func (m *MDNSDiscovery) runBrowse(ctx context.Context) {
	browseCtx, cancel := context.WithTimeout(ctx, mdnsBrowseTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	var consumeWG sync.WaitGroup
	consumeWG.Add(1)
	go func() {
		defer consumeWG.Done()
		for entry := range entries {
			addr := addressFromEntry(entry)
			if addr != "" && addr != m.address {
				m.onPeer(addr)
			}
		}
	}()

	if err := zeroconf.Browse(browseCtx, m.serviceName, mdnsDomain, entries); err != nil {
		m.logger.Warn("mdns browse failed", "error", err)
	}
	consumeWG.Wait()
}

func addressFromEntry(entry *zeroconf.ServiceEntry) string {
	for _, txt := range entry.Text {
		if strings.HasPrefix(txt, mdnsAddressTXTKey) {
			return strings.TrimPrefix(txt, mdnsAddressTXTKey)
		}
	}
	if len(entry.AddrIPv4) > 0 {
		return net.JoinHostPort(entry.AddrIPv4[0].String(), strconv.Itoa(entry.Port))
	}
	return ""
}
