package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/driftmesh/gossip/internal/config"
	"github.com/driftmesh/gossip/pkg/gossip"
)

func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	fs.Parse(args)

	path, err := config.FindConfigFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		osExit(1)
		return
	}

	fc, err := config.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		osExit(1)
		return
	}
	if err := config.Validate(fc); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		osExit(1)
		return
	}

	if err := run(fc); err != nil {
		slog.Error("gossipd exited with error", "error", err)
		osExit(1)
	}
}

func run(fc *config.FileConfig) error {
	peerSampling, err := config.ResolvePeerSampling(fc.PeerSampling)
	if err != nil {
		return err
	}
	gossipCfg, err := config.ResolveGossip(fc.Gossip)
	if err != nil {
		return err
	}
	monitor, err := config.ResolveMonitor(fc.Monitor)
	if err != nil {
		return err
	}

	logger := slog.Default().With("node", fc.Node.Address)
	metrics := gossip.NewMetrics(fc.Node.Address)

	var initial gossip.InitialPeersFunc
	if len(fc.Discovery.BootstrapPeers) > 0 {
		seeds := fc.Discovery.BootstrapPeers
		initial = func() []gossip.Peer {
			peers := make([]gossip.Peer, len(seeds))
			for i, addr := range seeds {
				peers[i] = gossip.NewPeer(addr)
			}
			return peers
		}
	}

	svc, err := gossip.New(gossip.Config{
		Address:      fc.Node.Address,
		PeerSampling: peerSampling,
		Gossip:       gossipCfg,
		InitialPeers: initial,
		Handler: gossip.UpdateHandlerFunc(func(u gossip.Update) {
			logger.Info("update received", "digest", u.Digest, "bytes", len(u.Content))
		}),
		Metrics: metrics,
		Monitor: monitor,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("construct service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	logger.Info("gossip node listening", "address", svc.Addr())

	var mdns *gossip.MDNSDiscovery
	if fc.Discovery.IsMDNSEnabled() {
		serviceName := fc.Discovery.ServiceName
		if serviceName == "" {
			serviceName = "_gossipd._tcp"
		}
		mdns, err = gossip.NewMDNSDiscovery(serviceName, svc.Addr(), svc.AddDiscoveredPeer, logger)
		if err != nil {
			logger.Warn("mdns discovery disabled", "error", err)
		} else if err := mdns.Start(ctx); err != nil {
			logger.Warn("mdns discovery failed to start", "error", err)
			mdns = nil
		}
	}

	var metricsServer *http.Server
	g, gctx := errgroup.WithContext(ctx)
	if fc.Telemetry.Metrics.Enabled {
		addr := fc.Telemetry.Metrics.ListenAddress
		if addr == "" {
			addr = "127.0.0.1:9091"
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: addr, Handler: mux}
		g.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		logger.Info("metrics server listening", "address", addr)
	}

	<-gctx.Done()
	logger.Info("shutting down")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricsServer.Shutdown(shutdownCtx)
		cancel()
	}
	if mdns != nil {
		mdns.Close()
	}
	if err := svc.Shutdown(); err != nil {
		return err
	}
	return g.Wait()
}
