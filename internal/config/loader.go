package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driftmesh/gossip/pkg/gossip"
)

// checkConfigFilePermissions returns an error if a config file has overly
// permissive permissions (any group/world bit set), which makes LoadFile
// reject the file. Config files may name a monitoring
// endpoint and listen addresses; on a multi-user system a world-readable
// file is a mild information leak.
func checkConfigFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil // file access errors are handled by the caller
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("config file %s has overly permissive mode %04o; expected 0600 — fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// LoadFile loads and parses a gossipd configuration file.
func LoadFile(path string) (*FileConfig, error) {
	if err := checkConfigFilePermissions(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Version > CurrentConfigVersion {
		return nil, fmt.Errorf("%w: version %d is newer than supported version %d; please upgrade gossipd", ErrConfigVersionTooNew, cfg.Version, CurrentConfigVersion)
	}

	return &cfg, nil
}

// FindConfigFile searches for a gossipd config file in standard locations.
// Search order: explicitPath (if given), ./gossipd.yaml,
// ~/.config/gossipd/config.yaml, /etc/gossipd/config.yaml.
func FindConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicitPath)
		}
		return explicitPath, nil
	}

	searchPaths := []string{"gossipd.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "gossipd", "config.yaml"))
	}
	searchPaths = append(searchPaths, filepath.Join("/etc", "gossipd", "config.yaml"))

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w; searched:\n  %s\n\nuse --config <path> or place one of the above", ErrConfigNotFound, strings.Join(searchPaths, "\n  "))
}

// DefaultConfigDir returns the default gossipd config directory
// (~/.config/gossipd).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "gossipd"), nil
}

// Validate checks a loaded FileConfig for the minimum fields a running
// node requires.
func Validate(cfg *FileConfig) error {
	if cfg.Node.Address == "" {
		return fmt.Errorf("node.address is required")
	}
	switch strings.ToLower(cfg.Gossip.Expiration.Policy) {
	case "", "none", "duration", "push_count", "most_recent":
	default:
		return fmt.Errorf("gossip.expiration.policy: unknown policy %q", cfg.Gossip.Expiration.Policy)
	}
	return nil
}

// ResolvePeerSampling converts the file config into a gossip.PeerSamplingConfig,
// filling unset fields from gossip.DefaultPeerSamplingConfig.
func ResolvePeerSampling(fc PeerSamplingFileConfig) (gossip.PeerSamplingConfig, error) {
	cfg := gossip.DefaultPeerSamplingConfig()
	if fc.Push != nil {
		cfg.Push = *fc.Push
	}
	if fc.Pull != nil {
		cfg.Pull = *fc.Pull
	}
	if fc.SamplingPeriod != "" {
		d, err := time.ParseDuration(fc.SamplingPeriod)
		if err != nil {
			return cfg, fmt.Errorf("peer_sampling.sampling_period: %w", err)
		}
		cfg.SamplingPeriod = d
	}
	if fc.SamplingDeviation != "" {
		d, err := time.ParseDuration(fc.SamplingDeviation)
		if err != nil {
			return cfg, fmt.Errorf("peer_sampling.sampling_deviation: %w", err)
		}
		cfg.SamplingDeviation = d
	}
	if fc.ViewSize != 0 {
		cfg.ViewSize = fc.ViewSize
	}
	if fc.HealingFactor != 0 {
		cfg.HealingFactor = fc.HealingFactor
	}
	if fc.SwappingFactor != 0 {
		cfg.SwappingFactor = fc.SwappingFactor
	}
	return cfg, nil
}

// ResolveGossip converts the file config into a gossip.GossipConfig, filling
// unset fields from gossip.DefaultGossipConfig.
func ResolveGossip(fc GossipFileConfig) (gossip.GossipConfig, error) {
	cfg := gossip.DefaultGossipConfig()
	if fc.Push != nil {
		cfg.Push = *fc.Push
	}
	if fc.Pull != nil {
		cfg.Pull = *fc.Pull
	}
	if fc.GossipPeriod != "" {
		d, err := time.ParseDuration(fc.GossipPeriod)
		if err != nil {
			return cfg, fmt.Errorf("gossip.gossip_period: %w", err)
		}
		cfg.GossipPeriod = d
	}
	if fc.GossipDeviation != "" {
		d, err := time.ParseDuration(fc.GossipDeviation)
		if err != nil {
			return cfg, fmt.Errorf("gossip.gossip_deviation: %w", err)
		}
		cfg.GossipDeviation = d
	}

	policy, err := resolveExpiration(fc.Expiration)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateExpiration = policy
	return cfg, nil
}

func resolveExpiration(ec ExpirationConfig) (gossip.ExpirationPolicy, error) {
	switch strings.ToLower(ec.Policy) {
	case "", "none":
		return gossip.NoExpiration(), nil
	case "duration":
		ttl, err := time.ParseDuration(ec.TTL)
		if err != nil {
			return gossip.ExpirationPolicy{}, fmt.Errorf("gossip.expiration.ttl: %w", err)
		}
		return gossip.DurationExpiration(ttl), nil
	case "push_count":
		return gossip.PushCountExpiration(ec.Count), nil
	case "most_recent":
		return gossip.MostRecentExpiration(ec.Size, ec.Margin), nil
	default:
		return gossip.ExpirationPolicy{}, fmt.Errorf("gossip.expiration.policy: unknown policy %q", ec.Policy)
	}
}

// ResolveMonitor converts the file config into a gossip.MonitorConfig.
func ResolveMonitor(mc MonitorConfig) (gossip.MonitorConfig, error) {
	out := gossip.MonitorConfig{Enabled: mc.Enabled, URL: mc.URL}
	if mc.Timeout != "" {
		d, err := time.ParseDuration(mc.Timeout)
		if err != nil {
			return out, fmt.Errorf("monitor.timeout: %w", err)
		}
		out.Timeout = d
	}
	return out, nil
}
