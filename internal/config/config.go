package config

// CurrentConfigVersion is the latest configuration schema version. Bump
// this when adding fields that require migration.
const CurrentConfigVersion = 1

// FileConfig is the on-disk shape of a gossipd configuration file.
// Durations are plain strings (parsed with time.ParseDuration) so the
// YAML stays human-editable; ResolvePeerSampling, ResolveGossip and
// ResolveMonitor convert its sections into the typed gossip config structs
// the service actually runs with.
type FileConfig struct {
	Version int `yaml:"version,omitempty"`

	Node NodeConfig `yaml:"node"`

	PeerSampling PeerSamplingFileConfig `yaml:"peer_sampling,omitempty"`
	Gossip       GossipFileConfig       `yaml:"gossip,omitempty"`

	Discovery DiscoveryConfig `yaml:"discovery,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
	Monitor   MonitorConfig   `yaml:"monitor,omitempty"`
}

// NodeConfig identifies this node on the network.
type NodeConfig struct {
	// Address is the host:port this node listens on and advertises to
	// peers. Use host:0 to let the OS choose a port.
	Address string `yaml:"address"`
}

// PeerSamplingFileConfig is the YAML shape of PeerSamplingConfig.
type PeerSamplingFileConfig struct {
	Push              *bool  `yaml:"push,omitempty"`
	Pull              *bool  `yaml:"pull,omitempty"`
	SamplingPeriod    string `yaml:"sampling_period,omitempty"`
	SamplingDeviation string `yaml:"sampling_deviation,omitempty"`
	ViewSize          int    `yaml:"view_size,omitempty"`
	HealingFactor     int    `yaml:"healing_factor,omitempty"`
	SwappingFactor    int    `yaml:"swapping_factor,omitempty"`
}

// GossipFileConfig is the YAML shape of GossipConfig.
type GossipFileConfig struct {
	Push            *bool            `yaml:"push,omitempty"`
	Pull            *bool            `yaml:"pull,omitempty"`
	GossipPeriod    string           `yaml:"gossip_period,omitempty"`
	GossipDeviation string           `yaml:"gossip_deviation,omitempty"`
	Expiration      ExpirationConfig `yaml:"expiration,omitempty"`
}

// ExpirationConfig selects and parameterizes the update expiration policy.
// Policy is one of "none", "duration", "push_count", "most_recent".
type ExpirationConfig struct {
	Policy string  `yaml:"policy,omitempty"`
	TTL    string  `yaml:"ttl,omitempty"`    // duration
	Count  uint32  `yaml:"count,omitempty"`  // push_count
	Size   int     `yaml:"size,omitempty"`   // most_recent
	Margin float64 `yaml:"margin,omitempty"` // most_recent
}

// DiscoveryConfig controls bootstrap and LAN peer discovery.
type DiscoveryConfig struct {
	// BootstrapPeers seeds the initial peer sampling view.
	BootstrapPeers []string `yaml:"bootstrap_peers,omitempty"`
	// MDNSEnabled turns on LAN peer discovery via mDNS. Defaults to true
	// when unset.
	MDNSEnabled *bool  `yaml:"mdns_enabled,omitempty"`
	ServiceName string `yaml:"service_name,omitempty"`
}

// IsMDNSEnabled returns whether mDNS discovery is enabled, defaulting to
// true when not explicitly set.
func (d *DiscoveryConfig) IsMDNSEnabled() bool {
	if d.MDNSEnabled == nil {
		return true
	}
	return *d.MDNSEnabled
}

// TelemetryConfig holds observability settings. Disabled by default.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// MetricsConfig controls Prometheus metrics exposure over HTTP.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address,omitempty"` // default: "127.0.0.1:9091"
}

// MonitorConfig is the YAML shape of gossip.MonitorConfig.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}
