package gossip

import "time"

// PeerSamplingConfig parameterizes the peer sampling protocol.
// See: Jelasity et al., "Gossip-based Peer Sampling".
type PeerSamplingConfig struct {
	Push bool
	Pull bool

	// SamplingPeriod is the base interval between sampling cycles.
	SamplingPeriod time.Duration
	// SamplingDeviation bounds the random jitter added to SamplingPeriod.
	SamplingDeviation time.Duration

	// ViewSize (c) is the hard upper bound on peers stored per node.
	ViewSize int
	// HealingFactor (h) is the number of oldest peers ejected per merge.
	HealingFactor int
	// SwappingFactor (s) is the number of recently-pushed peers dropped
	// per merge.
	SwappingFactor int
}

// DefaultPeerSamplingConfig returns the canonical defaults for the peer
// sampling protocol.
func DefaultPeerSamplingConfig() PeerSamplingConfig {
	return PeerSamplingConfig{
		Push:              true,
		Pull:              true,
		SamplingPeriod:    60 * time.Second,
		SamplingDeviation: 0,
		ViewSize:          30,
		HealingFactor:     3,
		SwappingFactor:    12,
	}
}

// GossipConfig parameterizes the gossip broadcast layer.
type GossipConfig struct {
	Push bool
	Pull bool

	// GossipPeriod is the base interval between header advertisement cycles.
	GossipPeriod time.Duration
	// GossipDeviation bounds the random jitter added to GossipPeriod.
	GossipDeviation time.Duration

	// UpdateExpiration selects the active-set expiration policy.
	UpdateExpiration ExpirationPolicy
}

// DefaultGossipConfig returns the canonical defaults for the gossip
// broadcast layer.
func DefaultGossipConfig() GossipConfig {
	return GossipConfig{
		Push:             true,
		Pull:             true,
		GossipPeriod:     1 * time.Second,
		GossipDeviation:  0,
		UpdateExpiration: NoExpiration(),
	}
}

// ExpirationPolicyKind identifies which expiration policy is active.
type ExpirationPolicyKind int

const (
	PolicyNone ExpirationPolicyKind = iota
	PolicyDurationMillis
	PolicyPushCount
	PolicyMostRecent
)

// ExpirationPolicy is one of {None, DurationMillis(ttl), PushCount(n),
// MostRecent(size, margin)}. Construct with the helper functions below.
type ExpirationPolicy struct {
	Kind   ExpirationPolicyKind
	TTL    time.Duration // DurationMillis
	Count  uint32        // PushCount: initial remaining push count
	Size   int           // MostRecent: target active-set size
	Margin float64       // MostRecent: fractional overshoot before eviction
}

func NoExpiration() ExpirationPolicy {
	return ExpirationPolicy{Kind: PolicyNone}
}

func DurationExpiration(ttl time.Duration) ExpirationPolicy {
	return ExpirationPolicy{Kind: PolicyDurationMillis, TTL: ttl}
}

func PushCountExpiration(n uint32) ExpirationPolicy {
	return ExpirationPolicy{Kind: PolicyPushCount, Count: n}
}

func MostRecentExpiration(size int, margin float64) ExpirationPolicy {
	return ExpirationPolicy{Kind: PolicyMostRecent, Size: size, Margin: margin}
}

const (
	// defaultMaxExpired bounds the tombstone list before it is trimmed.
	defaultMaxExpired = 10000
	// defaultExpiredMargin is the fractional overshoot tolerated before a
	// trim; the trim drops the oldest maxExpired*margin entries.
	defaultExpiredMargin = 0.5
)
