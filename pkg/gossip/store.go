package gossip

import (
	"sort"
	"sync"
	"time"
)

// expirationState tracks how close a single active update is to expiring.
// Exactly one of these shapes matches each ExpirationPolicyKind.
type expirationState struct {
	kind      ExpirationPolicyKind
	createdAt time.Time
	ttl       time.Duration
	remaining uint32 // PushCount
}

func newExpirationState(policy ExpirationPolicy) expirationState {
	return expirationState{
		kind:      policy.Kind,
		createdAt: time.Now(),
		ttl:       policy.TTL,
		remaining: policy.Count,
	}
}

// hasExpired reports expiry for DurationMillis and PushCount policies.
// MostRecent eviction is collective and handled in clearExpired, not here.
func (e *expirationState) hasExpired() bool {
	switch e.kind {
	case PolicyDurationMillis:
		return time.Since(e.createdAt) >= e.ttl
	case PolicyPushCount:
		return e.remaining == 0
	default:
		return false
	}
}

// advancePush decrements a PushCount state by one push, saturating at 0.
func (e *expirationState) advancePush() {
	if e.kind == PolicyPushCount && e.remaining > 0 {
		e.remaining--
	}
}

type activeEntry struct {
	update     Update
	expiration expirationState
}

// updateStore holds the active update set, the bounded tombstone list of
// recently-expired digests, and the expiration policy. It is owned by one
// Gossip Service and always accessed under its own lock.
type updateStore struct {
	mu      sync.Mutex
	active  map[string]*activeEntry
	removed []string
	policy  ExpirationPolicy

	maxExpired    int
	expiredMargin float64
}

func newUpdateStore(policy ExpirationPolicy) *updateStore {
	return &updateStore{
		active:        make(map[string]*activeEntry),
		policy:        policy,
		maxExpired:    defaultMaxExpired,
		expiredMargin: defaultExpiredMargin,
	}
}

// submit inserts a new update for the local node. It never re-admits a
// digest already in active or removed.
func (s *updateStore) submit(content []byte) (Update, error) {
	u := NewUpdate(content)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[u.Digest]; ok {
		return Update{}, ErrAlreadyActive
	}
	if s.isRemovedLocked(u.Digest) {
		return Update{}, ErrAlreadyExpired
	}
	s.active[u.Digest] = &activeEntry{update: u, expiration: newExpirationState(s.policy)}
	return u, nil
}

// insertReceived inserts an update acquired over the network. The caller
// must already have verified it is new (not active, not removed).
func (s *updateStore) insertReceived(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[u.Digest] = &activeEntry{update: u, expiration: newExpirationState(s.policy)}
}

func (s *updateStore) isRemovedLocked(digest string) bool {
	for _, d := range s.removed {
		if d == digest {
			return true
		}
	}
	return false
}

// has reports whether digest is currently in active, in removed, or neither.
func (s *updateStore) has(digest string) (active, removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, active = s.active[digest]
	removed = s.isRemovedLocked(digest)
	return
}

// get returns the active update for digest, if any.
func (s *updateStore) get(digest string) (Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.active[digest]
	if !ok {
		return Update{}, false
	}
	return e.update, true
}

// activeDigests returns every digest currently active (unordered).
func (s *updateStore) activeDigests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.active))
	for d := range s.active {
		out = append(out, d)
	}
	return out
}

// activeDigestsForPush returns every active digest and advances each
// entry's PushCount state by one push, as required before a header
// advertisement batch is sent.
func (s *updateStore) activeDigestsForPush() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.active))
	for d, e := range s.active {
		e.expiration.advancePush()
		out = append(out, d)
	}
	return out
}

// wantedDigests filters candidates down to those present in neither active
// nor removed.
func (s *updateStore) wantedDigests(candidates []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var wanted []string
	for _, d := range candidates {
		if _, ok := s.active[d]; ok {
			continue
		}
		if s.isRemovedLocked(d) {
			continue
		}
		wanted = append(wanted, d)
	}
	return wanted
}

// contentFor returns the content for every requested digest present in
// active, as a digest->content map suitable for a ContentMessage response.
func (s *updateStore) contentFor(requested []string) map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte)
	for _, d := range requested {
		if e, ok := s.active[d]; ok {
			out[d] = e.update.Content
		}
	}
	return out
}

// acceptContentResult reports what happened when processing one (digest,
// content) pair from a ContentMessage response.
type acceptContentResult int

const (
	acceptedNew acceptContentResult = iota
	acceptedDuplicate
	acceptedMismatch
)

// acceptContent validates and, if new, inserts a received (digest, content)
// pair. Callers must run clearExpired only after the whole batch has been
// processed, not between individual pairs.
func (s *updateStore) acceptContent(digest string, content []byte) (Update, acceptContentResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[digest]; ok {
		return Update{}, acceptedDuplicate
	}
	if s.isRemovedLocked(digest) {
		return Update{}, acceptedDuplicate
	}
	u := NewUpdate(content)
	if u.Digest != digest {
		return Update{}, acceptedMismatch
	}
	s.active[digest] = &activeEntry{update: u, expiration: newExpirationState(s.policy)}
	return u, acceptedNew
}

// clearExpired runs the policy-dependent expiration sweep over active, then
// trims the tombstone list if it has grown past its margin.
func (s *updateStore) clearExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.policy.Kind {
	case PolicyNone:
		// no-op
	case PolicyDurationMillis, PolicyPushCount:
		var expired []string
		for d, e := range s.active {
			if e.expiration.hasExpired() {
				expired = append(expired, d)
			}
		}
		for _, d := range expired {
			delete(s.active, d)
			s.removed = append(s.removed, d)
		}
	case PolicyMostRecent:
		maxSize := s.policy.Size + int(float64(s.policy.Size)*s.policy.Margin)
		if len(s.active) > maxSize {
			type aged struct {
				digest    string
				createdAt time.Time
			}
			all := make([]aged, 0, len(s.active))
			for d, e := range s.active {
				all = append(all, aged{digest: d, createdAt: e.expiration.createdAt})
			}
			sort.Slice(all, func(i, j int) bool { return all[i].createdAt.Before(all[j].createdAt) })
			removalCount := len(s.active) - s.policy.Size
			for i := 0; i < removalCount; i++ {
				delete(s.active, all[i].digest)
				s.removed = append(s.removed, all[i].digest)
			}
		}
	}

	maxExpired := s.maxExpired + int(float64(s.maxExpired)*s.expiredMargin)
	if len(s.removed) > maxExpired {
		marginSize := int(float64(s.maxExpired) * s.expiredMargin)
		if marginSize > 0 {
			if marginSize > len(s.removed) {
				marginSize = len(s.removed)
			}
			s.removed = s.removed[marginSize:]
		}
	}
}

// clear empties both the active set and the tombstone list.
func (s *updateStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = make(map[string]*activeEntry)
	s.removed = nil
}

func (s *updateStore) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
