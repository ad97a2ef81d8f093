package gossip

import (
	"testing"
	"time"
)

func TestUpdateStoreSubmitRejectsDuplicate(t *testing.T) {
	s := newUpdateStore(NoExpiration())
	if _, err := s.submit([]byte("hello")); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := s.submit([]byte("hello")); err != ErrAlreadyActive {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestUpdateStoreSubmitRejectsExpired(t *testing.T) {
	s := newUpdateStore(PushCountExpiration(1))
	u, err := s.submit([]byte("hello"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	s.activeDigestsForPush() // advance push count to 0
	s.clearExpired()
	if active, removed := s.has(u.Digest); active || !removed {
		t.Fatalf("expected digest expired, active=%v removed=%v", active, removed)
	}
	if _, err := s.submit([]byte("hello")); err != ErrAlreadyExpired {
		t.Fatalf("expected ErrAlreadyExpired, got %v", err)
	}
}

func TestUpdateStoreActiveDigestsForPushAdvancesCount(t *testing.T) {
	s := newUpdateStore(PushCountExpiration(2))
	u, _ := s.submit([]byte("x"))

	s.activeDigestsForPush()
	if active, _ := s.has(u.Digest); !active {
		t.Fatalf("expected still active after one push")
	}
	s.activeDigestsForPush()
	s.clearExpired()
	if active, removed := s.has(u.Digest); active || !removed {
		t.Fatalf("expected expired after two pushes, active=%v removed=%v", active, removed)
	}
}

func TestUpdateStoreActiveDigestsHasNoSideEffect(t *testing.T) {
	s := newUpdateStore(PushCountExpiration(1))
	u, _ := s.submit([]byte("x"))

	s.activeDigests()
	s.activeDigests()
	s.clearExpired()
	if active, _ := s.has(u.Digest); !active {
		t.Fatalf("activeDigests must not advance push count")
	}
}

func TestUpdateStoreWantedDigestsExcludesKnown(t *testing.T) {
	s := newUpdateStore(NoExpiration())
	u, _ := s.submit([]byte("known"))

	wanted := s.wantedDigests([]string{u.Digest, "unknown-digest"})
	if len(wanted) != 1 || wanted[0] != "unknown-digest" {
		t.Fatalf("expected only unknown-digest, got %v", wanted)
	}
}

func TestUpdateStoreAcceptContentDetectsMismatch(t *testing.T) {
	s := newUpdateStore(NoExpiration())
	_, result := s.acceptContent("not-the-real-digest", []byte("content"))
	if result != acceptedMismatch {
		t.Fatalf("expected acceptedMismatch, got %v", result)
	}
}

func TestUpdateStoreAcceptContentDuplicateForActive(t *testing.T) {
	s := newUpdateStore(NoExpiration())
	u, _ := s.submit([]byte("content"))
	_, result := s.acceptContent(u.Digest, []byte("content"))
	if result != acceptedDuplicate {
		t.Fatalf("expected acceptedDuplicate, got %v", result)
	}
}

func TestUpdateStoreAcceptContentNew(t *testing.T) {
	s := newUpdateStore(NoExpiration())
	u := NewUpdate([]byte("content"))
	accepted, result := s.acceptContent(u.Digest, []byte("content"))
	if result != acceptedNew {
		t.Fatalf("expected acceptedNew, got %v", result)
	}
	if accepted.Digest != u.Digest {
		t.Fatalf("returned update digest mismatch")
	}
	if active, _ := s.has(u.Digest); !active {
		t.Fatalf("expected digest active after accept")
	}
}

func TestUpdateStoreClearExpiredDurationPolicy(t *testing.T) {
	s := newUpdateStore(DurationExpiration(1 * time.Millisecond))
	u, _ := s.submit([]byte("x"))
	time.Sleep(5 * time.Millisecond)
	s.clearExpired()
	if active, removed := s.has(u.Digest); active || !removed {
		t.Fatalf("expected expired by duration, active=%v removed=%v", active, removed)
	}
}

func TestUpdateStoreClearExpiredMostRecentEvictsOldest(t *testing.T) {
	s := newUpdateStore(MostRecentExpiration(2, 0))
	first, _ := s.submit([]byte("first"))
	time.Sleep(time.Millisecond)
	_, _ = s.submit([]byte("second"))
	time.Sleep(time.Millisecond)
	_, _ = s.submit([]byte("third"))

	s.clearExpired()
	if s.activeCount() != 2 {
		t.Fatalf("expected active count trimmed to 2, got %d", s.activeCount())
	}
	if active, removed := s.has(first.Digest); active || !removed {
		t.Fatalf("expected oldest entry evicted, active=%v removed=%v", active, removed)
	}
}

func TestUpdateStoreClearExpiredTrimsTombstones(t *testing.T) {
	s := newUpdateStore(PushCountExpiration(0))
	s.maxExpired = 4
	s.expiredMargin = 0.5 // trim trigger at 6, trims 2 back out

	for i := 0; i < 7; i++ {
		s.submit([]byte{byte(i)})
	}
	s.clearExpired()
	if len(s.removed) > 6 {
		t.Fatalf("expected tombstone list trimmed, got %d entries", len(s.removed))
	}
}
