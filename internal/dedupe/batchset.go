package dedupe

import (
	"sync"
	"time"
)

type entry struct {
	key string
	ts  time.Time
}

// BatchSet remembers content hashes already emitted inside an ingestion batch.
// Keys are scoped by batch id, so a new batch never collides with an old one;
// old batches age out by ttl or capacity.
type BatchSet struct {
	mu       sync.Mutex
	items    map[string]time.Time
	order    []entry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewBatchSet creates a set with the provided capacity and ttl.
func NewBatchSet(capacity int, ttl time.Duration) *BatchSet {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &BatchSet{
		items:    make(map[string]time.Time, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Key scopes a content hash to its batch.
func Key(batchID, hash string) string {
	return batchID + ":" + hash
}

// Observe marks hash in batchID and reports whether it was already marked
// inside the ttl window. Check and mark happen under one lock, so concurrent
// callers with the same key see exactly one false.
func (s *BatchSet) Observe(batchID, hash string) bool {
	key := Key(batchID, hash)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ts, ok := s.items[key]; ok && now.Sub(ts) <= s.ttl {
		return true
	}
	s.items[key] = now
	s.order = append(s.order, entry{key: key, ts: now})
	s.compact(now)
	return false
}

// Forget releases a mark made by Observe, for when the listing was not stored.
func (s *BatchSet) Forget(batchID, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, Key(batchID, hash))
}

func (s *BatchSet) compact(now time.Time) {
	cutoff := now.Add(-s.ttl)

	for len(s.order) > 0 && (len(s.items) > s.capacity || s.order[0].ts.Before(cutoff)) {
		oldest := s.order[0]
		s.order = s.order[1:]

		if ts, ok := s.items[oldest.key]; ok && ts == oldest.ts {
			delete(s.items, oldest.key)
		}
	}
}
