// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/thediveo/lxkns/log"
	"golang.org/x/exp/slices"
)

// Default sweep interval and entry TTL.
const (
	DefaultSweepInterval = 10 * time.Second
	DefaultTTL           = 60 * time.Second
)

const defaultShards = 16

// Key identifies a single counter series by the requested domain and the HTTP
// status code of the response.
type Key struct {
	Domain string
	Status uint16
}

// Sample is a point-in-time reading of a single counter series.
type Sample struct {
	Key
	Count uint64
}

// entry is the mutable state of a counter series. It lives only inside its
// shard and must only be touched while holding the shard's lock.
type entry struct {
	count    uint64
	lastSeen time.Time
}

// shard holds a disjoint subset of the counter series, guarded by its own
// lock.
type shard struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

// Store counts requests per (domain, status) key and forgets keys that have
// been idle for longer than a TTL. A Store can be safely used from multiple
// goroutines.
//
// Keys are spread over a fixed set of shards based on their domain, so that
// concurrent writers for different domains rarely contend and snapshots and
// sweeps never hold a single global lock for long.
type Store struct {
	now    func() time.Time
	shards []*shard
}

// New returns a new and empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		now: time.Now,
	}
	numshards := defaultShards
	for _, opt := range opts {
		opt(s, &numshards)
	}
	if numshards <= 0 {
		numshards = 1
	}
	s.shards = make([]*shard, numshards)
	for idx := range s.shards {
		s.shards[idx] = &shard{entries: map[Key]*entry{}}
	}
	return s
}

func (s *Store) shardOf(domain string) *shard {
	return s.shards[xxhash.Sum64String(domain)%uint64(len(s.shards))]
}

// Record counts one more request for the specified domain and status code,
// creating the counter series if necessary, and marks the series as active
// now.
func (s *Store) Record(domain string, status uint16) {
	key := Key{Domain: domain, Status: status}
	now := s.now()
	sh := s.shardOf(domain)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[key]
	if !ok {
		e = &entry{}
		sh.entries[key] = e
	}
	e.count++
	e.lastSeen = now
}

// Snapshot returns the current counts of all known series, sorted by domain
// and then by status code. The snapshot isn't atomic across shards, but every
// count reported is a count its series actually had.
func (s *Store) Snapshot() []Sample {
	samples := []Sample{}
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			samples = append(samples, Sample{Key: key, Count: e.count})
		}
		sh.mu.Unlock()
	}
	slices.SortFunc(samples, func(a, b Sample) int {
		if c := strings.Compare(a.Domain, b.Domain); c != 0 {
			return c
		}
		return int(a.Status) - int(b.Status)
	})
	return samples
}

// Len returns the number of currently known series.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// Sweep removes all series that haven't seen any activity since now-ttl,
// returning the number of series removed. Removed series are gone for good,
// they are not reset to zero; recording them again starts over from one.
func (s *Store) Sweep(now time.Time, ttl time.Duration) int {
	deadline := now.Add(-ttl)
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.lastSeen.Before(deadline) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Run sweeps the store every interval, removing series idle for longer than
// ttl, until the passed context gets cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration, ttl time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	log.Debugf("sweeping idle request counters every %s, ttl %s", interval, ttl)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if removed := s.Sweep(s.now(), ttl); removed > 0 {
			log.Debugf("evicted %d idle request counter(s), %d remaining", removed, s.Len())
		}
	}
}
