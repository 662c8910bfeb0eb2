// Package cache holds the latest serialized snapshot of each cached domain.
//
// Each domain lives in its own Slot guarded by its own lock. Writers build the
// payload first and hold the lock only for the pointer swap, so a reader never
// waits on a fetch and never sees a partially written payload.
package cache

import (
	"sync"
	"time"

	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

// Snapshot is one installed payload. Payload must not be modified after Replace.
type Snapshot struct {
	Domain     models.Domain
	Payload    []byte
	UpdatedAt  time.Time
	Generation uint64
}

// ReplaceFunc is notified after a slot installs a new snapshot.
type ReplaceFunc func(snap Snapshot)

// Slot is the current snapshot of a single domain.
type Slot struct {
	domain models.Domain
	store  *Store

	mu      sync.RWMutex
	current *Snapshot
}

// Replace installs payload as the current snapshot and returns it.
func (s *Slot) Replace(payload []byte) Snapshot {
	s.mu.Lock()
	next := &Snapshot{
		Domain:    s.domain,
		Payload:   payload,
		UpdatedAt: s.store.now(),
	}
	if s.current != nil {
		next.Generation = s.current.Generation + 1
	} else {
		next.Generation = 1
	}
	s.current = next
	s.mu.Unlock()

	s.store.notify(*next)
	return *next
}

// Read returns the current snapshot, or false if nothing was installed yet.
func (s *Slot) Read() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return Snapshot{}, false
	}
	return *s.current, true
}

// Domain returns the domain this slot holds.
func (s *Slot) Domain() models.Domain { return s.domain }

// Store owns one Slot per domain.
type Store struct {
	prices *Slot
	worlds *Slot
	now    func() time.Time

	hookMu    sync.RWMutex
	onReplace ReplaceFunc
}

// NewStore creates an empty store. Nothing is readable until the first Replace
// of each slot.
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.prices = &Slot{domain: models.DomainPrices, store: s}
	s.worlds = &Slot{domain: models.DomainWorlds, store: s}
	return s
}

// Slot returns the slot of domain, or nil for an unknown domain.
func (s *Store) Slot(domain models.Domain) *Slot {
	switch domain {
	case models.DomainPrices:
		return s.prices
	case models.DomainWorlds:
		return s.worlds
	}
	return nil
}

// Prices is shorthand for Slot(models.DomainPrices).
func (s *Store) Prices() *Slot { return s.prices }

// Worlds is shorthand for Slot(models.DomainWorlds).
func (s *Store) Worlds() *Slot { return s.worlds }

// Ready reports whether every domain has a snapshot.
func (s *Store) Ready() bool {
	_, pricesOK := s.prices.Read()
	_, worldsOK := s.worlds.Read()
	return pricesOK && worldsOK
}

// OnReplace registers fn to run after every install, outside the slot lock.
// Replaces any previously registered function.
func (s *Store) OnReplace(fn ReplaceFunc) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onReplace = fn
}

func (s *Store) notify(snap Snapshot) {
	s.hookMu.RLock()
	fn := s.onReplace
	s.hookMu.RUnlock()

	if fn != nil {
		fn(snap)
	}
}
