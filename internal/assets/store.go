package assets

import (
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"incidentgraph/pkg/models"
)

// Store owns the shared asset map for one incident. Assets are created lazily
// on first reference and persist across analysis passes, so every access goes
// through the store's mutex.
type Store struct {
	mu     sync.Mutex
	byID   map[string]*models.Asset
}

// NewStore creates an empty asset store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*models.Asset, 32)}
}

// Seed registers externally supplied assets, keeping existing entries.
func (s *Store) Seed(seed []*models.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range seed {
		if a == nil || strings.TrimSpace(a.ID) == "" {
			continue
		}
		if _, ok := s.byID[a.ID]; ok {
			continue
		}
		cp := *a
		s.byID[a.ID] = &cp
	}
}

// Ensure returns the asset for a hostname-or-IP key, creating it on first
// reference. The key doubles as the asset ID for lazily created assets.
func (s *Store) Ensure(key string) *models.Asset {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.byID {
		if a.Matches(key) {
			return a
		}
	}

	a := &models.Asset{ID: key}
	if net.ParseIP(key) != nil {
		a.IP = key
	} else {
		a.Hostname = key
	}
	s.byID[key] = a
	return a
}

// MarkCompromised sets the asset's compromise time. The first writer wins;
// later calls for the same asset are no-ops.
func (s *Store) MarkCompromised(key string, at time.Time) {
	a := s.Ensure(key)
	if a == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CompromisedAt == nil {
		t := at
		a.CompromisedAt = &t
	}
}

// Get returns the asset matching the key, or nil.
func (s *Store) Get(key string) *models.Asset {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.Matches(key) {
			return a
		}
	}
	return nil
}

// All returns the assets sorted by ID for deterministic iteration.
func (s *Store) All() []*models.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Asset, 0, len(s.byID))
	for _, a := range s.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
