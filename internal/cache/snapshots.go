// Package cache holds the in-process snapshot store: the latest known
// PriceSnapshot per symbol, nothing else. History is not retained.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/markethub/internal/domain"
)

// Snapshots is a mutex-guarded map of symbol to latest snapshot. All methods
// are safe for concurrent use; every mutation is a single atomic replace.
type Snapshots struct {
	mu      sync.RWMutex
	entries map[string]domain.PriceSnapshot
}

// NewSnapshots creates an empty snapshot store.
func NewSnapshots() *Snapshots {
	return &Snapshots{entries: make(map[string]domain.PriceSnapshot)}
}

// Update replaces the snapshot for snap.Symbol (last write wins).
func (s *Snapshots) Update(snap domain.PriceSnapshot) {
	s.mu.Lock()
	s.entries[snap.Symbol] = snap
	s.mu.Unlock()
}

// Get returns the snapshot for a symbol, if one exists.
func (s *Snapshots) Get(symbol string) (domain.PriceSnapshot, bool) {
	s.mu.RLock()
	snap, ok := s.entries[symbol]
	s.mu.RUnlock()
	return snap, ok
}

// GetAll returns every current snapshot, ordered by symbol.
func (s *Snapshots) GetAll() []domain.PriceSnapshot {
	s.mu.RLock()
	out := make([]domain.PriceSnapshot, 0, len(s.entries))
	for _, snap := range s.entries {
		out = append(out, snap)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Remove drops the snapshot for a symbol.
func (s *Snapshots) Remove(symbol string) {
	s.mu.Lock()
	delete(s.entries, symbol)
	s.mu.Unlock()
}

// Len returns the number of stored snapshots.
func (s *Snapshots) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ApplyStats merges a 24h statistics row into the stored snapshot. For an
// existing entry only the change/volume/high/low fields are overwritten; the
// price stays owned by the ticker stream. When no entry exists yet the row
// seeds a full snapshot (including price) so REST readers have data before
// the first tick arrives. Returns the resulting snapshot.
func (s *Snapshots) ApplyStats(symbol string, stats domain.Stats24h, at time.Time) domain.PriceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.entries[symbol]
	if !ok {
		snap = domain.PriceSnapshot{
			Symbol:    symbol,
			Price:     stats.LastPrice,
			Timestamp: at,
		}
	}
	snap.Change24h = stats.Change
	snap.ChangePercent24h = stats.ChangePercent
	snap.Volume24h = stats.Volume
	snap.High24h = stats.High
	snap.Low24h = stats.Low

	s.entries[symbol] = snap
	return snap
}
