package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/markethub/internal/domain"
)

func TestSnapshotsUpdateAndGet(t *testing.T) {
	s := NewSnapshots()

	_, ok := s.Get("BTCUSDT")
	require.False(t, ok)

	first := domain.PriceSnapshot{Symbol: "BTCUSDT", Price: 64000, Timestamp: time.Now().UTC()}
	s.Update(first)

	got, ok := s.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, first, got)

	// Last write wins.
	second := first
	second.Price = 64100
	s.Update(second)

	got, ok = s.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 64100.0, got.Price)
	assert.Equal(t, 1, s.Len())
}

func TestSnapshotsGetAllSortedBySymbol(t *testing.T) {
	s := NewSnapshots()
	s.Update(domain.PriceSnapshot{Symbol: "SOLUSDT", Price: 150})
	s.Update(domain.PriceSnapshot{Symbol: "BTCUSDT", Price: 64000})
	s.Update(domain.PriceSnapshot{Symbol: "ETHUSDT", Price: 2500})

	all := s.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, "BTCUSDT", all[0].Symbol)
	assert.Equal(t, "ETHUSDT", all[1].Symbol)
	assert.Equal(t, "SOLUSDT", all[2].Symbol)
}

func TestSnapshotsRemove(t *testing.T) {
	s := NewSnapshots()
	s.Update(domain.PriceSnapshot{Symbol: "BTCUSDT", Price: 64000})

	s.Remove("BTCUSDT")
	_, ok := s.Get("BTCUSDT")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	// Removing a missing symbol is a no-op.
	s.Remove("BTCUSDT")
}

func TestApplyStatsMergesIntoExistingSnapshot(t *testing.T) {
	s := NewSnapshots()
	tick := domain.PriceSnapshot{
		Symbol:    "BTCUSDT",
		Price:     64000,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	s.Update(tick)

	got := s.ApplyStats("BTCUSDT", domain.Stats24h{
		Symbol:        "BTCUSDT",
		LastPrice:     63990, // stale REST price must not win
		Change:        1200,
		ChangePercent: 1.9,
		Volume:        34567.8,
		High:          65000,
		Low:           62000,
	}, time.Now().UTC())

	// Price and timestamp stay owned by the ticker stream.
	assert.Equal(t, 64000.0, got.Price)
	assert.Equal(t, tick.Timestamp, got.Timestamp)

	assert.Equal(t, 1200.0, got.Change24h)
	assert.Equal(t, 1.9, got.ChangePercent24h)
	assert.Equal(t, 34567.8, got.Volume24h)
	assert.Equal(t, 65000.0, got.High24h)
	assert.Equal(t, 62000.0, got.Low24h)

	stored, ok := s.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, got, stored)
}

func TestApplyStatsSeedsMissingSnapshot(t *testing.T) {
	s := NewSnapshots()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := s.ApplyStats("ETHUSDT", domain.Stats24h{
		Symbol:    "ETHUSDT",
		LastPrice: 2500,
		Volume:    9999,
		High:      2600,
		Low:       2400,
	}, at)

	assert.Equal(t, "ETHUSDT", got.Symbol)
	assert.Equal(t, 2500.0, got.Price)
	assert.Equal(t, at, got.Timestamp)
	assert.Equal(t, 9999.0, got.Volume24h)

	_, ok := s.Get("ETHUSDT")
	assert.True(t, ok)
}
