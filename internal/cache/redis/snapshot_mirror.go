package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alanyoungcy/markethub/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SnapshotMirror implements domain.SnapshotMirror using Redis hashes. Each
// symbol's latest snapshot is stored at key "price:{SYMBOL}" so sibling
// processes (REST APIs, analytics jobs) can read last prices without talking
// to this service. Entries are write-through copies; the in-process store
// stays authoritative.
type SnapshotMirror struct {
	rdb *redis.Client
}

// NewSnapshotMirror creates a SnapshotMirror backed by the given Client.
func NewSnapshotMirror(c *Client) *SnapshotMirror {
	return &SnapshotMirror{rdb: c.rdb}
}

func snapshotKey(symbol string) string {
	return "price:" + symbol
}

// SetSnapshot stores the latest snapshot for a symbol.
func (m *SnapshotMirror) SetSnapshot(ctx context.Context, snap domain.PriceSnapshot) error {
	fields := map[string]interface{}{
		"price":              formatDecimal(snap.Price),
		"change_24h":         formatDecimal(snap.Change24h),
		"change_percent_24h": formatDecimal(snap.ChangePercent24h),
		"volume_24h":         formatDecimal(snap.Volume24h),
		"high_24h":           formatDecimal(snap.High24h),
		"low_24h":            formatDecimal(snap.Low24h),
		"ts":                 strconv.FormatInt(snap.Timestamp.UnixNano(), 10),
	}
	if err := m.rdb.HSet(ctx, snapshotKey(snap.Symbol), fields).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.Symbol, err)
	}
	return nil
}

// RemoveSnapshot drops the mirrored snapshot for a symbol.
func (m *SnapshotMirror) RemoveSnapshot(ctx context.Context, symbol string) error {
	if err := m.rdb.Del(ctx, snapshotKey(symbol)).Err(); err != nil {
		return fmt.Errorf("redis: remove snapshot %s: %w", symbol, err)
	}
	return nil
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Compile-time interface check.
var _ domain.SnapshotMirror = (*SnapshotMirror)(nil)
