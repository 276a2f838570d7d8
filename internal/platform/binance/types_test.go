package binance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/markethub/internal/domain"
)

func TestDecodeTicker(t *testing.T) {
	raw := []byte(`{
		"e": "24hrTicker",
		"E": 1767225600000,
		"s": "BTCUSDT",
		"p": "512.30",
		"P": "0.81",
		"c": "64012.50",
		"h": "64500.00",
		"l": "62900.10",
		"v": "23456.789"
	}`)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap, err := DecodeTicker(raw, at)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Equal(t, 64012.50, snap.Price)
	assert.Equal(t, 512.30, snap.Change24h)
	assert.Equal(t, 0.81, snap.ChangePercent24h)
	assert.Equal(t, 23456.789, snap.Volume24h)
	assert.Equal(t, 64500.00, snap.High24h)
	assert.Equal(t, 62900.10, snap.Low24h)

	// Capture time is the processing time, not the exchange event time.
	assert.Equal(t, at, snap.Timestamp)
}

func TestDecodeTickerErrors(t *testing.T) {
	at := time.Now().UTC()

	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"s":"BTCUSDT"`},
		{"missing symbol", `{"c":"64000","p":"1","P":"1","h":"1","l":"1","v":"1"}`},
		{"garbage decimal", `{"s":"BTCUSDT","c":"not-a-number","p":"1","P":"1","h":"1","l":"1","v":"1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTicker([]byte(tt.raw), at)
			assert.Error(t, err)
		})
	}
}

func TestDecodeTradeSideInversion(t *testing.T) {
	// Buyer was the maker, so the aggressor sold.
	sell := []byte(`{"e":"trade","E":1,"s":"BTCUSDT","t":42,"p":"64000.5","q":"0.25","T":1767225600123,"m":true}`)
	trade, err := DecodeTrade(sell)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", trade.Symbol)
	assert.Equal(t, int64(42), trade.TradeID)
	assert.Equal(t, 64000.5, trade.Price)
	assert.Equal(t, 0.25, trade.Quantity)
	assert.Equal(t, domain.SideSell, trade.Side)
	assert.Equal(t, time.UnixMilli(1767225600123).UTC(), trade.Timestamp)

	// Buyer was the taker.
	buy := []byte(`{"e":"trade","E":1,"s":"BTCUSDT","t":43,"p":"64001.0","q":"0.10","T":1767225600456,"m":false}`)
	trade, err = DecodeTrade(buy)
	require.NoError(t, err)
	assert.Equal(t, domain.SideBuy, trade.Side)
}

func TestDecodeTradeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"s":`},
		{"missing symbol", `{"t":1,"p":"1","q":"1","T":1,"m":false}`},
		{"garbage price", `{"s":"BTCUSDT","t":1,"p":"x","q":"1","T":1,"m":false}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTrade([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestStatsEntryToDomain(t *testing.T) {
	e := statsEntry{
		Symbol:             "ETHUSDT",
		LastPrice:          "2501.25",
		PriceChange:        "-12.5",
		PriceChangePercent: "-0.49",
		Volume:             "88000.1",
		HighPrice:          "2550.0",
		LowPrice:           "2480.0",
	}

	stats, err := e.toDomain()
	require.NoError(t, err)
	assert.Equal(t, domain.Stats24h{
		Symbol:        "ETHUSDT",
		LastPrice:     2501.25,
		Change:        -12.5,
		ChangePercent: -0.49,
		Volume:        88000.1,
		High:          2550.0,
		Low:           2480.0,
	}, stats)

	e.Volume = "n/a"
	_, err = e.toDomain()
	assert.Error(t, err)
}
