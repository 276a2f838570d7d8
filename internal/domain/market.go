package domain

import "time"

// Side is the taker side of an executed trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// StreamKind identifies one of the two upstream stream flavours opened per
// tracked symbol.
type StreamKind string

const (
	StreamTicker StreamKind = "ticker"
	StreamTrade  StreamKind = "trade"
)

// PriceSnapshot is the latest known price state for one symbol. Each ticker
// update fully replaces the previous snapshot; the periodic 24h statistics
// refresh overwrites only the change/volume/high/low fields.
type PriceSnapshot struct {
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	Change24h        float64   `json:"change_24h"`
	ChangePercent24h float64   `json:"change_percent_24h"`
	Volume24h        float64   `json:"volume_24h"`
	High24h          float64   `json:"high_24h"`
	Low24h           float64   `json:"low_24h"`
	Timestamp        time.Time `json:"timestamp"`
}

// TradeEvent is a single executed trade from the upstream exchange. It is
// constructed, published once, and discarded; nothing stores it.
type TradeEvent struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Side      Side      `json:"side"`
	Timestamp time.Time `json:"timestamp"`
	TradeID   int64     `json:"trade_id"`
}

// Stats24h is one symbol's row from the upstream 24-hour statistics endpoint.
type Stats24h struct {
	Symbol        string
	LastPrice     float64
	Change        float64
	ChangePercent float64
	Volume        float64
	High          float64
	Low           float64
}
