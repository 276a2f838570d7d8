package binance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/markethub/internal/domain"
)

// TickerMessage mirrors the payload of the <symbol>@ticker stream.
type TickerMessage struct {
	EventType          string `json:"e"`
	EventTime          int64  `json:"E"`
	Symbol             string `json:"s"`
	PriceChange        string `json:"p"`
	PriceChangePercent string `json:"P"`
	LastPrice          string `json:"c"`
	HighPrice          string `json:"h"`
	LowPrice           string `json:"l"`
	Volume             string `json:"v"`
}

// TradeMessage mirrors the payload of the <symbol>@trade stream.
type TradeMessage struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// statsEntry mirrors one row of the /api/v3/ticker/24hr response.
type statsEntry struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
}

// DecodeTicker parses a raw ticker stream message into a PriceSnapshot.
// The snapshot's capture timestamp is `at` (processing time), not the
// exchange event time.
func DecodeTicker(data []byte, at time.Time) (domain.PriceSnapshot, error) {
	var msg TickerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.PriceSnapshot{}, fmt.Errorf("binance: decode ticker: %w", err)
	}
	if msg.Symbol == "" {
		return domain.PriceSnapshot{}, fmt.Errorf("binance: decode ticker: missing symbol")
	}

	snap := domain.PriceSnapshot{
		Symbol:    msg.Symbol,
		Timestamp: at,
	}

	var err error
	if snap.Price, err = parseDecimal(msg.LastPrice, "last price"); err != nil {
		return domain.PriceSnapshot{}, err
	}
	if snap.Change24h, err = parseDecimal(msg.PriceChange, "price change"); err != nil {
		return domain.PriceSnapshot{}, err
	}
	if snap.ChangePercent24h, err = parseDecimal(msg.PriceChangePercent, "price change percent"); err != nil {
		return domain.PriceSnapshot{}, err
	}
	if snap.Volume24h, err = parseDecimal(msg.Volume, "volume"); err != nil {
		return domain.PriceSnapshot{}, err
	}
	if snap.High24h, err = parseDecimal(msg.HighPrice, "high"); err != nil {
		return domain.PriceSnapshot{}, err
	}
	if snap.Low24h, err = parseDecimal(msg.LowPrice, "low"); err != nil {
		return domain.PriceSnapshot{}, err
	}

	return snap, nil
}

// DecodeTrade parses a raw trade stream message into a TradeEvent. The taker
// side is derived by inverting the buyer-is-maker flag: when the buyer was
// the maker, the aggressor was a seller.
func DecodeTrade(data []byte) (domain.TradeEvent, error) {
	var msg TradeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.TradeEvent{}, fmt.Errorf("binance: decode trade: %w", err)
	}
	if msg.Symbol == "" {
		return domain.TradeEvent{}, fmt.Errorf("binance: decode trade: missing symbol")
	}

	trade := domain.TradeEvent{
		Symbol:    msg.Symbol,
		TradeID:   msg.TradeID,
		Side:      domain.SideBuy,
		Timestamp: time.UnixMilli(msg.TradeTime).UTC(),
	}
	if msg.IsBuyerMaker {
		trade.Side = domain.SideSell
	}

	var err error
	if trade.Price, err = parseDecimal(msg.Price, "price"); err != nil {
		return domain.TradeEvent{}, err
	}
	if trade.Quantity, err = parseDecimal(msg.Quantity, "quantity"); err != nil {
		return domain.TradeEvent{}, err
	}

	return trade, nil
}

func (e statsEntry) toDomain() (domain.Stats24h, error) {
	stats := domain.Stats24h{Symbol: e.Symbol}

	var err error
	if stats.LastPrice, err = parseDecimal(e.LastPrice, "last price"); err != nil {
		return domain.Stats24h{}, err
	}
	if stats.Change, err = parseDecimal(e.PriceChange, "price change"); err != nil {
		return domain.Stats24h{}, err
	}
	if stats.ChangePercent, err = parseDecimal(e.PriceChangePercent, "price change percent"); err != nil {
		return domain.Stats24h{}, err
	}
	if stats.Volume, err = parseDecimal(e.Volume, "volume"); err != nil {
		return domain.Stats24h{}, err
	}
	if stats.High, err = parseDecimal(e.HighPrice, "high"); err != nil {
		return domain.Stats24h{}, err
	}
	if stats.Low, err = parseDecimal(e.LowPrice, "low"); err != nil {
		return domain.Stats24h{}, err
	}

	return stats, nil
}

// parseDecimal parses the string-encoded decimal fields the exchange uses on
// its JSON surfaces.
func parseDecimal(s, field string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: parse %s %q: %w", field, s, err)
	}
	return v, nil
}
