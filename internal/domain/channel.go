package domain

// Base broadcast topics. A channel is either a base topic (all symbols) or a
// symbol-scoped topic of the form "<base>:<SYMBOL>".
const (
	ChannelPrices    = "prices"
	ChannelTrades    = "trades"
	ChannelOrders    = "orders"
	ChannelNews      = "news"
	ChannelAlerts    = "alerts"
	ChannelPortfolio = "portfolio"
	ChannelBacktest  = "backtest"
)

// ScopedChannel returns the symbol-scoped form of a base topic, e.g.
// ScopedChannel(ChannelPrices, "BTCUSDT") == "prices:BTCUSDT".
func ScopedChannel(base, symbol string) string {
	return base + ":" + symbol
}
