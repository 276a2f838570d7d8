package hub

import (
	"github.com/alanyoungcy/markethub/internal/domain"
	"github.com/google/uuid"
)

// newEnvelope wraps a payload in the outbound message frame. Timestamps come
// from the hub clock so they stay consistent with rate limiting and liveness.
func (h *Hub) newEnvelope(t domain.MessageType, channel string, data any) domain.Envelope {
	return domain.Envelope{
		Type:      t,
		Channel:   channel,
		Data:      data,
		Timestamp: h.now().UTC(),
		MessageID: uuid.NewString(),
	}
}

// publishScoped delivers a payload to the base topic and its symbol-scoped
// variant, each under its own channel name.
func (h *Hub) publishScoped(t domain.MessageType, base, symbol string, data any) {
	h.Publish(base, h.newEnvelope(t, base, data))
	if symbol != "" {
		scoped := domain.ScopedChannel(base, symbol)
		h.Publish(scoped, h.newEnvelope(t, scoped, data))
	}
}

// PublishPriceUpdate fans a price snapshot out to "prices" and
// "prices:<SYMBOL>".
func (h *Hub) PublishPriceUpdate(snap domain.PriceSnapshot) {
	h.publishScoped(domain.TypePriceUpdate, domain.ChannelPrices, snap.Symbol, snap)
}

// PublishTradeExecution fans an executed trade out to "trades" and
// "trades:<SYMBOL>".
func (h *Hub) PublishTradeExecution(trade domain.TradeEvent) {
	h.publishScoped(domain.TypeTradeExecution, domain.ChannelTrades, trade.Symbol, trade)
}

// PublishOrderUpdate fans an order status payload out to "orders" and, when a
// symbol is given, "orders:<SYMBOL>".
func (h *Hub) PublishOrderUpdate(symbol string, data any) {
	h.publishScoped(domain.TypeOrderUpdate, domain.ChannelOrders, symbol, data)
}

// PublishMarketNews fans a news payload out to "news" and, when a symbol is
// given, "news:<SYMBOL>".
func (h *Hub) PublishMarketNews(symbol string, data any) {
	h.publishScoped(domain.TypeMarketNews, domain.ChannelNews, symbol, data)
}

// PublishSystemAlert delivers an alert payload to the "alerts" channel.
func (h *Hub) PublishSystemAlert(data any) {
	h.Publish(domain.ChannelAlerts, h.newEnvelope(domain.TypeSystemAlert, domain.ChannelAlerts, data))
}

// Broadcast publishes an arbitrary payload to one channel under the given
// envelope type. Used by the HTTP broadcast endpoint.
func (h *Hub) Broadcast(t domain.MessageType, channel string, data any) {
	h.Publish(channel, h.newEnvelope(t, channel, data))
}
