package domain

import "time"

// MessageType enumerates the envelope types sent to websocket clients.
type MessageType string

const (
	TypePriceUpdate    MessageType = "price_update"
	TypeTradeExecution MessageType = "trade_execution"
	TypeOrderUpdate    MessageType = "order_update"
	TypeMarketNews     MessageType = "market_news"
	TypeSystemAlert    MessageType = "system_alert"
	TypeHeartbeat      MessageType = "heartbeat"
	TypeError          MessageType = "error"
)

// Envelope is the outbound message frame. Every payload delivered to a client
// is wrapped in one.
type Envelope struct {
	Type      MessageType `json:"type"`
	Channel   string      `json:"channel"`
	Data      any         `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	MessageID string      `json:"message_id"`
}

// ControlKind enumerates the client-originated control message types.
// Dispatch switches over this enum; anything else is a protocol error.
type ControlKind string

const (
	ControlSubscribe   ControlKind = "subscribe"
	ControlUnsubscribe ControlKind = "unsubscribe"
	ControlAuth        ControlKind = "auth"
	ControlHeartbeat   ControlKind = "heartbeat"
)

// ControlMessage is the inbound control frame sent by websocket clients.
type ControlMessage struct {
	Type    ControlKind `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Token   string      `json:"token,omitempty"`
}
