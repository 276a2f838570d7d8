package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/markethub/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 15 * time.Second

	// readWait is the maximum idle time between messages before the read
	// fails and the stream is treated as dead. Ticker streams emit every
	// second; the exchange also pings well inside this window.
	readWait = 90 * time.Second

	// writeWait is the time allowed to write a control frame to the peer.
	writeWait = 10 * time.Second
)

// Stream is a single upstream market-data stream. Read blocks until the next
// raw message arrives or the stream fails.
type Stream interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens upstream streams, one per (symbol, kind) pair.
type Dialer interface {
	DialStream(ctx context.Context, symbol string, kind domain.StreamKind) (Stream, error)
}

// WSDialer dials the exchange's raw websocket stream endpoints, e.g.
// wss://stream.binance.com:9443/ws/btcusdt@ticker.
type WSDialer struct {
	host string
}

// NewWSDialer creates a Dialer for the given websocket host.
func NewWSDialer(host string) *WSDialer {
	return &WSDialer{host: strings.TrimRight(host, "/")}
}

// DialStream opens the ticker or trade stream for one symbol.
func (d *WSDialer) DialStream(ctx context.Context, symbol string, kind domain.StreamKind) (Stream, error) {
	var suffix string
	switch kind {
	case domain.StreamTicker:
		suffix = "@ticker"
	case domain.StreamTrade:
		suffix = "@trade"
	default:
		return nil, fmt.Errorf("binance: dial stream: unknown kind %q", kind)
	}

	url := fmt.Sprintf("%s/ws/%s%s", d.host, strings.ToLower(symbol), suffix)

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("binance: dial %s: %w", url, err)
	}

	// The exchange pings periodically; answer with pongs and refresh the
	// read deadline so an idle-but-alive stream is not torn down.
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	return &wsStream{conn: conn}, nil
}

// wsStream adapts a gorilla websocket connection to the Stream interface.
type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) ReadMessage() ([]byte, error) {
	s.conn.SetReadDeadline(time.Now().Add(readWait))
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("binance: read: %w", err)
	}
	return data, nil
}

func (s *wsStream) Close() error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return s.conn.Close()
}
