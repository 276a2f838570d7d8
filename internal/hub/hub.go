// Package hub owns the set of client websocket connections and the channel
// registry used to fan events out to them. One Hub instance is constructed at
// process start and shared by the feed connector and the HTTP server.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alanyoungcy/markethub/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the maximum time to wait for a write to complete. It also
	// bounds how long a stalled client can delay a fan-out loop: a write that
	// misses the deadline fails and disconnects only that client.
	writeWait = 10 * time.Second

	// maxMessageSize is the maximum size of an incoming control message.
	maxMessageSize = 4096
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// Config holds per-connection policy knobs.
type Config struct {
	// RateLimit is the maximum number of inbound control messages per
	// connection per RateWindow.
	RateLimit  int
	RateWindow time.Duration

	// HeartbeatInterval is how often each connection's watchdog wakes;
	// HeartbeatTimeout is the maximum silence before force-disconnect.
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

// Hub is the connection manager: it owns the connection table, applies
// authentication and rate limiting, runs one heartbeat watchdog per
// connection, and dispatches inbound control messages.
type Hub struct {
	cfg      Config
	registry *Registry
	verifier domain.TokenVerifier
	logger   *slog.Logger

	// now is swapped out in tests.
	now func() time.Time

	// mu guards the connection table and serialises subscription changes
	// against Disconnect so registry entries and per-connection subscription
	// sets never diverge.
	mu    sync.RWMutex
	conns map[string]*Conn
}

// New creates a Hub around the given registry and token verifier.
func New(cfg Config, registry *Registry, verifier domain.TokenVerifier, logger *slog.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		registry: registry,
		verifier: verifier,
		logger:   logger.With(slog.String("component", "hub")),
		now:      time.Now,
		conns:    make(map[string]*Conn),
	}
}

// Connect registers a new client socket, starts its heartbeat watchdog, and
// sends the connection confirmation. It returns the generated connection id.
func (h *Hub) Connect(sock Socket) string {
	id := uuid.NewString()
	c := newConn(id, sock, h.cfg.RateLimit, h.cfg.RateWindow, h.now())

	h.mu.Lock()
	h.conns[id] = c
	total := len(h.conns)
	h.mu.Unlock()

	go h.watchdog(c)

	h.logger.Info("client connected",
		slog.String("conn_id", id),
		slog.Int("total_clients", total),
	)

	_ = h.Send(id, h.newEnvelope(domain.TypeSystemAlert, "", map[string]any{
		"status":        "connected",
		"connection_id": id,
	}))

	return id
}

// Disconnect removes a connection from every channel it belongs to, stops its
// watchdog, and drops it from the connection table. Safe to call multiple
// times; repeat calls are no-ops. The table removal and the channel cleanup
// happen under the hub lock as one step, so a concurrent subscribe either
// lands before (and is cleaned up here) or observes the connection gone.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	c, ok := h.conns[id]
	if ok {
		delete(h.conns, id)
		for _, ch := range c.channels() {
			h.registry.Unsubscribe(id, ch)
			c.removeSub(ch)
		}
	}
	total := len(h.conns)
	h.mu.Unlock()

	if !ok {
		return
	}

	c.close()

	h.logger.Info("client disconnected",
		slog.String("conn_id", id),
		slog.Int("total_clients", total),
	)
}

// Close disconnects every client. Called on shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.Disconnect(id)
	}
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// conn looks up a live connection by id.
func (h *Hub) conn(id string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	return c, ok
}

// Send serialises and transmits one envelope to one connection. A failed
// write is fatal for that connection: it is fully disconnected and the error
// is returned so fan-out loops can keep going with the remaining subscribers.
func (h *Hub) Send(id string, env domain.Envelope) error {
	c, ok := h.conn(id)
	if !ok {
		return fmt.Errorf("hub: send %s: %w", id, domain.ErrNotFound)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("hub: send %s: marshal: %w", id, err)
	}

	if err := c.write(data, h.now().Add(writeWait)); err != nil {
		h.logger.Warn("send failed, disconnecting client",
			slog.String("conn_id", id),
			slog.String("error", err.Error()),
		)
		h.Disconnect(id)
		return fmt.Errorf("hub: send %s: %w", id, err)
	}

	return nil
}

// Publish delivers an envelope to every current subscriber of a channel,
// best-effort and at most once each. A send failure disconnects that
// recipient but never aborts delivery to the rest. Publishing to a channel
// with no subscribers is a silent no-op.
func (h *Hub) Publish(channel string, env domain.Envelope) {
	for _, id := range h.registry.Subscribers(channel) {
		_ = h.Send(id, env)
	}
}

// PublishAll delivers an envelope to every connected client regardless of
// subscriptions.
func (h *Hub) PublishAll(env domain.Envelope) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		_ = h.Send(id, env)
	}
}

// Dispatch is the entry point for client-originated traffic. It applies the
// per-connection rate limit, parses the control message, and routes it.
// Every protocol failure is answered with an error envelope; none of them
// close the connection.
func (h *Hub) Dispatch(ctx context.Context, id string, raw []byte) {
	c, ok := h.conn(id)
	if !ok {
		return
	}

	if !c.allow(h.now()) {
		h.sendError(id, "rate limit exceeded")
		return
	}

	var msg domain.ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(id, "invalid message format")
		return
	}

	switch msg.Type {
	case domain.ControlSubscribe:
		h.handleSubscribe(c, msg)
	case domain.ControlUnsubscribe:
		h.handleUnsubscribe(c, msg)
	case domain.ControlAuth:
		h.handleAuth(ctx, c, msg)
	case domain.ControlHeartbeat:
		h.handleHeartbeat(c)
	default:
		h.sendError(id, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (h *Hub) handleSubscribe(c *Conn, msg domain.ControlMessage) {
	if msg.Channel == "" {
		h.sendError(c.ID, "channel is required")
		return
	}

	// The registry entry and the connection's subscription set must move as
	// one step under the hub lock: a Disconnect slipping between the two
	// would miss the channel during cleanup and leave the dead id registered
	// forever. Subscribing is also refused once the connection has left the
	// table.
	h.mu.Lock()
	if _, ok := h.conns[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	h.registry.Subscribe(c.ID, msg.Channel)
	c.addSub(msg.Channel)
	h.mu.Unlock()

	_ = h.Send(c.ID, h.newEnvelope(domain.TypeSystemAlert, msg.Channel, map[string]any{
		"status":  "subscribed",
		"channel": msg.Channel,
	}))
}

func (h *Hub) handleUnsubscribe(c *Conn, msg domain.ControlMessage) {
	if msg.Channel == "" {
		h.sendError(c.ID, "channel is required")
		return
	}

	h.mu.Lock()
	h.registry.Unsubscribe(c.ID, msg.Channel)
	c.removeSub(msg.Channel)
	h.mu.Unlock()

	_ = h.Send(c.ID, h.newEnvelope(domain.TypeSystemAlert, msg.Channel, map[string]any{
		"status":  "unsubscribed",
		"channel": msg.Channel,
	}))
}

func (h *Hub) handleAuth(ctx context.Context, c *Conn, msg domain.ControlMessage) {
	if msg.Token == "" {
		h.sendError(c.ID, "token is required")
		return
	}

	userID, err := h.verifier.Decode(ctx, msg.Token)
	if err != nil {
		if !errors.Is(err, domain.ErrUnauthorized) {
			h.logger.Warn("token verification failed",
				slog.String("conn_id", c.ID),
				slog.String("error", err.Error()),
			)
		}
		h.sendError(c.ID, "authentication failed")
		return
	}

	c.setUserID(userID)

	_ = h.Send(c.ID, h.newEnvelope(domain.TypeSystemAlert, "", map[string]any{
		"status":  "authenticated",
		"user_id": userID,
	}))
}

func (h *Hub) handleHeartbeat(c *Conn) {
	c.heartbeat(h.now())

	_ = h.Send(c.ID, h.newEnvelope(domain.TypeHeartbeat, "", map[string]any{
		"status": "alive",
	}))
}

func (h *Hub) sendError(id, msg string) {
	_ = h.Send(id, h.newEnvelope(domain.TypeError, "", map[string]any{
		"error": msg,
	}))
}

// watchdog force-disconnects a connection whose last heartbeat is older than
// the timeout. One watchdog goroutine runs per connection; it exits when the
// connection is closed for any reason.
func (h *Hub) watchdog(c *Conn) {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if h.now().Sub(c.lastBeat()) > h.cfg.HeartbeatTimeout {
				h.logger.Info("heartbeat timeout, disconnecting",
					slog.String("conn_id", c.ID),
				)
				h.Disconnect(c.ID)
				return
			}
		}
	}
}

// HandleWS upgrades an HTTP request to a websocket connection, registers it,
// and starts its read loop.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	id := h.Connect(conn)
	go h.readPump(id, conn)
}

// readPump reads control frames from one client until the socket fails or
// closes, then tears the connection down.
func (h *Hub) readPump(id string, conn *websocket.Conn) {
	defer h.Disconnect(id)

	conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("unexpected close",
					slog.String("conn_id", id),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		h.Dispatch(context.Background(), id, data)
	}
}
