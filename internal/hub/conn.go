package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/markethub/internal/domain"
)

// Socket is the minimal write surface of a client connection. It is satisfied
// by *websocket.Conn; tests supply fakes.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is the server-side state for one client connection: identity,
// authentication, subscriptions, liveness, and the rate-limit window.
type Conn struct {
	ID          string
	ConnectedAt time.Time

	sock Socket

	mu            sync.Mutex
	userID        string
	subs          map[string]struct{}
	lastHeartbeat time.Time
	limiter       rateWindow

	// writeMu serialises socket writes; gorilla connections allow only one
	// concurrent writer.
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(id string, sock Socket, limit int, window time.Duration, now time.Time) *Conn {
	return &Conn{
		ID:            id,
		ConnectedAt:   now,
		sock:          sock,
		subs:          make(map[string]struct{}),
		lastHeartbeat: now,
		limiter: rateWindow{
			limit:       limit,
			window:      window,
			windowStart: now,
		},
		done: make(chan struct{}),
	}
}

// UserID returns the authenticated user id, or "" before auth succeeds.
func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Conn) setUserID(id string) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

func (c *Conn) heartbeat(now time.Time) {
	c.mu.Lock()
	c.lastHeartbeat = now
	c.mu.Unlock()
}

func (c *Conn) lastBeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}

// allow applies the per-connection rate limit to one inbound request.
func (c *Conn) allow(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limiter.allow(now)
}

func (c *Conn) addSub(channel string) {
	c.mu.Lock()
	c.subs[channel] = struct{}{}
	c.mu.Unlock()
}

func (c *Conn) removeSub(channel string) {
	c.mu.Lock()
	delete(c.subs, channel)
	c.mu.Unlock()
}

// hasSub reports whether the connection is subscribed to a channel.
func (c *Conn) hasSub(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[channel]
	return ok
}

// channels returns a copy of the connection's subscription set.
func (c *Conn) channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		out = append(out, ch)
	}
	return out
}

// write sends one text frame, bounded by the deadline. Not safe to call with
// c.mu held.
func (c *Conn) write(data []byte, deadline time.Time) error {
	select {
	case <-c.done:
		return domain.ErrConnClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.sock.SetWriteDeadline(deadline)
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

// close tears down the socket and stops the watchdog. Idempotent.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}
