// Package feed ingests upstream exchange streams. The Connector owns one
// stream goroutine per (symbol, kind) pair plus a periodic 24h statistics
// refresh loop; each stream is its own failure domain and reconnects after a
// fixed delay without affecting the others.
package feed

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/markethub/internal/cache"
	"github.com/alanyoungcy/markethub/internal/domain"
	"github.com/alanyoungcy/markethub/internal/platform/binance"
)

// Publisher receives the normalized events the connector produces.
type Publisher interface {
	PublishPriceUpdate(snap domain.PriceSnapshot)
	PublishTradeExecution(trade domain.TradeEvent)
}

// StatsProvider returns 24h statistics for a set of symbols in one call.
type StatsProvider interface {
	Stats24h(ctx context.Context, symbols []string) (map[string]domain.Stats24h, error)
}

// Config holds the connector's timing knobs.
type Config struct {
	// ReconnectWait is the fixed delay before a failed stream reopens.
	ReconnectWait time.Duration

	// StatsInterval is how often the 24h statistics refresh runs;
	// StatsRetryWait is the backoff after a failed refresh.
	StatsInterval  time.Duration
	StatsRetryWait time.Duration
}

type streamKey struct {
	symbol string
	kind   domain.StreamKind
}

// streamTask tracks one stream goroutine's current socket so Unsubscribe and
// Stop can unblock its read.
type streamTask struct {
	mu       sync.Mutex
	cur      binance.Stream
	stopped  bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newStreamTask() *streamTask {
	return &streamTask{stopCh: make(chan struct{})}
}

func (t *streamTask) setStream(s binance.Stream) {
	t.mu.Lock()
	t.cur = s
	t.mu.Unlock()
}

func (t *streamTask) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// stop marks the task stopped and closes its current socket so a blocked
// read returns immediately.
func (t *streamTask) stop() {
	t.mu.Lock()
	t.stopped = true
	cur := t.cur
	t.mu.Unlock()

	t.stopOnce.Do(func() { close(t.stopCh) })
	if cur != nil {
		_ = cur.Close()
	}
}

// Connector ingests one ticker stream and one trade stream per tracked
// symbol, normalizes messages, updates the snapshot cache (and its optional
// Redis mirror), and publishes typed events through the hub.
type Connector struct {
	cfg    Config
	dialer binance.Dialer
	stats  StatsProvider
	cache  *cache.Snapshots
	mirror domain.SnapshotMirror // optional, may be nil
	pub    Publisher
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	streams map[streamKey]*streamTask

	wg sync.WaitGroup
}

// NewConnector creates a Connector. mirror may be nil when Redis is not
// configured.
func NewConnector(
	cfg Config,
	dialer binance.Dialer,
	stats StatsProvider,
	snapshots *cache.Snapshots,
	mirror domain.SnapshotMirror,
	pub Publisher,
	logger *slog.Logger,
) *Connector {
	return &Connector{
		cfg:     cfg,
		dialer:  dialer,
		stats:   stats,
		cache:   snapshots,
		mirror:  mirror,
		pub:     pub,
		logger:  logger.With(slog.String("component", "feed")),
		streams: make(map[streamKey]*streamTask),
	}
}

// Start opens streams for the initial symbols and starts the stats refresh
// loop. Calling Start while already running is a no-op.
func (c *Connector) Start(ctx context.Context, symbols []string) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.logger.Info("starting feed connector", slog.Int("symbols", len(symbols)))

	c.Subscribe(symbols...)

	c.wg.Add(1)
	go c.statsLoop()
}

// Subscribe opens the ticker and trade streams for each symbol not already
// tracked; already-tracked symbols are skipped.
func (c *Connector) Subscribe(symbols ...string) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}

	var added []string
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, ok := c.streams[streamKey{sym, domain.StreamTicker}]; ok {
			continue
		}
		added = append(added, sym)

		for _, kind := range []domain.StreamKind{domain.StreamTicker, domain.StreamTrade} {
			task := newStreamTask()
			c.streams[streamKey{sym, kind}] = task
			c.wg.Add(1)
			go c.runStream(task, sym, kind)
		}
	}
	c.mu.Unlock()

	if len(added) > 0 {
		// Seed snapshots so REST readers have data before the first tick.
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.refreshStats(added)
		}()
	}
}

// Unsubscribe closes both streams for a symbol, drops it from the tracked
// set, and removes its cached snapshot.
func (c *Connector) Unsubscribe(symbol string) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))

	c.mu.Lock()
	for _, kind := range []domain.StreamKind{domain.StreamTicker, domain.StreamTrade} {
		key := streamKey{sym, kind}
		if task, ok := c.streams[key]; ok {
			task.stop()
			delete(c.streams, key)
		}
	}
	c.mu.Unlock()

	c.cache.Remove(sym)
	if c.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.mirror.RemoveSnapshot(ctx, sym); err != nil {
			c.logger.Warn("mirror remove failed",
				slog.String("symbol", sym),
				slog.String("error", err.Error()),
			)
		}
	}

	c.logger.Info("unsubscribed symbol", slog.String("symbol", sym))
}

// Stop flips the running flag, closes every open stream, and waits for all
// stream goroutines to exit. Streams observe the flag and exit instead of
// reconnecting.
func (c *Connector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancel()
	for key, task := range c.streams {
		task.stop()
		delete(c.streams, key)
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Info("feed connector stopped")
}

// Symbols returns the currently tracked symbols.
func (c *Connector) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(c.streams)/2)
	out := make([]string, 0, len(c.streams)/2)
	for key := range c.streams {
		if _, ok := seen[key.symbol]; ok {
			continue
		}
		seen[key.symbol] = struct{}{}
		out = append(out, key.symbol)
	}
	return out
}

// runStream is the goroutine body for one (symbol, kind) stream: dial, read
// until failure, wait the fixed delay, redial. Only this stream is affected
// by its own failures.
func (c *Connector) runStream(task *streamTask, symbol string, kind domain.StreamKind) {
	defer c.wg.Done()

	log := c.logger.With(
		slog.String("symbol", symbol),
		slog.String("stream", string(kind)),
	)

	for {
		if c.ctx.Err() != nil || task.isStopped() {
			return
		}

		stream, err := c.dialer.DialStream(c.ctx, symbol, kind)
		if err != nil {
			log.Warn("stream connect failed", slog.String("error", err.Error()))
			if !c.waitReconnect(task) {
				return
			}
			continue
		}
		task.setStream(stream)
		log.Info("stream connected")

		c.readStream(stream, kind, log)
		_ = stream.Close()

		if c.ctx.Err() != nil || task.isStopped() {
			return
		}
		log.Warn("stream disconnected, reconnecting")
		if !c.waitReconnect(task) {
			return
		}
	}
}

// waitReconnect sleeps the fixed reconnect delay. It returns false when the
// connector or this stream was stopped in the meantime.
func (c *Connector) waitReconnect(task *streamTask) bool {
	select {
	case <-c.ctx.Done():
		return false
	case <-task.stopCh:
		return false
	case <-time.After(c.cfg.ReconnectWait):
		return !task.isStopped()
	}
}

// readStream consumes one live stream until it fails. Malformed messages are
// dropped and logged; the stream keeps going.
func (c *Connector) readStream(stream binance.Stream, kind domain.StreamKind, log *slog.Logger) {
	for {
		data, err := stream.ReadMessage()
		if err != nil {
			return
		}

		switch kind {
		case domain.StreamTicker:
			snap, err := binance.DecodeTicker(data, time.Now().UTC())
			if err != nil {
				log.Warn("dropping malformed ticker message", slog.String("error", err.Error()))
				continue
			}
			c.applySnapshot(snap)

		case domain.StreamTrade:
			trade, err := binance.DecodeTrade(data)
			if err != nil {
				log.Warn("dropping malformed trade message", slog.String("error", err.Error()))
				continue
			}
			c.pub.PublishTradeExecution(trade)
		}
	}
}

// applySnapshot stores a fresh snapshot, mirrors it, and fans it out.
func (c *Connector) applySnapshot(snap domain.PriceSnapshot) {
	c.cache.Update(snap)
	c.mirrorSnapshot(snap)
	c.pub.PublishPriceUpdate(snap)
}

func (c *Connector) mirrorSnapshot(snap domain.PriceSnapshot) {
	if c.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.mirror.SetSnapshot(ctx, snap); err != nil {
		c.logger.Warn("mirror write failed",
			slog.String("symbol", snap.Symbol),
			slog.String("error", err.Error()),
		)
	}
}

// statsLoop refreshes 24h statistics for every tracked symbol on a fixed
// interval, backing off after failures. Failures never touch the live
// ticker/trade streams.
func (c *Connector) statsLoop() {
	defer c.wg.Done()

	timer := time.NewTimer(c.cfg.StatsInterval)
	defer timer.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-timer.C:
		}

		if ok := c.refreshStats(c.Symbols()); ok {
			timer.Reset(c.cfg.StatsInterval)
		} else {
			timer.Reset(c.cfg.StatsRetryWait)
		}
	}
}

// refreshStats runs one statistics call for the given symbols and merges the
// results into the cache. Reports whether the call succeeded.
func (c *Connector) refreshStats(symbols []string) bool {
	if len(symbols) == 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
	defer cancel()

	stats, err := c.stats.Stats24h(ctx, symbols)
	if err != nil {
		c.logger.Warn("stats refresh failed", slog.String("error", err.Error()))
		return false
	}

	for _, sym := range symbols {
		row, ok := stats[sym]
		if !ok {
			continue
		}
		snap := c.cache.ApplyStats(sym, row, time.Now().UTC())
		c.mirrorSnapshot(snap)
	}

	c.logger.Debug("stats refreshed", slog.Int("symbols", len(symbols)))
	return true
}
