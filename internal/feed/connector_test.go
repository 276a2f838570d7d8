package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/markethub/internal/cache"
	"github.com/alanyoungcy/markethub/internal/domain"
	"github.com/alanyoungcy/markethub/internal/platform/binance"
)

// fakeStream delivers pushed messages and fails reads once closed.
type fakeStream struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func newFakeStream(msgs ...[]byte) *fakeStream {
	s := &fakeStream{ch: make(chan []byte, 16), done: make(chan struct{})}
	for _, m := range msgs {
		s.ch <- m
	}
	return s
}

func (s *fakeStream) push(m []byte) { s.ch <- m }

func (s *fakeStream) ReadMessage() ([]byte, error) {
	select {
	case <-s.done:
		return nil, errors.New("stream closed")
	case m := <-s.ch:
		return m, nil
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// fakeDialer scripts the outcome of each dial attempt per (symbol, kind).
type fakeDialer struct {
	mu    sync.Mutex
	dials map[streamKey]int
	dial  func(symbol string, kind domain.StreamKind, attempt int) (binance.Stream, error)
}

func newFakeDialer(dial func(symbol string, kind domain.StreamKind, attempt int) (binance.Stream, error)) *fakeDialer {
	return &fakeDialer{dials: make(map[streamKey]int), dial: dial}
}

func (d *fakeDialer) DialStream(_ context.Context, symbol string, kind domain.StreamKind) (binance.Stream, error) {
	d.mu.Lock()
	d.dials[streamKey{symbol, kind}]++
	attempt := d.dials[streamKey{symbol, kind}]
	d.mu.Unlock()
	return d.dial(symbol, kind, attempt)
}

func (d *fakeDialer) count(symbol string, kind domain.StreamKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[streamKey{symbol, kind}]
}

// blockingDial parks every stream until it is closed.
func blockingDial(string, domain.StreamKind, int) (binance.Stream, error) {
	return newFakeStream(), nil
}

// stubStats fails the first `fail` calls, then serves rows.
type stubStats struct {
	mu    sync.Mutex
	calls int
	fail  int
	rows  map[string]domain.Stats24h
}

func (s *stubStats) Stats24h(_ context.Context, _ []string) (map[string]domain.Stats24h, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.fail {
		return nil, errors.New("upstream unavailable")
	}
	if s.rows == nil {
		return map[string]domain.Stats24h{}, nil
	}
	return s.rows, nil
}

func (s *stubStats) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// recordPub collects published events.
type recordPub struct {
	mu     sync.Mutex
	snaps  []domain.PriceSnapshot
	trades []domain.TradeEvent
}

func (p *recordPub) PublishPriceUpdate(snap domain.PriceSnapshot) {
	p.mu.Lock()
	p.snaps = append(p.snaps, snap)
	p.mu.Unlock()
}

func (p *recordPub) PublishTradeExecution(trade domain.TradeEvent) {
	p.mu.Lock()
	p.trades = append(p.trades, trade)
	p.mu.Unlock()
}

func (p *recordPub) snapshots() []domain.PriceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PriceSnapshot(nil), p.snaps...)
}

func (p *recordPub) tradeEvents() []domain.TradeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.TradeEvent(nil), p.trades...)
}

func testConfig() Config {
	return Config{
		ReconnectWait:  10 * time.Millisecond,
		StatsInterval:  time.Hour,
		StatsRetryWait: time.Hour,
	}
}

func newTestConnector(t *testing.T, cfg Config, dialer binance.Dialer, stats StatsProvider) (*Connector, *cache.Snapshots, *recordPub) {
	t.Helper()
	snapshots := cache.NewSnapshots()
	pub := &recordPub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewConnector(cfg, dialer, stats, snapshots, nil, pub, logger)
	t.Cleanup(c.Stop)
	return c, snapshots, pub
}

const tickerMsg = `{"e":"24hrTicker","E":1,"s":"BTCUSDT","p":"500.0","P":"0.79","c":"64000.0","h":"64500.0","l":"63000.0","v":"1000.5"}`
const tradeMsg = `{"e":"trade","E":1,"s":"BTCUSDT","t":7,"p":"64000.0","q":"0.5","T":1767225600000,"m":true}`

func TestConnectorNormalizesAndPublishes(t *testing.T) {
	tickStream := newFakeStream([]byte(tickerMsg))
	tradeStream := newFakeStream([]byte(tradeMsg))

	dialer := newFakeDialer(func(symbol string, kind domain.StreamKind, _ int) (binance.Stream, error) {
		if kind == domain.StreamTicker {
			return tickStream, nil
		}
		return tradeStream, nil
	})

	c, snapshots, pub := newTestConnector(t, testConfig(), dialer, &stubStats{})
	c.Start(context.Background(), []string{"btcusdt"})

	require.Eventually(t, func() bool {
		return len(pub.snapshots()) >= 1 && len(pub.tradeEvents()) >= 1
	}, time.Second, 5*time.Millisecond)

	snap, ok := snapshots.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 64000.0, snap.Price)
	assert.Equal(t, 1000.5, snap.Volume24h)

	trade := pub.tradeEvents()[0]
	assert.Equal(t, "BTCUSDT", trade.Symbol)
	assert.Equal(t, domain.SideSell, trade.Side)
	assert.Equal(t, int64(7), trade.TradeID)
}

func TestConnectorDropsMalformedMessages(t *testing.T) {
	tickStream := newFakeStream([]byte(`{"garbage`), []byte(tickerMsg))

	dialer := newFakeDialer(func(symbol string, kind domain.StreamKind, _ int) (binance.Stream, error) {
		if kind == domain.StreamTicker {
			return tickStream, nil
		}
		return newFakeStream(), nil
	})

	c, snapshots, _ := newTestConnector(t, testConfig(), dialer, &stubStats{})
	c.Start(context.Background(), []string{"BTCUSDT"})

	// The malformed message is dropped and the stream keeps delivering.
	require.Eventually(t, func() bool {
		_, ok := snapshots.Get("BTCUSDT")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestConnectorReconnectsFailedStreamOnly(t *testing.T) {
	ethTickStream := newFakeStream()

	dialer := newFakeDialer(func(symbol string, kind domain.StreamKind, attempt int) (binance.Stream, error) {
		if kind == domain.StreamTrade {
			return newFakeStream(), nil
		}
		if symbol == "ETHUSDT" {
			return ethTickStream, nil
		}
		// BTCUSDT ticker: first dial refused, second gets a live stream.
		if attempt == 1 {
			return nil, errors.New("connection refused")
		}
		return newFakeStream([]byte(tickerMsg)), nil
	})

	c, snapshots, _ := newTestConnector(t, testConfig(), dialer, &stubStats{})
	c.Start(context.Background(), []string{"BTCUSDT", "ETHUSDT"})

	// The failed stream redials after the fixed wait and recovers.
	require.Eventually(t, func() bool {
		_, ok := snapshots.Get("BTCUSDT")
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, dialer.count("BTCUSDT", domain.StreamTicker), 2)

	// The sibling symbol's stream was never torn down.
	assert.Equal(t, 1, dialer.count("ETHUSDT", domain.StreamTicker))

	// And it still works: push a tick through it now.
	ethTick := `{"e":"24hrTicker","E":1,"s":"ETHUSDT","p":"10.0","P":"0.4","c":"2500.0","h":"2550.0","l":"2450.0","v":"88.8"}`
	ethTickStream.push([]byte(ethTick))
	require.Eventually(t, func() bool {
		_, ok := snapshots.Get("ETHUSDT")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeSkipsTrackedSymbols(t *testing.T) {
	dialer := newFakeDialer(blockingDial)

	c, _, _ := newTestConnector(t, testConfig(), dialer, &stubStats{})
	c.Start(context.Background(), []string{"BTCUSDT"})
	c.Subscribe("BTCUSDT", "btcusdt", " btcusdt ")

	assert.Equal(t, 1, dialer.count("BTCUSDT", domain.StreamTicker))
	assert.Equal(t, 1, dialer.count("BTCUSDT", domain.StreamTrade))
	assert.Equal(t, []string{"BTCUSDT"}, c.Symbols())
}

func TestStartIsIdempotent(t *testing.T) {
	dialer := newFakeDialer(blockingDial)

	c, _, _ := newTestConnector(t, testConfig(), dialer, &stubStats{})
	c.Start(context.Background(), []string{"BTCUSDT"})
	c.Start(context.Background(), []string{"BTCUSDT", "ETHUSDT"})

	assert.Equal(t, 1, dialer.count("BTCUSDT", domain.StreamTicker))
	assert.Equal(t, 0, dialer.count("ETHUSDT", domain.StreamTicker))
}

func TestUnsubscribeStopsStreamsAndDropsSnapshot(t *testing.T) {
	tickStream := newFakeStream([]byte(tickerMsg))

	dialer := newFakeDialer(func(symbol string, kind domain.StreamKind, _ int) (binance.Stream, error) {
		if kind == domain.StreamTicker && symbol == "BTCUSDT" {
			return tickStream, nil
		}
		return newFakeStream(), nil
	})

	c, snapshots, _ := newTestConnector(t, testConfig(), dialer, &stubStats{})
	c.Start(context.Background(), []string{"BTCUSDT"})

	require.Eventually(t, func() bool {
		_, ok := snapshots.Get("BTCUSDT")
		return ok
	}, time.Second, 5*time.Millisecond)

	c.Unsubscribe("btcusdt")

	_, ok := snapshots.Get("BTCUSDT")
	assert.False(t, ok)
	assert.Empty(t, c.Symbols())

	// The stopped stream must not redial.
	dials := dialer.count("BTCUSDT", domain.StreamTicker)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, dials, dialer.count("BTCUSDT", domain.StreamTicker))
}

func TestStatsBootstrapSeedsSnapshots(t *testing.T) {
	stats := &stubStats{rows: map[string]domain.Stats24h{
		"BTCUSDT": {
			Symbol:    "BTCUSDT",
			LastPrice: 64000,
			Volume:    1234.5,
			High:      64500,
			Low:       63000,
		},
	}}

	c, snapshots, _ := newTestConnector(t, testConfig(), newFakeDialer(blockingDial), stats)
	c.Start(context.Background(), []string{"BTCUSDT"})

	// Subscribe triggers one immediate refresh so a snapshot exists before
	// the first tick.
	require.Eventually(t, func() bool {
		snap, ok := snapshots.Get("BTCUSDT")
		return ok && snap.Volume24h == 1234.5
	}, time.Second, 5*time.Millisecond)
}

func TestStatsLoopRetriesAfterFailure(t *testing.T) {
	stats := &stubStats{
		fail: 2, // bootstrap call + first loop call fail
		rows: map[string]domain.Stats24h{
			"BTCUSDT": {Symbol: "BTCUSDT", LastPrice: 64000, Volume: 42},
		},
	}

	cfg := Config{
		ReconnectWait:  10 * time.Millisecond,
		StatsInterval:  20 * time.Millisecond,
		StatsRetryWait: 20 * time.Millisecond,
	}
	c, snapshots, _ := newTestConnector(t, cfg, newFakeDialer(blockingDial), stats)
	c.Start(context.Background(), []string{"BTCUSDT"})

	require.Eventually(t, func() bool {
		snap, ok := snapshots.Get("BTCUSDT")
		return ok && snap.Volume24h == 42
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, stats.callCount(), 3)
}

func TestStopClosesStreams(t *testing.T) {
	dialer := newFakeDialer(blockingDial)

	c, _, _ := newTestConnector(t, testConfig(), dialer, &stubStats{})
	c.Start(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	c.Stop()

	assert.Empty(t, c.Symbols())

	// Stop is idempotent and Start-after-Stop stays off.
	c.Stop()
	c.Subscribe("SOLUSDT")
	assert.Equal(t, 0, dialer.count("SOLUSDT", domain.StreamTicker))
}
