package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/markethub/internal/domain"
)

// RESTClient queries the exchange REST API.
type RESTClient struct {
	host string
	http *http.Client
}

// NewRESTClient creates a RESTClient for the given REST host, e.g.
// "https://api.binance.com".
func NewRESTClient(host string) *RESTClient {
	return &RESTClient{
		host: strings.TrimRight(host, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// Stats24h fetches 24-hour rolling statistics for the given symbols in a
// single call to /api/v3/ticker/24hr and returns them keyed by symbol.
// Symbols absent from the response are simply missing from the map.
func (c *RESTClient) Stats24h(ctx context.Context, symbols []string) (map[string]domain.Stats24h, error) {
	if len(symbols) == 0 {
		return map[string]domain.Stats24h{}, nil
	}

	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(s)
	}

	// The endpoint takes a JSON-array-encoded symbols parameter.
	arr, err := json.Marshal(upper)
	if err != nil {
		return nil, fmt.Errorf("binance: stats: encode symbols: %w", err)
	}

	u, err := url.Parse(c.host + "/api/v3/ticker/24hr")
	if err != nil {
		return nil, fmt.Errorf("binance: stats: %w", err)
	}
	q := u.Query()
	q.Set("symbols", string(arr))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("binance: stats: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance: stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("binance: stats: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var entries []statsEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("binance: stats: decode response: %w", err)
	}

	out := make(map[string]domain.Stats24h, len(entries))
	for _, e := range entries {
		stats, err := e.toDomain()
		if err != nil {
			// One malformed row should not discard the whole refresh.
			continue
		}
		out[stats.Symbol] = stats
	}

	return out, nil
}
