package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"alpaca_go/internal/infra"
)

// Client talks to the Alpaca REST surface: the trading API for orders,
// account and positions, the data API for historical bars. Requests
// pass a shared token bucket and a circuit breaker per host.
type Client struct {
	keyID      string
	secretKey  string
	tradingURL string
	dataURL    string
	userAgent  string

	httpClient *http.Client
	limiter    *infra.RateLimiter
	dataLim    *infra.RateLimiter
	breaker    *infra.CircuitBreaker
	logger     *zap.Logger
}

// NewClient builds a REST client from the adapter config.
func NewClient(cfg *infra.Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		keyID:      cfg.Alpaca.KeyID,
		secretKey:  cfg.Alpaca.SecretKey,
		tradingURL: cfg.Alpaca.TradingURL,
		dataURL:    cfg.Alpaca.DataURL,
		userAgent:  cfg.UserAgent(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    infra.GetTradingLimiter(),
		dataLim:    infra.GetDataLimiter(),
		breaker:    infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("alpaca-rest"), logger),
		logger:     logger.With(zap.String("component", "alpaca_client")),
	}
}

// do runs one REST call. A nil out skips response decoding. Non-2xx
// responses come back as *APIError with the body preserved.
func (c *Client) do(ctx context.Context, limiter *infra.RateLimiter, method, baseURL, path string, query url.Values, body, out any) error {
	if !c.breaker.Allow() {
		return fmt.Errorf("%s %s: circuit breaker open", method, path)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Only infrastructure trouble trips the breaker; a rejected
		// request is a healthy API saying no.
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	c.breaker.RecordSuccess()

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// GetAccount fetches the account snapshot; doubles as liveness probe.
func (c *Client) GetAccount(ctx context.Context) (*accountResponse, error) {
	var acct accountResponse
	if err := c.do(ctx, c.limiter, http.MethodGet, c.tradingURL, "/v2/account", nil, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// ListOrders returns orders filtered by status ("open", "closed",
// "all"). limit <= 0 leaves the server default in place.
func (c *Client) ListOrders(ctx context.Context, status string, limit int) ([]wireOrder, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var orders []wireOrder
	if err := c.do(ctx, c.limiter, http.MethodGet, c.tradingURL, "/v2/orders", query, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder fetches one order by its broker id.
func (c *Client) GetOrder(ctx context.Context, id string) (*wireOrder, error) {
	var w wireOrder
	if err := c.do(ctx, c.limiter, http.MethodGet, c.tradingURL, "/v2/orders/"+id, nil, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateOrder submits a new order.
func (c *Client) CreateOrder(ctx context.Context, req *orderRequest) (*wireOrder, error) {
	var w wireOrder
	if err := c.do(ctx, c.limiter, http.MethodPost, c.tradingURL, "/v2/orders", nil, req, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// PatchOrder replaces the mutable fields of a working order. Alpaca
// answers with a replacement order under a fresh id.
func (c *Client) PatchOrder(ctx context.Context, id string, patch *orderPatchRequest) (*wireOrder, error) {
	var w wireOrder
	if err := c.do(ctx, c.limiter, http.MethodPatch, c.tradingURL, "/v2/orders/"+id, nil, patch, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// DeleteOrder requests cancellation of a working order.
func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	return c.do(ctx, c.limiter, http.MethodDelete, c.tradingURL, "/v2/orders/"+id, nil, nil, nil)
}

// ListPositions returns all open positions.
func (c *Client) ListPositions(ctx context.Context) ([]positionResponse, error) {
	var positions []positionResponse
	if err := c.do(ctx, c.limiter, http.MethodGet, c.tradingURL, "/v2/positions", nil, nil, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// GetBars pages through historical bars for the given tickers until the
// server stops returning a next_page_token.
func (c *Client) GetBars(ctx context.Context, symbols []string, timeframe string, start, end time.Time) (map[string][]wireBar, error) {
	out := make(map[string][]wireBar)
	pageToken := ""

	for {
		query := url.Values{}
		query.Set("symbols", strings.Join(symbols, ","))
		query.Set("timeframe", timeframe)
		query.Set("start", start.UTC().Format(time.RFC3339))
		query.Set("end", end.UTC().Format(time.RFC3339))
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var page barsResponse
		if err := c.do(ctx, c.dataLim, http.MethodGet, c.dataURL, "/v2/stocks/bars", query, nil, &page); err != nil {
			return nil, err
		}
		for sym, bars := range page.Bars {
			out[sym] = append(out[sym], bars...)
		}

		if page.NextPageToken == nil || *page.NextPageToken == "" {
			return out, nil
		}
		pageToken = *page.NextPageToken
	}
}
