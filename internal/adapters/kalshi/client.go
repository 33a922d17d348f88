// Package kalshi implements the VenueClient port for Kalshi's trade API.
package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/prognocap/alphaengine/internal/domain"
)

const (
	defaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

	// Kalshi documents 10 reads/s and 5 writes/s on the basic tier; run
	// at 60% to leave headroom for manual tooling on the same key.
	readRatePerSec  = 6
	writeRatePerSec = 3

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond

	marketsPageLimit = 200
)

// Client is the Kalshi HTTP client with request signing, rate limiting
// and retries.
type Client struct {
	http         *http.Client
	baseURL      string
	signer       *Signer
	readLimiter  *rate.Limiter
	writeLimiter *rate.Limiter
}

// NewClient creates a Client against the given base URL; empty means
// production.
func NewClient(baseURL string, signer *Signer) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:         &http.Client{Timeout: 10 * time.Second},
		baseURL:      baseURL,
		signer:       signer,
		readLimiter:  rate.NewLimiter(readRatePerSec, 5),
		writeLimiter: rate.NewLimiter(writeRatePerSec, 2),
	}
}

func (c *Client) Name() domain.Venue { return domain.VenueKalshi }

type marketsResponse struct {
	Markets []kalshiMarket `json:"markets"`
	Cursor  string         `json:"cursor"`
}

type kalshiMarket struct {
	Ticker    string  `json:"ticker"`
	Title     string  `json:"title"`
	Status    string  `json:"status"`
	YesAsk    int     `json:"yes_ask"`   // cents, 1-99
	Liquidity float64 `json:"liquidity"` // cents
}

// ListActiveInstruments pages through open markets and normalizes cent
// prices to 0-1 probabilities.
func (c *Client) ListActiveInstruments(ctx context.Context) ([]domain.Instrument, error) {
	var out []domain.Instrument
	cursor := ""
	fetchedAt := time.Now().UTC()

	for {
		q := url.Values{}
		q.Set("status", "open")
		q.Set("limit", fmt.Sprint(marketsPageLimit))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var page marketsResponse
		if err := c.get(ctx, "/markets", q, &page); err != nil {
			return nil, fmt.Errorf("kalshi.ListActiveInstruments: %w", err)
		}

		for _, m := range page.Markets {
			if m.Status != "active" && m.Status != "open" {
				continue
			}
			if m.YesAsk <= 0 || m.YesAsk >= 100 {
				continue
			}
			out = append(out, domain.Instrument{
				Venue:       domain.VenueKalshi,
				ID:          m.Ticker,
				Description: m.Title,
				Price:       float64(m.YesAsk) / 100,
				Liquidity:   m.Liquidity / 100,
				FetchedAt:   fetchedAt,
			})
		}

		if page.Cursor == "" || len(page.Markets) < marketsPageLimit {
			break
		}
		cursor = page.Cursor
	}

	slog.Debug("kalshi: markets fetched", "instruments", len(out))
	return out, nil
}

type orderRequest struct {
	Ticker     string `json:"ticker"`
	Action     string `json:"action"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	Count      int    `json:"count"`
	BuyMaxCost int    `json:"buy_max_cost"` // cents
}

type orderResponse struct {
	Order struct {
		OrderID   string `json:"order_id"`
		YesPrice  int    `json:"yes_price"`
		Status    string `json:"status"`
		CreatedAt string `json:"created_time"`
	} `json:"order"`
}

// PlaceOrder buys YES contracts worth up to amountUSD at the current
// ask. Contract count is floored so the order can never exceed the
// budgeted stake.
func (c *Client) PlaceOrder(ctx context.Context, instrumentID string, amountUSD float64) (domain.OrderReceipt, error) {
	ask, err := c.currentAsk(ctx, instrumentID)
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("kalshi.PlaceOrder: %w", err)
	}

	budgetCents := decimal.NewFromFloat(amountUSD).Mul(decimal.NewFromInt(100))
	count := budgetCents.Div(decimal.NewFromInt(int64(ask))).IntPart()
	if count < 1 {
		return domain.OrderReceipt{}, fmt.Errorf("kalshi.PlaceOrder: stake %.2f buys zero contracts at %d cents", amountUSD, ask)
	}

	req := orderRequest{
		Ticker:     instrumentID,
		Action:     "buy",
		Side:       "yes",
		Type:       "market",
		Count:      int(count),
		BuyMaxCost: int(budgetCents.IntPart()),
	}

	var resp orderResponse
	if err := c.post(ctx, "/portfolio/orders", req, &resp); err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("kalshi.PlaceOrder: %w", err)
	}

	return domain.OrderReceipt{
		VenueOrderID: resp.Order.OrderID,
		FilledPrice:  float64(resp.Order.YesPrice) / 100,
		PlacedAt:     time.Now().UTC(),
	}, nil
}

func (c *Client) currentAsk(ctx context.Context, ticker string) (int, error) {
	var resp struct {
		Market kalshiMarket `json:"market"`
	}
	if err := c.get(ctx, "/markets/"+ticker, nil, &resp); err != nil {
		return 0, err
	}
	if resp.Market.YesAsk <= 0 || resp.Market.YesAsk >= 100 {
		return 0, fmt.Errorf("market %s has no tradable ask", ticker)
	}
	return resp.Market.YesAsk, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.doWithRetry(ctx, c.readLimiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if err := c.sign(req, path); err != nil {
			return nil, err
		}
		return c.http.Do(req)
	}, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.doWithRetry(ctx, c.writeLimiter, func() (*http.Response, error) {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if err := c.sign(req, path); err != nil {
			return nil, err
		}
		return c.http.Do(req)
	}, out)
}

// sign adds the auth headers. The signed path includes the API prefix
// but never the query string.
func (c *Client) sign(req *http.Request, path string) error {
	if c.signer == nil {
		return nil
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	headers, err := c.signer.Headers(req.Method, base.Path+path, time.Now())
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return nil
}

// doWithRetry runs the request with exponential backoff. Write requests
// retry only on transport errors, never on HTTP status, to avoid
// double-placing orders.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	retryStatus := limiter == c.readLimiter

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if retryStatus && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("kalshi: retryable status", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
