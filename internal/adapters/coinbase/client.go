// Package coinbase implements the VenueClient port for Coinbase's
// brokerage event-contract API.
package coinbase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prognocap/alphaengine/internal/domain"
)

const (
	defaultBaseURL = "https://api.coinbase.com"
	apiPrefix      = "/api/v3/brokerage"
)

// Client talks to Coinbase over two resty clients: reads retry with
// backoff, writes never retry so an order is placed at most once.
type Client struct {
	read      *resty.Client
	write     *resty.Client
	apiKey    string
	apiSecret []byte
}

// NewClient builds a Client. The secret is the base64-encoded HMAC key
// from the API key settings; empty baseURL means production.
func NewClient(baseURL, apiKey, apiSecret string) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	secret, err := base64.StdEncoding.DecodeString(apiSecret)
	if err != nil {
		return nil, fmt.Errorf("coinbase.NewClient: decode secret: %w", err)
	}

	read := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second)

	write := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second)

	return &Client{read: read, write: write, apiKey: apiKey, apiSecret: secret}, nil
}

func (c *Client) Name() domain.Venue { return domain.VenueCoinbase }

type product struct {
	ProductID   string `json:"product_id"`
	DisplayName string `json:"display_name"`
	Price       string `json:"price"`      // contract price, 0-1
	Volume24h   string `json:"volume_24h"` // quote currency
	Status      string `json:"status"`
	TradingOff  bool   `json:"is_disabled"`
}

type productsResponse struct {
	Products []product `json:"products"`
}

// ListActiveInstruments fetches tradable event contracts. Prices arrive
// as decimal strings; unparseable products are skipped.
func (c *Client) ListActiveInstruments(ctx context.Context) ([]domain.Instrument, error) {
	var resp productsResponse
	r, err := c.signed(c.read.R().SetContext(ctx), "GET", apiPrefix+"/products", "").
		SetQueryParam("product_type", "EVENT").
		SetResult(&resp).
		Get(apiPrefix + "/products")
	if err != nil {
		return nil, fmt.Errorf("coinbase.ListActiveInstruments: %w", err)
	}
	if r.IsError() {
		return nil, fmt.Errorf("coinbase.ListActiveInstruments: http %d: %s", r.StatusCode(), r.String())
	}

	fetchedAt := time.Now().UTC()
	out := make([]domain.Instrument, 0, len(resp.Products))
	for _, p := range resp.Products {
		if p.Status != "online" || p.TradingOff {
			continue
		}
		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil || price <= 0 || price >= 1 {
			continue
		}
		volume, _ := strconv.ParseFloat(p.Volume24h, 64)
		out = append(out, domain.Instrument{
			Venue:       domain.VenueCoinbase,
			ID:          p.ProductID,
			Description: p.DisplayName,
			Price:       price,
			Liquidity:   volume,
			FetchedAt:   fetchedAt,
		})
	}
	return out, nil
}

type orderRequest struct {
	ClientOrderID string `json:"client_order_id"`
	ProductID     string `json:"product_id"`
	Side          string `json:"side"`
	OrderConfig   struct {
		MarketIOC struct {
			QuoteSize string `json:"quote_size"`
		} `json:"market_market_ioc"`
	} `json:"order_configuration"`
}

type orderResponse struct {
	Success bool `json:"success"`
	Order   struct {
		OrderID      string `json:"order_id"`
		AverageFill  string `json:"average_filled_price"`
	} `json:"success_response"`
	Error struct {
		Message string `json:"message"`
	} `json:"error_response"`
}

// PlaceOrder submits a market IOC buy for amountUSD of the contract.
// The client order ID makes accidental resubmission idempotent on the
// venue side.
func (c *Client) PlaceOrder(ctx context.Context, instrumentID string, amountUSD float64) (domain.OrderReceipt, error) {
	var req orderRequest
	req.ClientOrderID = uuid.NewString()
	req.ProductID = instrumentID
	req.Side = "BUY"
	req.OrderConfig.MarketIOC.QuoteSize = decimal.NewFromFloat(amountUSD).RoundDown(2).String()

	body, err := encodeBody(req)
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("coinbase.PlaceOrder: %w", err)
	}

	var resp orderResponse
	r, err := c.signed(c.write.R().SetContext(ctx), "POST", apiPrefix+"/orders", body).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&resp).
		Post(apiPrefix + "/orders")
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("coinbase.PlaceOrder: %w", err)
	}
	if r.IsError() {
		return domain.OrderReceipt{}, fmt.Errorf("coinbase.PlaceOrder: http %d: %s", r.StatusCode(), r.String())
	}
	if !resp.Success {
		return domain.OrderReceipt{}, fmt.Errorf("coinbase.PlaceOrder: rejected: %s", resp.Error.Message)
	}

	filled, _ := strconv.ParseFloat(resp.Order.AverageFill, 64)
	return domain.OrderReceipt{
		VenueOrderID: resp.Order.OrderID,
		FilledPrice:  filled,
		PlacedAt:     time.Now().UTC(),
	}, nil
}

func encodeBody(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}
	return string(b), nil
}

// signed adds the CB-ACCESS auth headers. The signed message is
// timestamp + method + path + body with the timestamp in whole seconds.
func (c *Client) signed(r *resty.Request, method, path, body string) *resty.Request {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, c.apiSecret)
	mac.Write([]byte(ts + method + path + body))

	return r.
		SetHeader("CB-ACCESS-KEY", c.apiKey).
		SetHeader("CB-ACCESS-SIGN", base64.StdEncoding.EncodeToString(mac.Sum(nil))).
		SetHeader("CB-ACCESS-TIMESTAMP", ts)
}
