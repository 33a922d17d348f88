package coinbase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prognocap/alphaengine/internal/domain"
)

const testSecret = "c2VjcmV0LWtleS1mb3ItdGVzdHM=" // base64("secret-key-for-tests")

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(url, "test-key", testSecret)
	require.NoError(t, err)
	return c
}

func TestNewClient_BadSecret(t *testing.T) {
	_, err := NewClient("", "k", "!!! not base64 !!!")
	assert.Error(t, err)
}

func TestListActiveInstruments_FiltersAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/brokerage/products", r.URL.Path)
		assert.Equal(t, "EVENT", r.URL.Query().Get("product_type"))
		assert.NotEmpty(t, r.Header.Get("CB-ACCESS-SIGN"))
		assert.Equal(t, "test-key", r.Header.Get("CB-ACCESS-KEY"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(productsResponse{Products: []product{
			{ProductID: "BTC-100K", DisplayName: "Bitcoin above 100k", Price: "0.42", Volume24h: "120000", Status: "online"},
			{ProductID: "OFFLINE", DisplayName: "Halted", Price: "0.50", Status: "offline"},
			{ProductID: "DISABLED", DisplayName: "Disabled", Price: "0.50", Status: "online", TradingOff: true},
			{ProductID: "BADPRICE", DisplayName: "Garbage", Price: "n/a", Status: "online"},
			{ProductID: "SETTLED", DisplayName: "Done", Price: "1.0", Status: "online"},
		}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.ListActiveInstruments(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, domain.VenueCoinbase, got[0].Venue)
	assert.Equal(t, "BTC-100K", got[0].ID)
	assert.InDelta(t, 0.42, got[0].Price, 1e-9)
	assert.InDelta(t, 120000.0, got[0].Liquidity, 1e-9)
}

func TestPlaceOrder_SignsBodyAndRounds(t *testing.T) {
	secret, _ := base64.StdEncoding.DecodeString(testSecret)

	var gotReq orderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotReq))

		// Recompute the signature over what actually arrived.
		ts := r.Header.Get("CB-ACCESS-TIMESTAMP")
		tsInt, err := strconv.ParseInt(ts, 10, 64)
		require.NoError(t, err)
		assert.InDelta(t, time.Now().Unix(), tsInt, 5)

		mac := hmac.New(sha256.New, secret)
		mac.Write([]byte(ts + "POST" + "/api/v3/brokerage/orders" + string(body)))
		assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), r.Header.Get("CB-ACCESS-SIGN"))

		var resp orderResponse
		resp.Success = true
		resp.Order.OrderID = "cb-ord-1"
		resp.Order.AverageFill = "0.43"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	receipt, err := c.PlaceOrder(context.Background(), "BTC-100K", 12.3456)
	require.NoError(t, err)

	assert.Equal(t, "BTC-100K", gotReq.ProductID)
	assert.Equal(t, "BUY", gotReq.Side)
	assert.Equal(t, "12.34", gotReq.OrderConfig.MarketIOC.QuoteSize, "quote size rounds down to cents")
	assert.NotEmpty(t, gotReq.ClientOrderID)
	assert.Equal(t, "cb-ord-1", receipt.VenueOrderID)
	assert.InDelta(t, 0.43, receipt.FilledPrice, 1e-9)
}

func TestPlaceOrder_VenueRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp orderResponse
		resp.Error.Message = "insufficient funds"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.PlaceOrder(context.Background(), "BTC-100K", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
}
