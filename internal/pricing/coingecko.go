package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Default Coingecko client configuration.
const (
	CoingeckoBaseURL          = "https://api.coingecko.com/api/v3"
	DefaultCoingeckoTimeout   = 25 * time.Second
	DefaultCoingeckoRetries   = 3
	DefaultCoingeckoRetryWait = 1 * time.Second
	DefaultCoingeckoMaxWait   = 8 * time.Second
)

// CoingeckoClient fetches historical USD prices from the Coingecko API.
type CoingeckoClient struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryWait  time.Duration
	maxWait    time.Duration
}

// CoingeckoOption configures CoingeckoClient.
type CoingeckoOption func(*CoingeckoClient)

// WithCoingeckoBaseURL overrides the API base URL.
func WithCoingeckoBaseURL(u string) CoingeckoOption {
	return func(c *CoingeckoClient) {
		c.baseURL = u
	}
}

// WithCoingeckoHTTPClient sets a custom http.Client.
func WithCoingeckoHTTPClient(client *http.Client) CoingeckoOption {
	return func(c *CoingeckoClient) {
		c.client = client
	}
}

// WithCoingeckoRetries sets maximum retry attempts.
func WithCoingeckoRetries(n int) CoingeckoOption {
	return func(c *CoingeckoClient) {
		c.maxRetries = n
	}
}

// NewCoingeckoClient creates a Coingecko API client.
func NewCoingeckoClient(opts ...CoingeckoOption) *CoingeckoClient {
	c := &CoingeckoClient{
		baseURL:    CoingeckoBaseURL,
		client:     &http.Client{Timeout: DefaultCoingeckoTimeout},
		maxRetries: DefaultCoingeckoRetries,
		retryWait:  DefaultCoingeckoRetryWait,
		maxWait:    DefaultCoingeckoMaxWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type coingeckoHistory struct {
	MarketData *struct {
		CurrentPrice map[string]json.Number `json:"current_price"`
	} `json:"market_data"`
}

type coingeckoRates struct {
	Rates map[string]struct {
		Value json.Number `json:"value"`
	} `json:"rates"`
}

// PriceUSD returns the USD price of a coin on the day of ts, or
// ErrUnavailable when Coingecko has no market data for it.
func (c *CoingeckoClient) PriceUSD(ctx context.Context, coin string, ts time.Time) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("date", ts.UTC().Format("02-01-2006"))
	params.Set("localization", "false")

	var hist coingeckoHistory
	if err := c.get(ctx, "/coins/"+url.PathEscape(coin)+"/history", params, &hist); err != nil {
		return decimal.Zero, err
	}
	if hist.MarketData == nil {
		return decimal.Zero, ErrUnavailable
	}
	usd, ok := hist.MarketData.CurrentPrice["usd"]
	if !ok {
		return decimal.Zero, ErrUnavailable
	}
	price, err := decimal.NewFromString(usd.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse coingecko price %q: %w", usd, err)
	}
	return price, nil
}

// AUDPerUSD returns the AUD value of one USD from the exchange_rates
// endpoint.
func (c *CoingeckoClient) AUDPerUSD(ctx context.Context) (decimal.Decimal, error) {
	var rates coingeckoRates
	if err := c.get(ctx, "/exchange_rates", nil, &rates); err != nil {
		return decimal.Zero, err
	}
	aud, okAUD := rates.Rates["aud"]
	usd, okUSD := rates.Rates["usd"]
	if !okAUD || !okUSD {
		return decimal.Zero, ErrUnavailable
	}
	audValue, err := decimal.NewFromString(aud.Value.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse aud rate: %w", err)
	}
	usdValue, err := decimal.NewFromString(usd.Value.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse usd rate: %w", err)
	}
	if usdValue.IsZero() {
		return decimal.Zero, ErrUnavailable
	}
	return audValue.Div(usdValue), nil
}

// get performs a GET request with retries and exponential backoff.
func (c *CoingeckoClient) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var lastErr error
	wait := c.retryWait
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
			if wait > c.maxWait {
				wait = c.maxWait
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("build coingecko request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusNotFound {
			return ErrUnavailable
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("coingecko status %d: %s", resp.StatusCode, string(body))
			continue
		}
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode coingecko response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("coingecko request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}
