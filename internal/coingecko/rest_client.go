package coingecko

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coin-exchange-go/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// SimplePrice is the per-coin payload of the /simple/price endpoint.
type SimplePrice struct {
	USD       float64 `json:"usd"`
	Change24h float64 `json:"usd_24h_change"`
	MarketCap float64 `json:"usd_market_cap"`
	Volume24h float64 `json:"usd_24h_vol"`
}

// Client defines the interface for the CoinGecko REST API client.
type Client interface {
	// GetSimplePrices fetches current USD prices plus 24h change, market cap
	// and volume for the given coin ids in a single call.
	GetSimplePrices(ctx context.Context, ids []string) (map[string]SimplePrice, error)

	// GetRealPrice fetches the current USD price for a single coin.
	// Returns 0 together with a non-nil error on failure.
	GetRealPrice(ctx context.Context, id string) (float64, error)
}

// RestClient is a client for the CoinGecko REST API.
// It implements the Client interface.
type RestClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

var _ Client = (*RestClient)(nil)

// NewRestClient creates a new CoinGecko REST API client.
func NewRestClient(cfg *config.CoinGecko, logger *zap.Logger) *RestClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	// The free CoinGecko tier throttles hard; the limiter keeps us under it.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:  client,
		logger:  logger,
		limiter: limiter,
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.RawResponse != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// GetSimplePrices fetches the latest market snapshot for the given coins.
func (c *RestClient) GetSimplePrices(ctx context.Context, ids []string) (map[string]SimplePrice, error) {
	if len(ids) == 0 {
		return map[string]SimplePrice{}, nil
	}

	var prices map[string]SimplePrice

	req := c.client.R().
		SetQueryParams(map[string]string{
			"ids":                 strings.Join(ids, ","),
			"vs_currencies":       "usd",
			"include_24hr_change": "true",
			"include_market_cap":  "true",
			"include_24hr_vol":    "true",
		}).
		SetResult(&prices)

	_, err := c.doRequest(ctx, resty.MethodGet, "/simple/price", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get simple prices: %w", err)
	}

	return prices, nil
}

// GetRealPrice fetches the current USD price for one coin.
func (c *RestClient) GetRealPrice(ctx context.Context, id string) (float64, error) {
	var prices map[string]SimplePrice

	req := c.client.R().
		SetQueryParams(map[string]string{
			"ids":           id,
			"vs_currencies": "usd",
		}).
		SetResult(&prices)

	_, err := c.doRequest(ctx, resty.MethodGet, "/simple/price", req)
	if err != nil {
		return 0, fmt.Errorf("failed to get price for '%s': %w", id, err)
	}

	price, ok := prices[id]
	if !ok {
		return 0, fmt.Errorf("no price returned for '%s'", id)
	}

	return price.USD, nil
}
