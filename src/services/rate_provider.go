package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/logger"
	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/utils"
	"golang.org/x/time/rate"
)

// historicalRateResponse mirrors the provider's JSON shape:
// {"date":"2025-06-01","base":"USD","rates":{"TRY":48.12}}
type historicalRateResponse struct {
	Date  string             `json:"date"`
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// RateProviderClient fetches historical rates over HTTP. Calls are rate
// limited and carry a short timeout so a slow provider degrades to the next
// fallback leg instead of stalling an aggregation pass.
type RateProviderClient struct {
	httpClient http.Client
	limiter    *rate.Limiter
	baseURL    string
}

func NewRateProviderClient(baseURL string, timeout time.Duration) *RateProviderClient {
	return &RateProviderClient{
		httpClient: http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		baseURL:    baseURL,
	}
}

// HistoricalRate fetches the pair's rate for one calendar date. Returns an
// error when the provider is unconfigured, unreachable, or has no figure for
// the date; callers fall through their own chain.
func (c *RateProviderClient) HistoricalRate(ctx context.Context, pair models.CurrencyPair, date time.Time) (decimal.Decimal, error) {
	if c.baseURL == "" {
		return decimal.Decimal{}, fmt.Errorf("rate provider not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Decimal{}, err
	}

	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, utils.FormatDate(date), url.Values{
		"base":    {pair.Base()},
		"symbols": {"TRY"},
	}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("historical rate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("historical rate request returned status %d", resp.StatusCode)
	}

	var payload historicalRateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decoding historical rate response: %w", err)
	}
	value, ok := payload.Rates["TRY"]
	if !ok || value <= 0 {
		return decimal.Decimal{}, fmt.Errorf("no %s rate for %s in provider response", pair, utils.FormatDate(date))
	}

	logger.L.Debug("historical rate fetched", "pair", string(pair), "date", utils.FormatDate(date), "rate", value)
	return decimal.NewFromFloat(value), nil
}
