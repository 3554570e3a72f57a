package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/rent-lookup-service/internal/circuitbreaker"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

// DefaultRatesURL returns RWF-based rates and needs no credential.
const DefaultRatesURL = "https://api.exchangerate-api.com/v4/latest/RWF"

// RatesClient fetches the RWF rate table.
type RatesClient interface {
	GetRates(ctx context.Context) (models.RateTable, error)
}

// ExchangeRateClient calls an exchangerate-api style endpoint that returns {base, rates}.
type ExchangeRateClient struct {
	apiURL string
	caller *caller
}

// NewExchangeRateClient creates a client for apiURL (DefaultRatesURL when empty).
func NewExchangeRateClient(apiURL string, timeout time.Duration, retry RetryConfig) *ExchangeRateClient {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultRatesURL
	}
	return &ExchangeRateClient{
		apiURL: apiURL,
		caller: newCaller("rates", timeout, retry),
	}
}

// SetCircuitBreaker installs a breaker around each upstream attempt.
func (c *ExchangeRateClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.caller.breaker = cb
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// GetRates implements RatesClient. A body without rates, or with a base other than RWF,
// is a malformed response.
func (c *ExchangeRateClient) GetRates(ctx context.Context) (models.RateTable, error) {
	var apiResp ratesResponse
	err := c.caller.get(ctx, c.apiURL, func(body []byte) error {
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return fmt.Errorf("%w: parse rates response: %v", ErrMalformedResponse, err)
		}
		if len(apiResp.Rates) == 0 {
			return fmt.Errorf("%w: rates response has no rates", ErrMalformedResponse)
		}
		if apiResp.Base != "" && !strings.EqualFold(apiResp.Base, models.BaseCurrency) {
			return fmt.Errorf("%w: rates base %q, want %s", ErrMalformedResponse, apiResp.Base, models.BaseCurrency)
		}
		return nil
	})
	if err != nil {
		return models.RateTable{}, err
	}
	return models.RateTable{Base: models.BaseCurrency, Rates: apiResp.Rates}, nil
}
