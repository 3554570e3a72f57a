package service

import (
	"context"

	"github.com/kjstillabower/rent-lookup-service/internal/cache"
	"github.com/kjstillabower/rent-lookup-service/internal/client"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
	"github.com/kjstillabower/rent-lookup-service/internal/traffic"
)

// RatesKey is the single cache slot holding the RWF rate table.
const RatesKey = "rates:" + models.BaseCurrency

// RateStore serves the exchange-rate table from a time-bounded cache, refetching when
// the slot is missing or stale and falling back to the previous table on failure.
type RateStore struct {
	client client.RatesClient
	fetch  *cachedFetch[models.RateTable]
}

// NewRateStore creates a RateStore backed by c.
func NewRateStore(rc client.RatesClient, c *cache.TimeBounded[string, models.RateTable], opts Options) *RateStore {
	return &RateStore{
		client: rc,
		fetch:  newCachedFetch(traffic.SourceRates, c, opts),
	}
}

// GetRates returns the current rate table. It never fails outright: an unavailable
// Result tells the caller to render RWF only.
func (s *RateStore) GetRates(ctx context.Context) Result[models.RateTable] {
	res := s.fetch.get(ctx, RatesKey, s.client.GetRates)
	if res.Available() {
		res.Value.Base = models.BaseCurrency
		res.Value.FetchedAt = res.FetchedAt
	}
	return res
}

// WarmRates refreshes the slot if it is not fresh. It reports the upstream error when
// the refresh failed.
func (s *RateStore) WarmRates(ctx context.Context) error {
	res := s.GetRates(ctx)
	if res.Degraded() {
		return res.Err
	}
	return nil
}
