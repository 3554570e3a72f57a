package service

import (
	"context"

	"github.com/kjstillabower/rent-lookup-service/internal/cache"
	"github.com/kjstillabower/rent-lookup-service/internal/client"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
	"github.com/kjstillabower/rent-lookup-service/internal/observability"
	"github.com/kjstillabower/rent-lookup-service/internal/traffic"
)

// WeatherStore serves weather snapshots keyed by raw coordinates.
type WeatherStore struct {
	client client.WeatherClient
	fetch  *cachedFetch[models.WeatherSnapshot]
}

// NewWeatherStore creates a WeatherStore backed by c.
func NewWeatherStore(wc client.WeatherClient, c *cache.TimeBounded[string, models.WeatherSnapshot], opts Options) *WeatherStore {
	return &WeatherStore{
		client: wc,
		fetch:  newCachedFetch(traffic.SourceWeather, c, opts),
	}
}

// Configured reports whether the weather credential is usable.
func (s *WeatherStore) Configured() bool {
	return s.client.Configured()
}

// GetWeather returns the snapshot for coords. Without a usable credential it returns an
// unavailable Result of KindNotConfigured and touches neither the cache nor the network.
func (s *WeatherStore) GetWeather(ctx context.Context, coords models.Coordinates) Result[models.WeatherSnapshot] {
	if !s.client.Configured() {
		observability.UnavailableTotal.WithLabelValues(traffic.SourceWeather, string(KindNotConfigured)).Inc()
		observability.LoggerFromContext(ctx).Debug("weather not configured, skipping fetch")
		return unavailable[models.WeatherSnapshot](KindNotConfigured, client.ErrNotConfigured)
	}

	res := s.fetch.get(ctx, coords.Key(), func(ctx context.Context) (models.WeatherSnapshot, error) {
		return s.client.GetCurrentWeather(ctx, coords)
	})
	if res.Available() {
		res.Value.FetchedAt = res.FetchedAt
	}
	return res
}

// WarmWeather refreshes the entry for coords. It is a no-op without a credential.
func (s *WeatherStore) WarmWeather(ctx context.Context, coords models.Coordinates) error {
	if !s.client.Configured() {
		return nil
	}
	res := s.GetWeather(ctx, coords)
	if res.Degraded() {
		return res.Err
	}
	return nil
}
