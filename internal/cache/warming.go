package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/rent-lookup-service/internal/models"
	"github.com/kjstillabower/rent-lookup-service/internal/observability"
)

// RateWarmer refreshes the exchange-rate slot. Implemented by the service layer.
type RateWarmer interface {
	WarmRates(ctx context.Context) error
}

// WeatherWarmer refreshes the weather entry for one coordinate pair. Implemented by the service layer.
type WeatherWarmer interface {
	WarmWeather(ctx context.Context, coords models.Coordinates) error
}

// CacheWarmer prefetches the rate table and the weather of every neighborhood so the first
// search of a neighborhood does not pay for two upstream round trips.
type CacheWarmer struct {
	rates   RateWarmer
	weather WeatherWarmer
	logger  *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer. Either warmer may be nil to skip that source.
func NewCacheWarmer(rates RateWarmer, weather WeatherWarmer, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{rates: rates, weather: weather, logger: logger}
}

// Warm refreshes rates and the weather for each coordinate pair concurrently.
// Returns the joined error of every failed key.
func (w *CacheWarmer) Warm(ctx context.Context, coords []models.Coordinates) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming cache", zap.Int("coordinates", len(coords)), zap.Bool("rates", w.rates != nil))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	if w.rates != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.rates.WarmRates(ctx); err != nil {
				record(fmt.Errorf("warm rates: %w", err))
			}
		}()
	}
	if w.weather != nil {
		for _, c := range coords {
			c := c
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := w.weather.WarmWeather(ctx, c); err != nil {
					record(fmt.Errorf("warm weather %s: %w", c.Key(), err))
				}
			}()
		}
	}
	wg.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("cache warming complete", zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return errors.Join(errs...)
	}
	return nil
}

// Schedule starts a gocron job that re-runs Warm every interval. The first run waits for
// the schedule; callers warm synchronously at startup. Stop the returned scheduler on shutdown.
func (w *CacheWarmer) Schedule(interval time.Duration, coords []models.Coordinates, timeout time.Duration) (*gocron.Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("warm interval must be positive, got %s", interval)
	}
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(interval).WaitForSchedule().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := w.Warm(ctx, coords); err != nil {
			w.logger.Warn("periodic cache warm failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule cache warming: %w", err)
	}
	s.StartAsync()
	return s, nil
}
