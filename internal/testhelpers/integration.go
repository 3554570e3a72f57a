//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/rent-lookup-service/internal/cache"
	"github.com/kjstillabower/rent-lookup-service/internal/client"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
	"github.com/kjstillabower/rent-lookup-service/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	WeatherAPIKey string
	WeatherAPIURL string
	RatesAPIURL   string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test unless RATES_INTEGRATION is set. The weather key is optional; without it
// the weather store reports not configured.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("RATES_INTEGRATION") == "" {
		t.Skip("RATES_INTEGRATION not set, skipping integration test")
	}

	cfg := IntegrationTestConfig{
		WeatherAPIKey: os.Getenv("WEATHER_API_KEY"),
		WeatherAPIURL: os.Getenv("WEATHER_API_URL"),
		RatesAPIURL:   os.Getenv("RATES_API_URL"),
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: os.Getenv("MEMCACHED_ADDRS"),
	}
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	if cfg.RatesAPIURL == "" {
		cfg.RatesAPIURL = client.DefaultRatesURL
	}
	if cfg.MemcachedAddr == "" {
		cfg.MemcachedAddr = "localhost:11211"
	}
	return cfg
}

// Stores bundles the stores built against the live upstreams.
type Stores struct {
	Rates   *service.RateStore
	Weather *service.WeatherStore
}

// SetupIntegrationStores creates rate and weather stores backed by the real APIs. Memcached
// is used when requested and reachable; otherwise in-memory stores. The returned cleanup
// closes memcached connections.
func SetupIntegrationStores(t *testing.T, cfg IntegrationTestConfig) (Stores, func()) {
	t.Helper()
	retry := client.RetryConfig{Attempts: 2, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second}
	rc := client.NewExchangeRateClient(cfg.RatesAPIURL, 5*time.Second, retry)
	wc := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, 5*time.Second, retry)

	var (
		rateStore    cache.Store[string, models.RateTable]
		weatherStore cache.Store[string, models.WeatherSnapshot]
		cleanup      = func() {}
	)
	if cfg.CacheBackend == "memcached" {
		mcRates := cache.NewMemcached[models.RateTable](cfg.MemcachedAddr, 500*time.Millisecond, 2, time.Hour)
		if err := mcRates.Ping(); err == nil {
			mcWeather := cache.NewMemcached[models.WeatherSnapshot](cfg.MemcachedAddr, 500*time.Millisecond, 2, time.Hour)
			rateStore, weatherStore = mcRates, mcWeather
			cleanup = func() {
				_ = mcRates.Close()
				_ = mcWeather.Close()
			}
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			_ = mcRates.Close()
			t.Logf("Memcached not available (%v), using in-memory cache", err)
		}
	}
	if rateStore == nil {
		rateStore = cache.NewMemory[string, models.RateTable]()
		weatherStore = cache.NewMemory[string, models.WeatherSnapshot]()
	}

	opts := service.Options{CoalesceEnabled: true}
	return Stores{
		Rates:   service.NewRateStore(rc, cache.New(rateStore, 30*time.Minute), opts),
		Weather: service.NewWeatherStore(wc, cache.New(weatherStore, 30*time.Minute), opts),
	}, cleanup
}
