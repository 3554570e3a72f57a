package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/rent-lookup-service/internal/cache"
	"github.com/kjstillabower/rent-lookup-service/internal/circuitbreaker"
	"github.com/kjstillabower/rent-lookup-service/internal/client"
	"github.com/kjstillabower/rent-lookup-service/internal/config"
	"github.com/kjstillabower/rent-lookup-service/internal/dashboard"
	httphandler "github.com/kjstillabower/rent-lookup-service/internal/http"
	"github.com/kjstillabower/rent-lookup-service/internal/lifecycle"
	"github.com/kjstillabower/rent-lookup-service/internal/listing"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
	"github.com/kjstillabower/rent-lookup-service/internal/observability"
	"github.com/kjstillabower/rent-lookup-service/internal/service"
	"github.com/kjstillabower/rent-lookup-service/internal/traffic"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app is the wired service. closers run in order on shutdown.
type app struct {
	handler http.Handler
	dataset *listing.Dataset
	rates   *service.RateStore
	weather *service.WeatherStore
	closers []func() error
}

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := buildApp(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		logger.Fatal("startup", zap.Error(err))
	}

	scheduler := startWarming(cfg, a, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval, logger); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			logger.Error("close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// buildApp wires dataset, clients, caches, stores, controller and router. It performs no
// upstream calls; warming is started separately.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	dataset, err := loadDataset(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.dataset = dataset
	observability.SetTrackedNeighborhoods(cfg.TrackedNeighborhoods)

	retry := client.RetryConfig{
		Attempts:  cfg.RetryAttempts,
		BaseDelay: cfg.RetryBaseDelay,
		MaxDelay:  cfg.RetryMaxDelay,
	}
	ratesClient := client.NewExchangeRateClient(cfg.RatesAPIURL, cfg.RatesAPITimeout, retry)
	weatherClient := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout, retry)
	if !weatherClient.Configured() {
		logger.Warn("weather API key not set; weather widget will report it is not configured")
	}

	breakers := map[string]*circuitbreaker.CircuitBreaker{}
	if cfg.CircuitBreakerEnabled {
		breakers[traffic.SourceRates] = newBreaker(cfg, "rates_api", logger)
		breakers[traffic.SourceWeather] = newBreaker(cfg, "weather_api", logger)
		ratesClient.SetCircuitBreaker(breakers[traffic.SourceRates])
		weatherClient.SetCircuitBreaker(breakers[traffic.SourceWeather])
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		StartTime:            time.Now(),
		Version:              version,
		Breakers:             breakers,
	}

	var (
		rateStore    cache.Store[string, models.RateTable]
		weatherStore cache.Store[string, models.WeatherSnapshot]
	)
	switch cfg.CacheBackend {
	case config.CacheBackendMemcached:
		mcRates := cache.NewMemcached[models.RateTable](cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.RatesRetention)
		mcWeather := cache.NewMemcached[models.WeatherSnapshot](cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.CacheRetention)
		if err := mcRates.Ping(); err != nil {
			logger.Warn("memcached not reachable at startup", zap.String("addrs", cfg.MemcachedAddrs), zap.Error(err))
		}
		rateStore, weatherStore = mcRates, mcWeather
		healthConfig.CachePing = mcRates.Ping
		a.closers = append(a.closers, mcRates.Close, mcWeather.Close)
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		rateStore = cache.NewMemory[string, models.RateTable]()
		weatherStore = cache.NewMemory[string, models.WeatherSnapshot]()
		logger.Info("cache backend: in_memory")
	}

	opts := service.Options{CoalesceEnabled: cfg.CoalesceEnabled, CoalesceTimeout: cfg.CoalesceTimeout}
	a.rates = service.NewRateStore(ratesClient, cache.New(rateStore, cfg.CacheTTL), opts)
	a.weather = service.NewWeatherStore(weatherClient, cache.New(weatherStore, cfg.CacheTTL), opts)

	controller := dashboard.NewController(dataset, a.rates, a.weather, dashboard.Config{MaxSearchLength: cfg.MaxSearchLength})
	handler := httphandler.NewHandler(controller, dataset, a.rates, a.weather, healthConfig, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	a.handler = httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	})
	return a, nil
}

func loadDataset(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*listing.Dataset, error) {
	if cfg.DatasetSource == config.DatasetSourcePostgres {
		src, err := listing.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open dataset database: %w", err)
		}
		defer func() { _ = src.Close() }()
		ds, err := listing.Load(ctx, src)
		if err != nil {
			return nil, err
		}
		logger.Info("dataset loaded", zap.String("source", "postgres"), zap.Int("neighborhoods", ds.Len()))
		return ds, nil
	}
	ds, err := listing.Load(ctx, listing.FileSource{Path: cfg.DatasetPath})
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded", zap.String("source", cfg.DatasetPath), zap.Int("neighborhoods", ds.Len()))
	return ds, nil
}

func newBreaker(cfg *config.Config, component string, logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	observability.CircuitBreakerState.WithLabelValues(component).Set(float64(circuitbreaker.StateClosed))
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Component:        component,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(component, from.String(), to.String(), float64(to))
			logger.Warn("circuit breaker state change",
				zap.String("component", component),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// startWarming prefetches rates and every neighborhood's weather, then schedules refreshes
// before the TTL lapses. Returns nil when warming is disabled.
func startWarming(cfg *config.Config, a *app, logger *zap.Logger) *gocron.Scheduler {
	if !cfg.WarmCache {
		return nil
	}
	var weather cache.WeatherWarmer
	if a.weather.Configured() {
		weather = a.weather
	}
	warmer := cache.NewCacheWarmer(a.rates, weather, logger)
	coords := a.dataset.Coordinates()

	warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := warmer.Warm(warmCtx, coords); err != nil {
		logger.Warn("cache warming failed", zap.Error(err))
	}
	warmCancel()

	if cfg.WarmInterval <= 0 {
		return nil
	}
	scheduler, err := warmer.Schedule(cfg.WarmInterval, coords, 30*time.Second)
	if err != nil {
		logger.Error("schedule cache warming", zap.Error(err))
		return nil
	}
	return scheduler
}
