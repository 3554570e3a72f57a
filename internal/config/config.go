package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Dataset sources.
const (
	DatasetSourceFile     = "file"
	DatasetSourcePostgres = "postgres"
)

// Cache backends.
const (
	CacheBackendMemory    = "in_memory"
	CacheBackendMemcached = "memcached"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	// WeatherAPIKey may be empty; the weather widget then reports it is not configured.
	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	RatesAPIURL     string
	RatesAPITimeout time.Duration

	DatasetSource string // "file" or "postgres"
	DatasetPath   string
	DatabaseURL   string

	RequestTimeout  time.Duration
	MaxSearchLength int

	CacheTTL              time.Duration
	CacheBackend          string // "in_memory" or "memcached"
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	// CacheRetention is how long expired weather entries are kept in memcached to serve stale.
	CacheRetention time.Duration
	// RatesRetention is the memcached expiry of the rate table (0 = never expires),
	// so the last good table stays available for stale serving.
	RatesRetention time.Duration
	WarmCache      bool
	WarmInterval   time.Duration

	CoalesceEnabled bool
	CoalesceTimeout time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int

	TrackedNeighborhoods []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	RatesAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"rates_api"`

	Dataset struct {
		Source      string `yaml:"source"`
		Path        string `yaml:"path"`
		DatabaseURL string `yaml:"database_url"`
	} `yaml:"dataset"`

	Request struct {
		Timeout         string `yaml:"timeout"`
		MaxSearchLength int    `yaml:"max_search_length"`
	} `yaml:"request"`

	Cache struct {
		Backend        string `yaml:"backend"`
		TTL            string `yaml:"ttl"`
		Retention      string `yaml:"retention"`
		RatesRetention string `yaml:"rates_retention"`
		Warm           *bool  `yaml:"warm"`
		WarmEvery      string `yaml:"warm_interval"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Coalesce struct {
		Enabled *bool  `yaml:"enabled"`
		Timeout string `yaml:"timeout"`
	} `yaml:"coalesce"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Metrics struct {
		TrackedNeighborhoods []string `yaml:"tracked_neighborhoods"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	DatabaseURL   string `yaml:"database_url"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml
// relative to the working directory. A .env file in the working directory, if present, is
// loaded into the environment first without overriding variables already set.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom is Load rooted at dir.
func LoadFrom(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(dir, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv("WEATHER_API_KEY"), sec.WeatherAPIKey)
	cfg.WeatherAPIURL = firstNonEmpty(fc.WeatherAPI.URL, "https://api.openweathermap.org/data/2.5/weather")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)

	cfg.RatesAPIURL = firstNonEmpty(os.Getenv("RATES_API_URL"), fc.RatesAPI.URL, "https://api.exchangerate-api.com/v4/latest/RWF")
	cfg.RatesAPITimeout = parseDurationOrZero(fc.RatesAPI.Timeout, 5*time.Second)

	cfg.DatasetSource = strings.ToLower(firstNonEmpty(os.Getenv("DATASET_SOURCE"), fc.Dataset.Source, DatasetSourceFile))
	cfg.DatasetPath = firstNonEmpty(fc.Dataset.Path, filepath.Join("data", "rwanda.json"))
	if !filepath.IsAbs(cfg.DatasetPath) {
		cfg.DatasetPath = filepath.Join(dir, cfg.DatasetPath)
	}
	cfg.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), sec.DatabaseURL, fc.Dataset.DatabaseURL)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)
	cfg.MaxSearchLength = fc.Request.MaxSearchLength
	if cfg.MaxSearchLength <= 0 {
		cfg.MaxSearchLength = 100
	}

	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 30*time.Minute)
	cfg.CacheBackend = strings.ToLower(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, CacheBackendMemory))
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.CacheRetention = parseDuration(fc.Cache.Retention, 24*time.Hour)
	cfg.RatesRetention = parseDurationOrZero(fc.Cache.RatesRetention, 0)
	if cfg.RatesRetention < 0 {
		cfg.RatesRetention = 0
	}
	cfg.WarmCache = boolOr(fc.Cache.Warm, true)
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.WarmEvery, 25*time.Minute)

	cfg.CoalesceEnabled = boolOr(fc.Coalesce.Enabled, true)
	cfg.CoalesceTimeout = parseDuration(fc.Coalesce.Timeout, 10*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}
	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = boolOr(cb.Enabled, true)
	cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = cb.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.TrackedNeighborhoods = fc.Metrics.TrackedNeighborhoods

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load checks. RequestTimeout is raised above the slower upstream
// timeout so a render can wait for both fetches.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RatesAPITimeout <= 0 {
		return fmt.Errorf("rates_api.timeout must be positive")
	}
	upstream := max(cfg.WeatherAPITimeout, cfg.RatesAPITimeout)
	if cfg.RequestTimeout <= upstream {
		cfg.RequestTimeout = upstream + time.Second
	}
	switch cfg.CacheBackend {
	case CacheBackendMemory, CacheBackendMemcached:
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	switch cfg.DatasetSource {
	case DatasetSourceFile:
	case DatasetSourcePostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("dataset.source postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("dataset.source must be file or postgres, got %q", cfg.DatasetSource)
	}
	if cfg.WarmInterval < 0 {
		return fmt.Errorf("cache.warm_interval must not be negative")
	}
	return nil
}
