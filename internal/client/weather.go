package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/rent-lookup-service/internal/circuitbreaker"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

// PlaceholderWeatherKey is the value shipped in sample configs; it counts as not configured.
const PlaceholderWeatherKey = "YOUR_OPENWEATHER_KEY_HERE"

// WeatherClient fetches current weather for a coordinate pair.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, coords models.Coordinates) (models.WeatherSnapshot, error)
	// Configured reports whether a usable credential is present. When false,
	// GetCurrentWeather fails with ErrNotConfigured without touching the network.
	Configured() bool
}

// OpenWeatherClient calls the OpenWeatherMap current weather endpoint by lat/lon.
type OpenWeatherClient struct {
	apiKey string
	apiURL string
	caller *caller
}

// NewOpenWeatherClient creates a client. An empty or placeholder apiKey yields a client
// whose Configured() is false.
func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration, retry RetryConfig) *OpenWeatherClient {
	return &OpenWeatherClient{
		apiKey: strings.TrimSpace(apiKey),
		apiURL: apiURL,
		caller: newCaller("weather", timeout, retry),
	}
}

// SetCircuitBreaker installs a breaker around each upstream attempt.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.caller.breaker = cb
}

// Configured implements WeatherClient.
func (c *OpenWeatherClient) Configured() bool {
	return IsUsableKey(c.apiKey)
}

// IsUsableKey reports whether key is neither empty nor the sample placeholder.
func IsUsableKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != PlaceholderWeatherKey
}

type openWeatherResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
}

// GetCurrentWeather implements WeatherClient.
func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, coords models.Coordinates) (models.WeatherSnapshot, error) {
	if !c.Configured() {
		return models.WeatherSnapshot{}, ErrNotConfigured
	}
	rawURL, err := c.buildURL(coords)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}

	var apiResp openWeatherResponse
	err = c.caller.get(ctx, rawURL, func(body []byte) error {
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return fmt.Errorf("%w: parse weather response: %v", ErrMalformedResponse, err)
		}
		if len(apiResp.Weather) == 0 {
			return fmt.Errorf("%w: weather response has no conditions", ErrMalformedResponse)
		}
		return nil
	})
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	return mapWeather(apiResp), nil
}

func (c *OpenWeatherClient) buildURL(coords models.Coordinates) (string, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid API URL: %w", err)
	}
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}

func mapWeather(apiResp openWeatherResponse) models.WeatherSnapshot {
	w := apiResp.Weather[0]
	desc := w.Description
	if desc == "" {
		desc = strings.ToLower(w.Main)
	}
	return models.WeatherSnapshot{
		TempCelsius: apiResp.Main.Temp,
		Description: desc,
		IconID:      w.Icon,
	}
}
