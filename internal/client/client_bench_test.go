package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

// BenchmarkClient_BuildURL benchmarks weather request URL construction.
func BenchmarkClient_BuildURL(b *testing.B) {
	c := NewOpenWeatherClient("test-api-key", "https://api.openweathermap.org/data/2.5/weather", 2*time.Second, RetryConfig{})
	coords := models.Coordinates{Lat: -1.9536, Lon: 30.1256}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.buildURL(coords)
	}
}

// BenchmarkClient_ParseRates benchmarks rate table parsing.
func BenchmarkClient_ParseRates(b *testing.B) {
	body := []byte(`{"base":"RWF","rates":{"RWF":1,"USD":0.00069,"EUR":0.00062,"GBP":0.00054,"KES":0.089}}`)
	var resp ratesResponse

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = json.Unmarshal(body, &resp)
	}
}
