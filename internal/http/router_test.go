package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/rent-lookup-service/internal/cache"
	"github.com/kjstillabower/rent-lookup-service/internal/client"
	"github.com/kjstillabower/rent-lookup-service/internal/dashboard"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
	"github.com/kjstillabower/rent-lookup-service/internal/service"
	"github.com/kjstillabower/rent-lookup-service/internal/traffic"
)

type upstreams struct {
	rates        *httptest.Server
	weather      *httptest.Server
	ratesCalls   atomic.Int32
	weatherCalls atomic.Int32
	ratesDown    atomic.Bool
}

func newUpstreams(t *testing.T) *upstreams {
	t.Helper()
	u := &upstreams{}
	u.rates = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.ratesCalls.Add(1)
		if u.ratesDown.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"RWF","rates":{"RWF":1,"USD":0.00069,"EUR":0.00062}}`))
	}))
	u.weather = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.weatherCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"main":{"temp":22.6},"weather":[{"main":"Clouds","description":"few clouds","icon":"02d"}]}`))
	}))
	t.Cleanup(func() {
		u.rates.Close()
		u.weather.Close()
	})
	return u
}

// newStackHandler wires real clients, caches and stores against the fake upstreams.
func newStackHandler(t *testing.T, u *upstreams, clock func() time.Time) *Handler {
	t.Helper()
	retry := client.RetryConfig{Attempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	rc := client.NewExchangeRateClient(u.rates.URL, time.Second, retry)
	wc := client.NewOpenWeatherClient("test-key", u.weather.URL, time.Second, retry)

	rateCache := cache.New[string, models.RateTable](cache.NewMemory[string, models.RateTable](), 30*time.Minute)
	weatherCache := cache.New[string, models.WeatherSnapshot](cache.NewMemory[string, models.WeatherSnapshot](), 30*time.Minute)
	if clock != nil {
		rateCache.SetClock(clock)
		weatherCache.SetClock(clock)
	}
	opts := service.Options{CoalesceEnabled: true, CoalesceTimeout: time.Second}
	rates := service.NewRateStore(rc, rateCache, opts)
	weather := service.NewWeatherStore(wc, weatherCache, opts)

	ds := testDataset(t)
	ctrl := dashboard.NewController(ds, rates, weather, dashboard.Config{MaxSearchLength: 100})
	return NewHandler(ctrl, ds, rates, weather, &HealthConfig{StartTime: time.Now()}, zap.NewNop())
}

func TestRouter_SearchUsesCacheWithinTTL(t *testing.T) {
	traffic.Reset()
	defer traffic.Reset()

	u := newUpstreams(t)
	router := NewRouter(newStackHandler(t, u, nil), zap.NewNop(), RouterConfig{RequestTimeout: 5 * time.Second})

	for _, name := range []string{"Kimironko", "kimironko", "Remera"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q="+name, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("search %q status = %d, body=%s", name, w.Code, w.Body.String())
		}
	}

	if got := u.ratesCalls.Load(); got != 1 {
		t.Errorf("rates upstream calls = %d, want 1", got)
	}
	// Kimironko twice (cached), Remera once.
	if got := u.weatherCalls.Load(); got != 2 {
		t.Errorf("weather upstream calls = %d, want 2", got)
	}
}

func TestRouter_StaleRatesAfterUpstreamFailure(t *testing.T) {
	traffic.Reset()
	defer traffic.Reset()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var clock atomic.Int64
	clock.Store(now.UnixNano())
	u := newUpstreams(t)
	h := newStackHandler(t, u, func() time.Time { return time.Unix(0, clock.Load()) })
	router := NewRouter(h, zap.NewNop(), RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rates", nil))
	var first ratesResponse
	if err := json.NewDecoder(w.Body).Decode(&first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Status != "fresh" {
		t.Fatalf("first status = %q, want fresh", first.Status)
	}

	u.ratesDown.Store(true)
	clock.Store(now.Add(31 * time.Minute).UnixNano())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"name":"Kimironko"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var view dashboard.View
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Rates.Status != "stale" {
		t.Errorf("rates status = %q, want stale", view.Rates.Status)
	}
	found := false
	for _, n := range view.Notices {
		if n.Message == dashboard.RatesStaleNotice {
			found = true
		}
	}
	if !found {
		t.Errorf("notices = %+v, want stale rates notice", view.Notices)
	}
}
