package http

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kjstillabower/rent-lookup-service/internal/dashboard"
	"github.com/kjstillabower/rent-lookup-service/internal/listing"
)

func setupBenchmarkRouter(b *testing.B) http.Handler {
	b.Helper()
	ds, err := listing.LoadFile(filepath.Join("..", "..", "data", "rwanda.json"))
	if err != nil {
		b.Fatalf("LoadFile() error = %v", err)
	}
	rates, weather := availableRates(), availableWeather()
	ctrl := dashboard.NewController(ds, rates, weather, dashboard.Config{MaxSearchLength: 100})
	h := NewHandler(ctrl, ds, rates, weather, nil, zap.NewNop())
	return NewRouter(h, zap.NewNop(), RouterConfig{})
}

func BenchmarkHandler_Search(b *testing.B) {
	router := setupBenchmarkRouter(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"name":"Kimironko"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			b.Fatalf("status = %d", w.Code)
		}
	}
}

func BenchmarkHandler_PatchView(b *testing.B) {
	router := setupBenchmarkRouter(b)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/search?q=Remera", nil))
	bodies := []string{`{"sort":"asc"}`, `{"sort":"desc","currency":"USD"}`, `{"type":"Studio","currency":"EUR"}`}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPatch, "/view", strings.NewReader(bodies[i%len(bodies)]))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

func BenchmarkHandler_ListNeighborhoods(b *testing.B) {
	router := setupBenchmarkRouter(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/neighborhoods", nil))
	}
}
