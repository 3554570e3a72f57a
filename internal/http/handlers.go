package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/rent-lookup-service/internal/circuitbreaker"
	"github.com/kjstillabower/rent-lookup-service/internal/currency"
	"github.com/kjstillabower/rent-lookup-service/internal/dashboard"
	"github.com/kjstillabower/rent-lookup-service/internal/lifecycle"
	"github.com/kjstillabower/rent-lookup-service/internal/listing"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
	"github.com/kjstillabower/rent-lookup-service/internal/observability"
	"github.com/kjstillabower/rent-lookup-service/internal/service"
	"github.com/kjstillabower/rent-lookup-service/internal/traffic"
	"github.com/kjstillabower/rent-lookup-service/internal/validation"
)

// RatesReader is satisfied by *service.RateStore.
type RatesReader interface {
	GetRates(ctx context.Context) service.Result[models.RateTable]
}

// WeatherReader is satisfied by *service.WeatherStore.
type WeatherReader interface {
	GetWeather(ctx context.Context, coords models.Coordinates) service.Result[models.WeatherSnapshot]
	Configured() bool
}

// HealthConfig holds thresholds and dependency checks for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	StartTime            time.Time
	Version              string
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
	// Breakers maps an upstream source to its circuit breaker, if any.
	Breakers map[string]*circuitbreaker.CircuitBreaker
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	controller       *dashboard.Controller
	dataset          *listing.Dataset
	rates            RatesReader
	weather          WeatherReader
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	controller *dashboard.Controller,
	dataset *listing.Dataset,
	rates RatesReader,
	weather WeatherReader,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		controller:   controller,
		dataset:      dataset,
		rates:        rates,
		weather:      weather,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// ListNeighborhoods handles GET /neighborhoods (autocomplete source).
func (h *Handler) ListNeighborhoods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"neighborhoods": h.dataset.Names(),
	})
}

// GetTypes handles GET /neighborhoods/{name}/types.
func (h *Handler) GetTypes(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	types, err := h.dataset.Types(name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"types": append([]string{listing.FilterAll}, types...),
	})
}

type searchRequest struct {
	Name string `json:"name"`
}

// PostSearch handles POST /search with body {"name": "..."}.
func (h *Handler) PostSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidBody, "request body must be JSON")
		return
	}
	h.search(w, r, req.Name)
}

// GetSearch handles GET /search?q=.
func (h *Handler) GetSearch(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, r.URL.Query().Get("q"))
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, term string) {
	view, err := h.controller.Search(r.Context(), term)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetView handles GET /view.
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	view, err := h.controller.Current(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PatchView handles PATCH /view with body {"type","sort","currency"}; omitted fields are unchanged.
func (h *Handler) PatchView(w http.ResponseWriter, r *http.Request) {
	var opts dashboard.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidBody, "request body must be JSON")
		return
	}
	view, err := h.controller.Apply(r.Context(), opts)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type ratesResponse struct {
	dashboard.RatesView
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates,omitempty"`
}

// GetRates handles GET /rates. Always 200: unavailability is reported in the body.
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	res := h.rates.GetRates(r.Context())
	resp := ratesResponse{RatesView: dashboard.NewRatesView(res), Base: models.BaseCurrency}
	if res.Available() {
		resp.Rates = make(map[string]float64)
		for _, c := range currency.Codes() {
			if v, ok := res.Value.Rate(string(c)); ok {
				resp.Rates[string(c)] = v
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetWeather handles GET /weather?lat=&lon=. Always 200 for valid coordinates.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coords, err := validation.ParseCoordinates(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard.NewWeatherView(h.weather.GetWeather(r.Context(), coords)))
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	version := "dev"
	body := map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"checks":    result.checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil {
		if h.healthConfig.Version != "" {
			version = h.healthConfig.Version
		}
		if !h.healthConfig.StartTime.IsZero() {
			body["uptimeSeconds"] = int64(time.Since(h.healthConfig.StartTime).Seconds())
		}
	}
	body["version"] = version
	writeJSON(w, result.statusCode, body)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > degraded > healthy. Degraded upstreams keep the
// instance in rotation (200) because every widget has a fallback.
func (h *Handler) computeHealthStatus() healthResult {
	checks := h.upstreamChecks()
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, "", checks}
	}

	if win, pct := h.healthConfig.OverloadWindow, h.healthConfig.OverloadThresholdPct; win > 0 && pct > 0 {
		denied := traffic.DenialCount(win)
		_, accepted := traffic.ErrorRate(traffic.SourceHTTP, win)
		if total := denied + accepted; total > 0 && denied*100 >= pct*total {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold", checks}
		}
	}

	for _, name := range []string{"ratesApi", "weatherApi", "cache"} {
		if checks[name] == "unhealthy" {
			return healthResult{"degraded", http.StatusOK, name + "_unhealthy", checks}
		}
	}
	return healthResult{"healthy", http.StatusOK, "", checks}
}

func (h *Handler) upstreamChecks() map[string]string {
	checks := map[string]string{
		"ratesApi":   h.upstreamCheck(traffic.SourceRates),
		"weatherApi": h.upstreamCheck(traffic.SourceWeather),
	}
	if h.weather != nil && !h.weather.Configured() {
		checks["weatherApi"] = "not_configured"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	return checks
}

// upstreamCheck is unhealthy when the source's breaker is open or its error rate breaches
// the degraded threshold within the window.
func (h *Handler) upstreamCheck(source string) string {
	if h.healthConfig == nil {
		return "healthy"
	}
	if cb, ok := h.healthConfig.Breakers[source]; ok && cb != nil && cb.State() == circuitbreaker.StateOpen {
		return "unhealthy"
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(source, h.healthConfig.DegradedWindow)
		if total > 0 && errs*100 >= h.healthConfig.DegradedErrorPct*total {
			return "unhealthy"
		}
	}
	return "healthy"
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
