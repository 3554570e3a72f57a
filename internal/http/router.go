package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/rent-lookup-service/internal/observability"
)

// RouterConfig configures the middleware stack.
type RouterConfig struct {
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
}

// NewRouter registers every route. /health and /metrics skip rate limiting and timeouts.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler())

	api := router.PathPrefix("/").Subrouter()
	api.Use(RateLimitMiddleware(cfg.Limiter))
	api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/neighborhoods", h.ListNeighborhoods).Methods(http.MethodGet)
	api.HandleFunc("/neighborhoods/{name}/types", h.GetTypes).Methods(http.MethodGet)
	api.HandleFunc("/search", h.PostSearch).Methods(http.MethodPost)
	api.HandleFunc("/search", h.GetSearch).Methods(http.MethodGet)
	api.HandleFunc("/view", h.GetView).Methods(http.MethodGet)
	api.HandleFunc("/view", h.PatchView).Methods(http.MethodPatch)
	api.HandleFunc("/rates", h.GetRates).Methods(http.MethodGet)
	api.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)
	return router
}
