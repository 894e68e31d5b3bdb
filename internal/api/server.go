// Package api exposes the calculator, exchange rates and calculation history
// over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gitlab.com/yelinaung/fx-calc/internal/exchange"
	"gitlab.com/yelinaung/fx-calc/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxcalc_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fxcalc_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "endpoint"})
)

// CalculationStore persists calculation history.
type CalculationStore interface {
	Create(ctx context.Context, calc *models.Calculation) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Calculation, error)
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.Calculation, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

// Server routes API requests.
type Server struct {
	rates    exchange.RateRepository
	store    CalculationStore
	validate *validator.Validate
	router   *mux.Router
}

// NewServer builds the router. store may be nil, in which case history
// routes answer 503.
func NewServer(rates exchange.RateRepository, store CalculationStore) *Server {
	s := &Server{
		rates:    rates,
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(instrument)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/calculations/simple", s.handleSimple).Methods(http.MethodPost)
	api.HandleFunc("/calculations/detailed", s.handleDetailed).Methods(http.MethodPost)
	api.HandleFunc("/calculations", s.handleListCalculations).Methods(http.MethodGet)
	api.HandleFunc("/calculations/{id}", s.handleGetCalculation).Methods(http.MethodGet)
	api.HandleFunc("/calculations/{id}", s.handleDeleteCalculation).Methods(http.MethodDelete)
	api.HandleFunc("/calculations/{id}/export", s.handleExportCalculation).Methods(http.MethodGet)

	api.HandleFunc("/exchange-rate", s.handleExchangeRate).Methods(http.MethodGet)
	api.HandleFunc("/exchange-rate/usd-brl", s.handleUSDToBRL).Methods(http.MethodGet)
	api.HandleFunc("/exchange-rate/metadata", s.handleRateMetadata).Methods(http.MethodGet)
	api.HandleFunc("/exchange-rates", s.handleAllRates).Methods(http.MethodGet)
}

// Handler returns the traced root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "fx-calc")
}

// ServeHTTP serves without the tracing wrapper.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}
