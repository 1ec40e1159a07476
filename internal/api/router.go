package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/findash/internal/api/handlers"
	"github.com/wonny/findash/pkg/logger"
	"github.com/wonny/findash/pkg/metrics"
)

// Routes bundles what the router serves. Jobs, Alerts and Metrics may be nil.
type Routes struct {
	Dashboard *handlers.DashboardHandler
	Jobs      *handlers.JobsHandler
	Alerts    http.Handler // websocket alert stream
	Metrics   *metrics.Metrics
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := mux.NewRouter()
	log = log.Component("http")

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics.Handler()).Methods("GET")
	}
	if routes.Alerts != nil {
		r.Handle("/ws/alerts", routes.Alerts).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Dashboard endpoints
	d := routes.Dashboard
	api.HandleFunc("/dashboard", d.GetDashboard).Methods("GET")
	api.HandleFunc("/alerts", d.GetAlerts).Methods("GET")
	api.HandleFunc("/kpis", d.GetKPIs).Methods("GET")
	api.HandleFunc("/correlation", d.GetCorrelation).Methods("GET")
	api.HandleFunc("/prices/tail", d.GetPricesTail).Methods("GET")
	api.HandleFunc("/config", d.GetConfig).Methods("GET")
	api.HandleFunc("/report.md", d.GetReport).Methods("GET")
	api.HandleFunc("/export.xlsx", d.Export).Methods("GET")
	api.HandleFunc("/cache", d.GetCache).Methods("GET")
	api.HandleFunc("/cache/refresh", d.Refresh).Methods("POST")

	// Scheduler endpoints
	if routes.Jobs != nil {
		api.HandleFunc("/jobs", routes.Jobs.ListJobs).Methods("GET")
		api.HandleFunc("/jobs/{name}/run", routes.Jobs.RunJob).Methods("POST")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "findash",
	})
}

// statusRecorder captures the status code for the access log.
// It keeps Hijack working for the websocket upgrade.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
