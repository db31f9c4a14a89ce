// Package httpapi is the read-only HTTP front-end, built on gorilla/mux
// with a requestID/CORS/metrics middleware chain and Prometheus request
// metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sawpanic/marketfeed/internal/model"
	"github.com/sawpanic/marketfeed/internal/store"
)

// Source is the read-only view the API consumes: a snapshot accessor plus
// the Store for point queries and a force-refresh trigger. It deliberately
// never reaches into scheduler internals.
type Source interface {
	Snapshot() model.Snapshot
	Store() store.Store
	RequestRefresh()
}

// Server is the HTTP front-end.
type Server struct {
	router  *mux.Router
	httpSrv *http.Server
	src     Source
	log     zerolog.Logger
	startAt time.Time
	metrics *metricsSet
}

type metricsSet struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	entries  prometheus.Gauge
	news     prometheus.Gauge
}

func newMetrics() *metricsSet {
	return &metricsSet{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_http_requests_total",
			Help: "Total HTTP requests by route and status class.",
		}, []string{"route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketfeed_http_request_duration_seconds",
			Help:    "HTTP request duration by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketfeed_snapshot_entries",
			Help: "Number of data point entries in the live snapshot.",
		}),
		news: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketfeed_snapshot_news",
			Help: "Number of news items in the live snapshot.",
		}),
	}
}

// New builds a Server bound to addr ("host:port" or ":port"); it does not
// start listening until Start is called.
func New(src Source, addr string, log zerolog.Logger) *Server {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.requests, m.duration, m.entries, m.news)

	s := &Server{
		router:  mux.NewRouter(),
		src:     src,
		log:     log,
		startAt: time.Now(),
		metrics: m,
	}
	s.setupRoutes(reg)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(reg *prometheus.Registry) {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.metricsMiddleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/entries", s.handleEntries).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/news", s.handleNews).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/sources", s.handleSources).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/entries/{symbol}/history", s.handleHistory).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost, http.MethodOptions)

	s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

// Start blocks serving until the listener errors or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http api listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware allows any origin (a local market-data daemon has no
// cookie-bound session to protect) and answers OPTIONS on the matched
// /api/v1 routes before their handlers run.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWrapper{ResponseWriter: w, status: http.StatusOK}
		route := routeTemplate(r)

		next.ServeHTTP(wrapped, r)

		s.metrics.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		s.metrics.requests.WithLabelValues(route, statusClass(wrapped.status)).Inc()
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

type statusWrapper struct {
	http.ResponseWriter
	status int
}

func (w *statusWrapper) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	category := r.URL.Query().Get("category")
	symbol := r.URL.Query().Get("symbol")

	out := make([]model.DataPoint, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		if category != "" && string(e.Category) != category {
			continue
		}
		if symbol != "" && !strings.Contains(strings.ToUpper(e.Symbol), strings.ToUpper(symbol)) {
			continue
		}
		out = append(out, e)
	}
	s.metrics.entries.Set(float64(len(snap.Entries)))
	writeJSON(w, map[string]interface{}{"data": out, "count": len(out)})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	category := r.URL.Query().Get("category")

	out := make([]model.NewsItem, 0, len(snap.News))
	for _, n := range snap.News {
		if category != "" && string(n.Category) != category {
			continue
		}
		out = append(out, n)
	}
	s.metrics.news.Set(float64(len(snap.News)))
	writeJSON(w, map[string]interface{}{"data": out, "count": len(out)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	count, err := s.src.Store().Count(r.Context())
	if err != nil {
		count = -1
	}
	writeJSON(w, map[string]interface{}{
		"status":          "ok",
		"uptime_seconds":  int64(time.Since(s.startAt).Seconds()),
		"entries_count":   len(snap.Entries),
		"news_count":      len(snap.News),
		"persisted_count": count,
		"built_at":        snap.BuiltAt,
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.src.Store().SourceStatuses(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	now := time.Now()
	type row struct {
		model.SourceStatus
		Health     model.HealthTag `json:"health"`
		SecondsAgo int64           `json:"seconds_ago"`
	}
	out := make([]row, 0, len(statuses))
	for _, st := range statuses {
		secondsAgo := int64(-1)
		if !st.LastFetched.IsZero() {
			secondsAgo = int64(now.Sub(st.LastFetched).Seconds())
		}
		out = append(out, row{SourceStatus: st, Health: st.Health(), SecondsAgo: secondsAgo})
	}
	writeJSON(w, map[string]interface{}{"data": out, "count": len(out)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	points, err := s.src.Store().History(r.Context(), symbol, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"symbol": symbol, "data": points, "count": len(points)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.src.RequestRefresh()
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]interface{}{"status": "refresh_requested"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	writeJSON(w, map[string]interface{}{"error": fmt.Sprintf("no such endpoint: %s", r.URL.Path)})
}
