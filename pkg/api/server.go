package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"txn-insights/pkg/cache"
	"txn-insights/pkg/cache/memory"
	"txn-insights/pkg/chain"
	"txn-insights/pkg/engine"
	"txn-insights/pkg/logging"
	"txn-insights/pkg/resilience"
	"txn-insights/pkg/writer"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes one read-only endpoint per engine query, plus health,
// status and metrics endpoints.
type Server struct {
	engine   *engine.Engine
	chain    *chain.Chain
	keys     *cache.KeyPattern
	recorder RequestRecorder
	gatherer prometheus.Gatherer
	snapshot func() any
	logger   *logging.Logger
	router   *mux.Router
	server   *http.Server
	config   ServerConfig
	started  time.Time
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Address string

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration

	// IdleTimeout for keep-alive connections
	IdleTimeout time.Duration

	// KeyPrefix is the first segment of every response cache key
	KeyPrefix string
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":8080",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		KeyPrefix:    "txn",
	}
}

// RequestRecorder receives one call per served request. route is the router
// template, e.g. "/topSender".
type RequestRecorder interface {
	RecordHTTPRequest(route, method string, status int, duration time.Duration)
}

// Option configures a Server.
type Option func(*Server)

// WithChain caches encoded responses in c. Without it every request runs
// the query.
func WithChain(c *chain.Chain) Option {
	return func(s *Server) {
		s.chain = c
	}
}

// WithRequestRecorder sets the HTTP metrics sink.
func WithRequestRecorder(r RequestRecorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithGatherer sets the registry served on /metrics. The default is
// prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithMetricsSnapshot sets the function whose result /metrics/json returns.
func WithMetricsSnapshot(fn func() any) Option {
	return func(s *Server) {
		s.snapshot = fn
	}
}

// WithLogger sets the server logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server over e.
func NewServer(e *engine.Engine, config ServerConfig, opts ...Option) *Server {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "txn"
	}

	s := &Server{
		engine:   e,
		keys:     cache.NewKeyPattern(config.KeyPrefix, ":"),
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.L().Named("api"),
		config:   config,
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.routes()
	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.UseEncodedPath()
	r.Use(s.requestID, s.instrument)

	get := func(path string, h http.HandlerFunc) {
		r.HandleFunc(path, h).Methods(http.MethodGet)
	}

	get("/totalTransactionAmount", s.handleTotalAmount)
	get("/totalTransactionAmountSentBy/{senderFullName}", s.handleTotalAmountSentBy)
	get("/maxTransactionAmount", s.handleMaxAmount)
	get("/countUniqueClients", s.handleCountUniqueClients)
	get("/hasOpenComplianceIssues/{clientFullName}", s.handleHasOpenComplianceIssue)
	get("/transactionsByBeneficiaryName", s.handleTransactionsByBeneficiary)
	get("/unsolvedIssueIds", s.handleUnsolvedIssueIDs)
	get("/allSolvedIssueMessages", s.handleSolvedIssueMessages)
	get("/top3TransactionsByAmount", s.handleTop3ByAmount)
	get("/topSender", s.handleTopSender)
	get("/summary", s.handleSummary)

	get("/health", s.handleHealth)
	get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	get("/metrics/json", s.handleMetricsJSON)

	// mux skips middleware for these, so wrap them directly
	r.NotFoundHandler = s.requestID(s.instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such endpoint: " + r.URL.Path, Kind: "not_found"})
	})))
	r.MethodNotAllowedHandler = s.requestID(s.instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed: " + r.Method, Kind: "method_not_allowed"})
	})))

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	go func() {
		s.logger.Info("API server listening", zap.String("address", s.config.Address))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth returns a simple health check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if s.engine.Snapshot() == nil {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
	})
}

type layerStatus struct {
	Name    string `json:"name"`
	Circuit string `json:"circuit,omitempty"`
	Stats   any    `json:"stats,omitempty"`
}

// layerStats returns the counters of layers that keep them.
func layerStats(layer cache.Layer) any {
	switch l := layer.(type) {
	case *memory.Cache:
		return l.Stats()
	case *writer.AsyncWriter:
		return l.Stats()
	}
	return nil
}

// handleStatus returns snapshot and cache information.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "running",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(s.started).String(),
	}

	if snap := s.engine.Snapshot(); snap != nil {
		response["snapshot"] = map[string]interface{}{
			"id":       snap.ID(),
			"source":   snap.Source(),
			"records":  snap.Len(),
			"loadedAt": snap.LoadedAt().UTC().Format(time.RFC3339),
			"index":    snap.IndexStats(),
		}
	}

	if s.chain != nil {
		layers := make([]layerStatus, 0, s.chain.Len())
		for _, layer := range s.chain.Layers() {
			ls := layerStatus{Name: layer.Name()}
			if rl, ok := layer.(*resilience.Layer); ok {
				ls.Circuit = rl.State().String()
				layer = rl.Unwrap()
			}
			ls.Stats = layerStats(layer)
			layers = append(layers, ls)
		}
		response["cache"] = layers
	}

	writeJSON(w, http.StatusOK, response)
}

// handleMetricsJSON returns the in-memory metrics snapshot.
func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	if s.snapshot == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "JSON metrics are not enabled", Kind: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeBody writes an already encoded JSON body.
func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
