// Package server provides a minimal HTTP query surface for an embedded
// GraphForge engine: a single POST /query endpoint returning columns and
// rows as JSON, plus discovery/health endpoints, in the teacher's
// Config/DefaultConfig/Server/Start/Stop/Addr/Stats shape — minus every
// Neo4j-Bolt-compatibility, auth, vector-search, GDPR, and admin concern
// that shape originally carried. spec.md treats a CLI/REPL (and by
// extension any network surface) as outside core scope; this package
// exists only because cmd/graphforge needs something to serve over.
//
// Example:
//
//	eng, _ := engine.Open(engine.DefaultConfig())
//	srv, _ := server.New(eng, server.DefaultConfig())
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Stop(context.Background())
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/graphforge/graphforge/pkg/engine"
	"github.com/graphforge/graphforge/pkg/value"
)

// ErrServerClosed is returned by Start after Stop has already been called.
var ErrServerClosed = fmt.Errorf("server closed")

// Config holds HTTP server listen settings.
type Config struct {
	// Address to bind to.
	Address string
	// Port to listen on.
	Port int
	// ReadTimeout/WriteTimeout/IdleTimeout bound a connection's lifetime.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// MaxRequestSize caps a request body in bytes.
	MaxRequestSize int64
}

// DefaultConfig returns a Config listening on localhost:7601 with a 10MB
// request size cap.
func DefaultConfig() *Config {
	return &Config{
		Address:        "127.0.0.1",
		Port:           7601,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024,
	}
}

// Server serves query requests against a single embedded engine.Engine.
//
// Lifecycle: New, then Start, then (eventually) Stop for graceful shutdown.
type Server struct {
	config *Config
	eng    *engine.Engine

	httpServer *http.Server
	listener   net.Listener

	closed  atomic.Bool
	started time.Time

	requestCount   atomic.Int64
	errorCount     atomic.Int64
	activeRequests atomic.Int64
}

// New creates a server over eng. config may be nil, in which case
// DefaultConfig() is used.
func New(eng *engine.Engine, config *Config) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("server: engine required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{config: config, eng: eng}, nil
}

// Start begins listening and returns once the listener is bound; requests
// are served from a background goroutine.
func (s *Server) Start() error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.started = time.Now()

	s.httpServer = &http.Server{
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Printf("graphforge server: %v\n", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests to
// finish or ctx to expire. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the server's bound listen address, valid after Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Stats returns current server runtime statistics.
func (s *Server) Stats() Stats {
	return Stats{
		Uptime:         time.Since(s.started),
		RequestCount:   s.requestCount.Load(),
		ErrorCount:     s.errorCount.Load(),
		ActiveRequests: s.activeRequests.Load(),
	}
}

// Stats holds server metrics.
type Stats struct {
	Uptime         time.Duration `json:"uptime"`
	RequestCount   int64         `json:"request_count"`
	ErrorCount     int64         `json:"error_count"`
	ActiveRequests int64         `json:"active_requests"`
}

func (s *Server) buildRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleDiscovery)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/query", s.handleQuery)

	var h http.Handler = mux
	h = s.metricsMiddleware(h)
	h = s.recoveryMiddleware(h)
	h = s.loggingMiddleware(h)
	return h
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if r.URL.Path != "/health" {
			fmt.Printf("[HTTP] %s %s %d %v\n", r.Method, r.URL.Path, wrapped.status, time.Since(start))
		}
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				fmt.Printf("PANIC: %v\n%s\n", err, buf[:n])
				s.errorCount.Add(1)
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requestCount.Add(1)
		s.activeRequests.Add(1)
		defer s.activeRequests.Add(-1)
		next.ServeHTTP(w, r)
	})
}

// QueryRequest is the POST /query request body.
type QueryRequest struct {
	Query  string                 `json:"query"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// QueryResponse is the POST /query success response body.
type QueryResponse struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// QueryErrorResponse is the POST /query error response body.
type QueryErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req QueryRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	params, err := paramsToValues(req.Params)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid params: %v", err))
		return
	}

	result, err := s.eng.Execute(r.Context(), req.Query, params)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := QueryResponse{
		Columns: result.Columns,
		Rows:    make([][]interface{}, len(result.Rows)),
	}
	for i, row := range result.Rows {
		names := result.Columns
		if len(names) == 0 {
			names = row.Names()
		}
		out := make([]interface{}, len(names))
		for j, name := range names {
			v, _ := row.Get(name)
			out[j] = valueToJSON(v)
		}
		resp.Rows[i] = out
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "graphforge",
		"version": "0.1",
		"query":   "/query",
		"health":  "/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// paramsToValues converts a JSON-decoded params map into GraphForge's typed
// value.Value representation, the reverse of valueToJSON.
func paramsToValues(params map[string]interface{}) (map[string]value.Value, error) {
	if params == nil {
		return nil, nil
	}
	out := make(map[string]value.Value, len(params))
	for k, v := range params {
		cv, err := jsonToValue(v)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", k, err)
		}
		out[k] = cv
	}
	return out, nil
}

func jsonToValue(v interface{}) (value.Value, error) {
	switch x := v.(type) {
	case nil:
		return value.Null, nil
	case bool:
		return value.Bool(x), nil
	case string:
		return value.Str(x), nil
	case float64:
		if x == float64(int64(x)) {
			return value.Int(int64(x)), nil
		}
		return value.Float(x), nil
	case []interface{}:
		items := make([]value.Value, len(x))
		for i, it := range x {
			cv, err := jsonToValue(it)
			if err != nil {
				return value.Null, err
			}
			items[i] = cv
		}
		return value.ListOf(items), nil
	case map[string]interface{}:
		m := value.NewOrderedMap()
		for k, mv := range x {
			cv, err := jsonToValue(mv)
			if err != nil {
				return value.Null, err
			}
			m.Set(k, cv)
		}
		return value.MapOf(m), nil
	default:
		return value.Null, fmt.Errorf("unsupported JSON type %T", v)
	}
}

// valueToJSON converts a GraphForge value.Value into a plain interface{}
// suitable for encoding/json, the way the teacher's handlers flattened
// typed row values into a Neo4j-format []interface{} row.
func valueToJSON(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBoolean:
		return v.Bool()
	case value.KindInt:
		return v.Int()
	case value.KindFloat, value.KindDistance:
		return v.Float()
	case value.KindString:
		return v.String()
	case value.KindList:
		items := v.List()
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = valueToJSON(it)
		}
		return out
	case value.KindMap:
		m := v.Map()
		out := make(map[string]interface{}, m.Len())
		for _, k := range m.Keys() {
			mv, _ := m.Get(k)
			out[k] = valueToJSON(mv)
		}
		return out
	case value.KindNode:
		n := v.Node()
		return map[string]interface{}{
			"id":         int64(n.ID),
			"labels":     n.Labels,
			"properties": valueToJSON(value.MapOf(n.Properties)),
		}
	case value.KindEdge:
		e := v.Edge()
		return map[string]interface{}{
			"id":         int64(e.ID),
			"type":       e.Type,
			"start":      int64(e.Start),
			"end":        int64(e.End),
			"properties": valueToJSON(value.MapOf(e.Properties)),
		}
	case value.KindPath:
		p := v.Path()
		nodes := make([]interface{}, len(p.Nodes))
		for i, n := range p.Nodes {
			nodes[i] = valueToJSON(value.NodeOf(n))
		}
		edges := make([]interface{}, len(p.Edges))
		for i, e := range p.Edges {
			edges[i] = valueToJSON(value.EdgeOf(e))
		}
		return map[string]interface{}{"nodes": nodes, "edges": edges}
	default:
		return value.Stringify(v)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) readJSON(r *http.Request, v interface{}) error {
	body := io.LimitReader(r.Body, s.config.MaxRequestSize)
	return json.NewDecoder(body).Decode(v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.errorCount.Add(1)
	s.writeJSON(w, status, QueryErrorResponse{Error: message})
}
