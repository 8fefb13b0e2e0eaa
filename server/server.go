package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xhad/bizintel/internal/models"
	"github.com/xhad/bizintel/internal/types"
	"github.com/xhad/bizintel/pkg/jobs"
	"github.com/xhad/bizintel/pkg/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the frame written to websocket clients.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// Dispatcher is the job queue behind POST /register.
type Dispatcher interface {
	Submit(requestID string, reg models.Registration) error
	Status(requestID string) (jobs.Event, bool)
	Subscribe(requestID string) (<-chan jobs.Event, func())
	QueueDepth() int
}

type Config struct {
	Addr       string
	Dispatcher Dispatcher
	Store      types.AnalysisStore
	// Providers maps a provider name to whether its credential is configured.
	Providers map[string]bool
	Gatherer  prometheus.Gatherer
	Version   string
	Logger    *zap.Logger
	NewID     func() string
	Now       func() time.Time
}

type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	server  *http.Server
	logger  *zap.Logger
	started time.Time
}

func New(config Config) *Server {
	if config.Addr == "" {
		config.Addr = ":8000"
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	if config.Version == "" {
		config.Version = "dev"
	}

	s := &Server{
		config:  config,
		mux:     http.NewServeMux(),
		logger:  config.Logger,
		started: config.Now(),
	}
	s.registerRoutes()
	s.handler = otelhttp.NewHandler(s.loggingMiddleware(s.mux), "bizintel")

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("GET /analyses/{id}", s.handleGetAnalysis)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /health/detailed", s.handleDetailedHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Handler exposes the fully wrapped handler for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.config.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "listen and serve")
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg models.Registration
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&reg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := reg.Validate(); err != nil {
		var fields models.ValidationErrors
		switch {
		case errors.As(err, &fields):
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":   "Validation error",
				"details": fields,
			})
		case eris.Is(err, models.ErrNoSources):
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":   "Validation error",
				"message": "at least one of company_website or linkedin is required",
			})
		default:
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	requestID := s.config.NewID()
	if err := s.config.Dispatcher.Submit(requestID, reg); err != nil {
		s.logger.Error("failed to queue registration", zap.String("request_id", requestID), zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":      "Background processing failed",
			"message":    "Failed to queue registration for processing",
			"request_id": requestID,
		})
		return
	}

	s.logger.Info("registration queued", zap.String("request_id", requestID))
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"request_id": requestID,
		"status":     string(jobs.StatusQueued),
		"message":    "Registration received and queued for processing",
	})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	out, err := s.config.Store.Load(r.Context(), id)
	if err == nil {
		respondJSON(w, http.StatusOK, out)
		return
	}
	if !eris.Is(err, store.ErrNotFound) {
		s.logger.Error("failed to load analysis", zap.String("request_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}

	if ev, ok := s.config.Dispatcher.Status(id); ok && !ev.Status.Terminal() {
		respondJSON(w, http.StatusAccepted, ev)
		return
	}
	respondError(w, http.StatusNotFound, "analysis not found")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.config.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	services := make(map[string]interface{}, len(s.config.Providers))
	limited := 0
	for name, configured := range s.config.Providers {
		if configured {
			services[name] = map[string]string{"status": "healthy", "details": name + " credential configured"}
			continue
		}
		limited++
		services[name] = map[string]string{"status": "limited", "details": name + " credential missing"}
	}

	status := "healthy"
	if limited > 0 {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"app_info": map[string]interface{}{
			"app_name":       "bizintel",
			"app_version":    s.config.Version,
			"timestamp":      s.config.Now().UTC().Format(time.RFC3339),
			"uptime_seconds": int(s.config.Now().Sub(s.started).Seconds()),
		},
		"services": services,
		"system_info": map[string]interface{}{
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"goroutines": runtime.NumGoroutine(),
		},
		"queue_depth": s.config.Dispatcher.QueueDepth(),
		"summary": map[string]int{
			"total_services":   len(s.config.Providers),
			"healthy_services": len(s.config.Providers) - limited,
			"limited_services": limited,
		},
	})
}

// handleWebSocket streams job events for one request until it reaches a
// terminal status or the client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		respondError(w, http.StatusBadRequest, "request_id is required")
		return
	}

	// Subscribe before the upgrade so no event is lost between the status
	// snapshot and the stream.
	events, unsubscribe := s.config.Dispatcher.Subscribe(requestID)
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ev, ok := s.config.Dispatcher.Status(requestID)
	if !ok {
		s.sendMessage(conn, "error", "unknown request id", nil)
		return
	}
	s.sendMessage(conn, "status", string(ev.Status), ev)
	if ev.Status.Terminal() {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.sendMessage(conn, "status", string(ev.Status), ev)
			if ev.Status.Terminal() {
				return
			}
		}
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType, content string, data interface{}) {
	msg := Message{
		Type:    msgType,
		Content: content,
		Data:    data,
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("error sending message", zap.Error(err))
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
