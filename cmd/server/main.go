package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/healthrisk/assessment"
	"github.com/liamcoop/healthrisk/features"
	"github.com/liamcoop/healthrisk/internal/config"
	"github.com/liamcoop/healthrisk/internal/logger"
	"github.com/liamcoop/healthrisk/internal/metrics"
	"github.com/liamcoop/healthrisk/riskmodel"
	"github.com/liamcoop/healthrisk/rules"
)

const (
	maxBodyBytes  = 1 << 20
	healthTimeout = 2 * time.Second
)

// HealthCheck pings a backing service.
type HealthCheck func(ctx context.Context) error

type Server struct {
	model    *riskmodel.Model
	engine   *rules.Engine
	assessor *assessment.Assessor
	gatherer prometheus.Gatherer
	checks   map[string]HealthCheck
	router   *chi.Mux
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records assessment metrics on m and serves g at /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.assessor = assessment.NewAssessor(s.model, s.engine, assessment.WithMetrics(m))
		s.gatherer = g
	}
}

// WithHealthCheck adds a named dependency check to /api/v1/health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

func NewServer(model *riskmodel.Model, engine *rules.Engine, opts ...Option) *Server {
	s := &Server{
		model:    model,
		engine:   engine,
		assessor: assessment.NewAssessor(model, engine),
		gatherer: prometheus.DefaultGatherer,
		checks:   make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Post("/api/v1/assessments", s.handleAssess)
	r.Get("/api/v1/model/importance", s.handleImportance)

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleCreateRule)

		r.Get("/{ruleId}", s.handleGetRule)
		r.Put("/{ruleId}", s.handleUpdateRule)
		r.Delete("/{ruleId}", s.handleDeleteRule)
	})

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "healthy",
		ModelReady: s.model.Ready(),
		Time:       time.Now().UTC(),
	}
	if !resp.ModelReady {
		resp.Status = "unhealthy"
	}

	if len(s.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp.Checks = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "unhealthy"
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req AssessmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	start := time.Now()

	var (
		res *assessment.Result
		err error
	)
	if req.Values != nil {
		res, err = s.assessor.AssessVector(r.Context(), features.Vector(req.Values))
	} else {
		res, err = s.assessor.Assess(r.Context(), req.Input)
	}
	if err != nil {
		respondError(w, statusFor(err), "assessment failed", err)
		return
	}

	respondJSON(w, http.StatusOK, AssessmentResponse{
		Result:         res,
		EvaluationTime: time.Since(start).String(),
	})
}

func (s *Server) handleImportance(w http.ResponseWriter, r *http.Request) {
	factors, err := s.assessor.Importance()
	if err != nil {
		respondError(w, statusFor(err), "feature importance unavailable", err)
		return
	}

	respondJSON(w, http.StatusOK, ImportanceResponse{Importance: factors})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.Rules()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	if list == nil {
		list = []*rules.Rule{}
	}

	respondJSON(w, http.StatusOK, RulesListResponse{Rules: list})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule := &rules.Rule{
		ID:         req.ID,
		Name:       req.Name,
		Expression: req.Expression,
		Advice:     req.Advice,
		Position:   req.Position,
		Active:     true,
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}

	if err := s.engine.AddRule(rule); err != nil {
		respondError(w, statusFor(err), "failed to add rule", err)
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.engine.Rule(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, statusFor(err), "failed to get rule", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	var req UpdateRuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	existing, err := s.engine.Rule(ruleID)
	if err != nil {
		respondError(w, statusFor(err), "failed to get rule", err)
		return
	}

	rule := req.apply(*existing)
	if err := s.engine.UpdateRule(rule); err != nil {
		respondError(w, statusFor(err), "failed to update rule", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteRule(chi.URLParam(r, "ruleId")); err != nil {
		respondError(w, statusFor(err), "failed to delete rule", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, features.ErrInvalidInput), errors.Is(err, rules.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, rules.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, rules.ErrRuleExists):
		return http.StatusConflict
	case errors.Is(err, riskmodel.ErrModelNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorHTTP5xx()
		logger.Error(message, "status", status, "error", err)
	} else {
		logger.WarnHTTP4xx()
		logger.Debug(message, "status", status, "error", err)
	}

	respondJSON(w, status, response)
}

// requestLogger logs each request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// buildServer wires the rule store, cache, model and metrics from cfg.
// The returned cleanup closes any opened connections.
func buildServer(ctx context.Context, cfg *config.Config) (*Server, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("failed to close resource", "error", err)
			}
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	opts := []Option{WithMetrics(m, reg)}

	var store rules.RuleStore
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to open database: %w", err)
		}
		closers = append(closers, db.Close)

		if err := db.PingContext(ctx); err != nil {
			return nil, cleanup, fmt.Errorf("failed to ping database: %w", err)
		}
		store = rules.NewPostgresRuleStore(db)
		opts = append(opts, WithHealthCheck("database", db.PingContext))
		logger.Info("using postgres rule store")
	} else {
		store = rules.NewInMemoryRuleStore()
		logger.Info("using in-memory rule store")
	}

	cacheConfig := rules.CacheConfig{TTL: cfg.RulesCacheTTL}
	var cache rules.RulesCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closers = append(closers, client.Close)

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, cleanup, fmt.Errorf("failed to ping redis: %w", err)
		}
		cache = rules.NewRedisRulesCache(client, rules.DefaultRedisKey, cacheConfig)
		opts = append(opts, WithHealthCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
		logger.Info("using redis rules cache", "addr", cfg.RedisAddr)
	} else {
		cache = rules.NewInMemoryRulesCache(cacheConfig)
	}

	engine, err := rules.NewEngine(store, rules.WithCache(cache))
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to create rules engine: %w", err)
	}

	defaults, err := rules.DefaultRules()
	if err != nil {
		return nil, cleanup, err
	}
	added, err := rules.Seed(engine, defaults)
	if err != nil {
		return nil, cleanup, err
	}
	logger.Info("default rules seeded", "added", added)

	model, err := assessment.TrainModel(ctx, cfg.ModelConfig(), m)
	if err != nil {
		return nil, cleanup, err
	}

	return NewServer(model, engine, opts...), cleanup, nil
}

func main() {
	logger.Init("healthrisk")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	server, cleanup, err := buildServer(context.Background(), cfg)
	if err != nil {
		cleanup()
		logger.Fatal("failed to create server", "error", err)
	}
	defer cleanup()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Warn("failed to flush logs", "error", err)
	}

	logger.Info("server stopped")
}
