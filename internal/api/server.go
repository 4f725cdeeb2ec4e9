// Package api exposes the simulation engine over HTTP: launching runs,
// fetching summaries and per-patient histories, and reading the workload
// and cost outputs of the resource tracker.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/amd-treatment-sim/internal/domain"
	"github.com/amd-treatment-sim/internal/resources"
	"github.com/amd-treatment-sim/internal/resultstore"
	"github.com/amd-treatment-sim/internal/simulation"
)

// runEntry holds one completed run's in-memory artifacts.
type runEntry struct {
	results *domain.SimulationResults
	tracker *resources.Tracker
}

// Server is the HTTP front end of the simulation engine.
type Server struct {
	cfg     *domain.Config
	spec    *domain.ProtocolSpec
	store   resultstore.Store
	cache   *resultstore.CacheClient
	recent  *lru.Cache[string, *runEntry]
	limiter *rate.Limiter
	log     *logrus.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates the HTTP server. The store and cache are optional; a
// nil store keeps results in memory only.
func NewServer(cfg *domain.Config, spec *domain.ProtocolSpec, store resultstore.Store, cache *resultstore.CacheClient, logger *logrus.Logger) (*Server, error) {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	size := cfg.Server.ResultCacheSize
	if size <= 0 {
		size = 16
	}
	recent, err := lru.New[string, *runEntry](size)
	if err != nil {
		return nil, fmt.Errorf("creating result cache: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())

	s := &Server{
		cfg:     cfg,
		spec:    spec,
		store:   store,
		cache:   cache,
		recent:  recent,
		limiter: rate.NewLimiter(rate.Limit(cfg.Server.SimulateRateLimit), cfg.Server.SimulateBurst),
		log:     logger,
		router:  router,
	}
	s.setupRoutes()
	return s, nil
}

// Start runs the server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/simulations", s.rateLimitMiddleware(), s.handleRunSimulation)
		v1.GET("/simulations", s.handleListRuns)
		v1.GET("/simulations/:id", s.handleGetRun)
		v1.GET("/simulations/:id/patients/:pid", s.handleGetPatient)
		v1.GET("/simulations/:id/workload", s.handleGetWorkload)
		v1.GET("/simulations/:id/costs", s.handleGetCosts)
	}
}

// requestIDMiddleware tags every request with a request id for log
// correlation.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// rateLimitMiddleware bounds how fast simulations can be launched; a run
// over thousands of patients is CPU-heavy.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "simulation launch rate exceeded, retry later",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"protocol":  s.spec.Name,
		"timestamp": time.Now().UTC(),
	})
}

// runRequest is the payload for launching a simulation.
type runRequest struct {
	Patients      int     `json:"patients" binding:"required"`
	DurationYears float64 `json:"duration_years" binding:"required"`
	Seed          int64   `json:"seed"`
}

func (s *Server) handleRunSimulation(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	checksum := s.spec.Checksum()
	cacheKey := resultstore.RunKey(checksum, req.Patients, req.DurationYears, req.Seed)
	if s.cache != nil {
		if summary, ok, err := s.cache.GetRunSummary(c.Request.Context(), cacheKey); err == nil && ok {
			s.log.WithField("run_id", summary.RunID).Info("Served run summary from cache")
			c.JSON(http.StatusOK, summary)
			return
		}
	}

	var observers []simulation.VisitObserver
	var tracker *resources.Tracker
	if s.cfg.Resources.Enabled {
		tracker = resources.NewTracker(s.cfg.Resources, s.log)
		observers = append(observers, tracker)
	}

	engine, err := simulation.NewEngine(s.spec, s.log, simulation.Options{Observers: observers})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results, err := engine.Run(simulation.TimeBasedEngine, req.Patients, req.DurationYears, req.Seed)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidRunParameters) || errors.Is(err, domain.ErrUnsupportedEngineType) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	s.recent.Add(results.RunID, &runEntry{results: results, tracker: tracker})

	summary := results.Summary(checksum)
	summary.CreatedAt = time.Now().UTC()

	if s.store != nil {
		if err := s.store.SaveRun(c.Request.Context(), &summary); err != nil {
			s.log.WithError(err).Warn("Failed to persist run summary")
		} else if err := s.store.SaveHistories(c.Request.Context(), results.RunID, results.Patients); err != nil {
			s.log.WithError(err).Warn("Failed to persist patient histories")
		}
	}
	if s.cache != nil {
		if err := s.cache.SetRunSummary(c.Request.Context(), cacheKey, &summary); err != nil {
			s.log.WithError(err).Warn("Failed to cache run summary")
		}
	}

	c.JSON(http.StatusCreated, summary)
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.store == nil {
		ids := s.recent.Keys()
		c.JSON(http.StatusOK, gin.H{"run_ids": ids})
		return
	}
	runs, err := s.store.ListRuns(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) handleGetRun(c *gin.Context) {
	id := c.Param("id")
	if entry, ok := s.recent.Get(id); ok {
		c.JSON(http.StatusOK, entry.results.Summary(s.spec.Checksum()))
		return
	}
	if s.store != nil {
		summary, err := s.store.GetRun(c.Request.Context(), id)
		if err == nil {
			c.JSON(http.StatusOK, summary)
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
}

func (s *Server) handleGetPatient(c *gin.Context) {
	id, pid := c.Param("id"), c.Param("pid")
	if entry, ok := s.recent.Get(id); ok {
		if patient, ok := entry.results.Patients[pid]; ok {
			c.JSON(http.StatusOK, patient)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "patient not found"})
		return
	}
	if s.store != nil {
		patient, err := s.store.GetHistory(c.Request.Context(), id, pid)
		if err == nil {
			c.JSON(http.StatusOK, patient)
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "patient not found"})
}

// workload and costs are only available for runs still held in memory;
// they are derived from the tracker attached to the live run.
func (s *Server) handleGetWorkload(c *gin.Context) {
	entry, ok := s.recent.Get(c.Param("id"))
	if !ok || entry.tracker == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "workload data not available for this run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"workload":    entry.tracker.WorkloadSummary(),
		"bottlenecks": entry.tracker.Bottlenecks(),
	})
}

func (s *Server) handleGetCosts(c *gin.Context) {
	entry, ok := s.recent.Get(c.Param("id"))
	if !ok || entry.tracker == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "cost data not available for this run"})
		return
	}
	c.JSON(http.StatusOK, entry.tracker.TotalCosts())
}
