// file: internal/server/server.go
// version: 2.1.0
// guid: 4c5d6e7f-8a9b-0c1d-2e3f-4a5b6c7d8e9f

package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shapuzzz/bookstrack-backend/internal/cache"
	"github.com/Shapuzzz/bookstrack-backend/internal/jobs"
	"github.com/Shapuzzz/bookstrack-backend/internal/metrics"
	"github.com/Shapuzzz/bookstrack-backend/internal/orchestrator"
	"github.com/Shapuzzz/bookstrack-backend/internal/providers"
	"github.com/Shapuzzz/bookstrack-backend/internal/server/middleware"
)

const (
	jsonBodyLimit   = 1 << 20  // 1MB
	uploadBodyLimit = 10 << 20 // 10MB, CSV and shelf photos
)

// Server wires the HTTP surface over the cache, orchestrator, and batch
// job registry.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	cache    *cache.Service
	orch     *orchestrator.Orchestrator
	registry *jobs.Registry
	vision   *providers.VisionParser

	unifiedEnvelope bool
	searchLimit     int
	startedAt       time.Time
}

// Options carries the server dependencies and toggles.
type Options struct {
	Cache           *cache.Service
	Orchestrator    *orchestrator.Orchestrator
	Registry        *jobs.Registry
	Vision          *providers.VisionParser
	UnifiedEnvelope bool
	SearchLimit     int
	RateLimit       int
	RateWindow      time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates a new server instance
func NewServer(opts Options) *Server {
	router := gin.Default()

	// Set up middleware
	router.Use(corsMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.MaxRequestBodySize(jsonBodyLimit, uploadBodyLimit))

	// Register metrics (idempotent)
	metrics.Register()

	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 20
	}

	server := &Server{
		router:          router,
		cache:           opts.Cache,
		orch:            opts.Orchestrator,
		registry:        opts.Registry,
		vision:          opts.Vision,
		unifiedEnvelope: opts.UnifiedEnvelope,
		searchLimit:     opts.SearchLimit,
		startedAt:       time.Now(),
	}

	limiter := middleware.NewPrincipalRateLimiter(opts.RateLimit, opts.RateWindow)
	server.setupRoutes(limiter)

	return server
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(cfg ServerConfig) error {
	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Live job actors keep their persisted state; alarms re-arm on restart.
	if s.registry != nil {
		s.registry.Close()
	}

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exited")
	return nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures all the routes
func (s *Server) setupRoutes(limiter *middleware.PrincipalRateLimiter) {
	// Prometheus metrics endpoint (standard path)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoint (both paths for compatibility)
	s.router.GET("/healthz", s.healthCheck)
	s.router.GET("/api/health", s.healthCheck)

	v1 := s.router.Group("/v1")
	{
		search := v1.Group("/search", limiter.Middleware(middleware.ClassSearch))
		{
			search.GET("/isbn", s.searchISBN)
			search.GET("/title", s.searchTitle)
			search.GET("/author", s.searchAuthor)
		}

		batch := v1.Group("/batch-enrichment", limiter.Middleware(middleware.ClassBatch))
		{
			batch.POST("", s.launchBatch)
			batch.GET("/:jobId", s.getBatchSnapshot)
			batch.POST("/:jobId/cancel", s.cancelBatch)
		}

		importGroup := v1.Group("", limiter.Middleware(middleware.ClassImport))
		{
			importGroup.POST("/books/import/csv", s.importCSV)
			importGroup.POST("/bookshelf/scan", s.scanBookshelf)
		}
	}

	s.router.POST("/api/token/refresh", limiter.Middleware(middleware.ClassBatch), s.refreshToken)
	s.router.GET("/ws/progress", s.progressStream)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"timestamp":      time.Now().Unix(),
	})
}
