package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/endo-report-server/internal/audit"
	"github.com/endo-report-server/internal/domain"
	"github.com/endo-report-server/internal/letter"
	"github.com/endo-report-server/internal/middleware"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// Rewriter is the gateway surface the HTTP layer needs
type Rewriter interface {
	domain.NotesRewriter
	RewriteCase(ctx context.Context, rec domain.CaseRecord) (domain.CaseRecord, error)
	BreakerState() string
	Model() string
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	rewriter      Rewriter
	composer      *letter.Composer
	recorder      audit.Recorder
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, rewriter Rewriter, recorder audit.Recorder, logger *logrus.Logger) (*Server, error) {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if recorder == nil {
		recorder = audit.NopStore{}
	}

	router := gin.New()

	// Add middleware
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	if cfg.RateLimit.Enabled {
		limiter, err := middleware.NewClientLimiter(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		router.Use(middleware.RateLimit(limiter))
	}

	server := &Server{
		configManager: configManager,
		rewriter:      rewriter,
		composer:      letter.NewComposer(cfg.Letterhead),
		recorder:      recorder,
		logger:        logger,
		router:        router,
	}

	// Setup routes
	server.setupRoutes()

	return server, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/rewrite", s.handleRewrite)
		api.GET("/procedures", s.handleProcedures)
		api.POST("/render", s.handleRender)
		api.POST("/letter", s.handleLetter)
		api.POST("/case/rewrite", s.handleCaseRewrite)
	}
}
