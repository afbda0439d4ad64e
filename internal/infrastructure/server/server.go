package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	connector "github.com/GriffinCanCode/filemanager/internal/api/http"
	"github.com/GriffinCanCode/filemanager/internal/api/middleware"
	"github.com/GriffinCanCode/filemanager/internal/domain/restriction"
	"github.com/GriffinCanCode/filemanager/internal/domain/thumbnail"
	"github.com/GriffinCanCode/filemanager/internal/infrastructure/config"
	"github.com/GriffinCanCode/filemanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/filemanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filemanager/internal/providers/filesystem"
	"github.com/GriffinCanCode/filemanager/internal/shared/paths"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// New creates a new server instance
func New(cfg *config.Config) (*Server, error) {
	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing file manager server",
		zap.String("port", cfg.Server.Port),
		zap.String("file_root", cfg.Storage.FileRoot),
		zap.String("thumbnail_root", cfg.Storage.ThumbnailRoot),
		zap.Bool("read_only", cfg.Security.ReadOnly),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	engine, err := buildEngine(cfg, logger, metrics)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.CORSForOrigins(cfg.CORS.Origins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Bool("global", cfg.RateLimit.Global),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		if cfg.RateLimit.Global {
			router.Use(middleware.GlobalRateLimit(rl))
		} else {
			router.Use(middleware.RateLimit(rl))
		}
	}

	connector.NewHandlers(engine, metrics).WithLogger(logger).Register(router)

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

func buildEngine(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) (*filesystem.Engine, error) {
	resolver, err := paths.NewResolver(cfg.Storage.FileRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open file root: %w", err)
	}

	rules, err := restriction.New(cfg.RestrictionConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to compile restriction rules: %w", err)
	}

	thumbs, err := thumbnail.New(thumbnail.Config{
		Root:      cfg.Storage.ThumbnailRoot,
		MaxWidth:  cfg.Images.ThumbnailWidth,
		MaxHeight: cfg.Images.ThumbnailHeight,
		Persist:   cfg.Images.ThumbnailEnabled,
	}, resolver, rules.IsImage)
	if err != nil {
		return nil, fmt.Errorf("failed to open thumbnail cache: %w", err)
	}
	thumbs = thumbs.WithLogger(logger).WithMetrics(metrics)

	engine := filesystem.NewEngine(filesystem.Config{
		PublicPrefix:        cfg.Storage.PublicPrefix,
		UploadLimit:         cfg.Upload.Limit,
		ReadOnly:            cfg.Security.ReadOnly,
		AllowFolderDownload: cfg.Security.AllowFolderDownload,
		ExtractMaxEntrySize: cfg.Security.ExtractMaxEntry,
	}, resolver, rules, thumbs)

	logger.Info("File engine ready",
		zap.String("root", resolver.Root()),
		zap.String("thumbnails", thumbs.Root()),
		zap.String("policy", string(rules.Policy())),
	)
	return engine.WithLogger(logger).WithMetrics(metrics), nil
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains connections
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.logger.Sync()

	ln = netutil.LimitListener(ln, s.config.Server.MaxConnections)
	srv := &http.Server{Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server",
			zap.String("addr", ln.Addr().String()),
			zap.Int("max_connections", s.config.Server.MaxConnections),
		)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Graceful shutdown failed", zap.Error(err))
		return fmt.Errorf("failed to shut down: %w", err)
	}
	s.logger.Info("Server stopped")
	return nil
}
