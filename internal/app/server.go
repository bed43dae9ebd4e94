// File: internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifelink_backend/internal/common"
	"lifelink_backend/internal/config"
	"lifelink_backend/internal/coordination"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/feed"
	"lifelink_backend/internal/jobs"
	"lifelink_backend/internal/middleware"
	"lifelink_backend/internal/search"
	"lifelink_backend/internal/user"
)

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	// Jobs
	requestExpiryJob *jobs.RequestExpiryJob
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	verifier middleware.TokenVerifier,
	profiles middleware.ProfileLoader,
	userHandler *user.Handler,
	coordinationHandler *coordination.Handler,
	feedHandler *feed.Handler,
	searchHandler *search.Handler,
	requestExpiryJob *jobs.RequestExpiryJob,
) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	if err := common.RegisterGinValidations(); err != nil {
		return nil, fmt.Errorf("register validations: %w", err)
	}
	router := gin.New()

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger.Named("http")))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	authMW := middleware.AuthMiddleware(verifier, profiles, logger.Named("AuthMiddleware"))
	adminRoleMW := middleware.RoleAuthMiddleware(domain.RoleAdmin)

	// --- Setup Routes ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "LifeLink API is healthy!", "store": cfg.StoreBackend})
	})

	v1 := router.Group("/api/v1")
	userHandler.RegisterRoutes(v1, authMW, adminRoleMW)
	coordinationHandler.RegisterRoutes(v1, authMW, adminRoleMW)
	feedHandler.RegisterRoutes(v1, authMW)
	searchHandler.RegisterRoutes(v1, authMW, adminRoleMW)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Event streams stay open, so responses carry no write deadline.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer:       httpServer,
		router:           router,
		cfg:              cfg,
		logger:           logger,
		requestExpiryJob: requestExpiryJob,
	}, nil
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	if s.requestExpiryJob != nil {
		if err := s.requestExpiryJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start request expiry job", zap.Error(err))
		}
	} else {
		s.logger.Info("Request expiry job is not configured, skipping start.")
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
		zap.String("store", s.cfg.StoreBackend),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.requestExpiryJob != nil {
		s.requestExpiryJob.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
