// Package api wires up the Network Planner's gin router: the Gateway
// Pull API plus a health check, and nothing else (spec.md §1
// explicitly scopes an administrative CRUD surface out).
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wirewarden/wirewarden/internal/api/handlers"
	"github.com/wirewarden/wirewarden/internal/api/middleware"
	"github.com/wirewarden/wirewarden/internal/config"
	"github.com/wirewarden/wirewarden/internal/database"
	"github.com/wirewarden/wirewarden/internal/store"
	"github.com/wirewarden/wirewarden/internal/topology"
)

// Server represents the API server.
type Server struct {
	config   *config.Config
	db       *database.DB
	store    *store.Store
	resolver *topology.Resolver
	logger   *zap.Logger
	router   *gin.Engine
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, db *database.DB, s *store.Store, resolver *topology.Resolver, logger *zap.Logger) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &Server{
		config:   cfg,
		db:       db,
		store:    s,
		resolver: resolver,
		logger:   logger,
	}

	srv.setupRouter()
	return srv
}

// Router returns the HTTP router.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.CORS())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeaders())

	r.GET("/health", s.healthCheck)

	gateway := handlers.NewGatewayHandler(s.resolver, s.logger)
	daemon := r.Group("/api/daemon")
	daemon.Use(middleware.RateLimit(120, 10))
	daemon.Use(middleware.GatewayAuth(s.store))
	daemon.GET("/config", gateway.PullConfig)

	s.router = r
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	err := s.db.Pool.Ping(ctx)

	status := "healthy"
	dbStatus := "connected"
	if err != nil {
		status = "degraded"
		dbStatus = "disconnected"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": gin.H{
			"database": dbStatus,
		},
	})
}
