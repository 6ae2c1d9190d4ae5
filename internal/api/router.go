package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pedrogk/msgmux/internal/api/handlers"
	"github.com/pedrogk/msgmux/internal/api/middleware"
	"github.com/pedrogk/msgmux/internal/config"
	"github.com/pedrogk/msgmux/internal/db"
	"github.com/pedrogk/msgmux/internal/session"
)

type Server struct {
	Config *config.Config
	Router *gin.Engine
}

func NewServer(cfg *config.Config, manager *session.Manager, repo *db.Repository, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())

	server := &Server{
		Config: cfg,
		Router: router,
	}

	server.setupRoutes(manager, repo, logger)
	return server
}

func (s *Server) setupRoutes(manager *session.Manager, repo *db.Repository, logger *zap.Logger) {
	h := handlers.NewHandler(manager, repo, logger)

	s.Router.GET("/health", h.Health)
	s.Router.GET("/ready", h.Ready)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.Router.Group("/api/v1")
	{
		api.POST("/tenants/:id/session", h.CreateSession)
		api.POST("/tenants/:id/session/pair", h.RequestPairingCode)
		api.GET("/tenants/:id/session", h.GetSnapshot)
		api.DELETE("/tenants/:id/session", h.TerminateSession)
	}
}
