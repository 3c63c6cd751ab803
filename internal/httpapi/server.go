// Package httpapi exposes the practice backend over a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/abhisek/lingoflow/internal/conversation"
	"github.com/abhisek/lingoflow/internal/generation"
	"github.com/abhisek/lingoflow/internal/scenario"
	"github.com/abhisek/lingoflow/internal/store"
)

// Deps are the components the API is served from.
type Deps struct {
	Settings      store.SettingsRepo
	Catalog       *scenario.Catalog
	Conversations *conversation.Service
	Generation    generation.Client
}

// Server is the echo application.
type Server struct {
	e    *echo.Echo
	deps Deps
	log  *zap.Logger
}

// New builds the server and registers every route.
func New(deps Deps, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{e: e, deps: deps, log: log.Named("http")}
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(s.log))
	e.Use(middleware.CORS())

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	s.e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.e.Group("/api")
	api.GET("/settings", s.getSettings)
	api.POST("/settings", s.updateSettings)
	api.GET("/models", s.listModels)

	api.GET("/scenarios", s.listScenarios)
	api.POST("/scenarios/generate", s.generateScenarios)
	api.DELETE("/scenarios/:id", s.retireScenario)

	api.POST("/chat/turn", s.chatTurn)
	api.POST("/chat/abandon", s.chatAbandon)
	api.POST("/chat/hint", s.chatHint)

	api.GET("/history", s.listHistory)
	api.DELETE("/history", s.clearHistory)
	api.GET("/history/:id", s.getHistory)
	api.GET("/history/:id/summary", s.getSummary)
	api.DELETE("/history/:id", s.deleteHistory)

	if dir := s.deps.Catalog.Assets().Dir(); dir != "" {
		api.Static("/clipart", dir)
	}
}

// ServeHTTP lets the server be mounted or tested as a plain handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info("listening", zap.String("addr", addr))
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
