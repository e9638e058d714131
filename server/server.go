// Package server exposes the auction engine over HTTP and the realtime WebSocket channel.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/cloudx-io/slotauction/auction"
	"github.com/cloudx-io/slotauction/broadcast"
	"github.com/cloudx-io/slotauction/config"
)

type Options struct {
	Engine *auction.Engine
	Hub    *broadcast.Hub
	Server config.ServerConfig
	Auth   config.AuthConfig
	Logger *zap.Logger
}

type Server struct {
	echo   *echo.Echo
	http   *http.Server
	engine *auction.Engine
	hub    *broadcast.Hub
	logger *zap.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.L()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("http_request",
				zap.String("method", v.Method),
				zap.String("path", c.Path()),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))

	s := &Server{
		echo:   e,
		engine: opts.Engine,
		hub:    opts.Hub,
		logger: logger,
		http: &http.Server{
			Addr:         opts.Server.Addr,
			ReadTimeout:  opts.Server.ReadTimeout,
			WriteTimeout: opts.Server.WriteTimeout,
		},
	}
	s.routes(opts.Auth.JWTSecret)
	return s
}

func (s *Server) routes(secret string) {
	s.echo.GET("/", s.health)
	s.echo.GET("/ws", s.serveWS, jwtAuth(secret, "query:token"))

	api := s.echo.Group("/api", jwtAuth(secret, "header:Authorization:Bearer "))
	api.GET("/products", s.listProducts)
	api.GET("/products/:id", s.getProduct)
	api.POST("/products/:id/bids", s.placeBid)
	api.GET("/products/:id/rankings", s.getRankings)
	api.GET("/products/:id/rank", s.getOwnRank)
	api.GET("/products/:id/results", s.getResults)

	admin := api.Group("/admin", requireAdmin)
	admin.POST("/products", s.createProduct)
	admin.PUT("/products/:id", s.updateProduct)
	admin.PATCH("/products/:id/status", s.setStatus)
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http_server_starting", zap.String("addr", s.http.Addr))
	err := s.echo.StartServer(s.http)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return ok(c, map[string]string{"status": "ok"})
}
