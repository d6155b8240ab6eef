package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ecbackend/internal/config"
	"ecbackend/internal/metrics"
	"ecbackend/internal/repository"
)

// 認証付きルートを持つhandler
type RouteRegistrar interface {
	RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository)
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, m *metrics.Metrics, userRepo repository.UserRepository, handlers ...RouteRegistrar) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	for _, h := range handlers {
		h.RegisterRoutes(e, cfg, userRepo)
	}
}
