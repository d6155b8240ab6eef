package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"ecbackend/internal/metrics"
)

// リクエスト数とレイテンシ。routeはパスのパターン（/orders/:id）で数える。
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(c.Request().Method, route, c.Response().Status, time.Since(start))
			return nil
		}
	}
}
