package common

import (
	"github.com/labstack/echo/v4"
	"github/chapool/cardano-vault/internal/api"
)

func GetMetricsRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
}
