package common

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github/chapool/cardano-vault/internal/api"
)

func GetHealthyRoute(s *api.Server) *echo.Route {
	startedAt := s.Clock.Now()

	return s.Router.Management.GET("/healthy", getHealthyHandler(s, startedAt))
}

// getHealthyHandler reports liveness plus process uptime. Readiness concerns
// live in the /-/ready handler; this endpoint only proves the process serves.
func getHealthyHandler(s *api.Server, startedAt time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		uptime := s.Clock.Now().Sub(startedAt)

		return c.String(http.StatusOK, fmt.Sprintf("Healthy. Uptime: %s", uptime))
	}
}
