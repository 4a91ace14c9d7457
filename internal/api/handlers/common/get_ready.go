package common

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github/chapool/cardano-vault/internal/api"
)

// statusNotReady is 521 (web server is down): started but not yet fully
// initialized.
const statusNotReady = 521

func GetReadyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/ready", getReadyHandler(s))
}

// getReadyHandler returns 200 when the server is fully initialized and
// able to accept requests, 521 otherwise.
func getReadyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.Ready() {
			return c.String(statusNotReady, "Not ready.")
		}

		return c.String(http.StatusOK, "Ready.")
	}
}
