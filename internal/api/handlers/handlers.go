package handlers

import (
	"github.com/labstack/echo/v4"
	"github/chapool/cardano-vault/internal/api"
	"github/chapool/cardano-vault/internal/api/handlers/common"
	"github/chapool/cardano-vault/internal/api/handlers/vaultops"
)

// AttachAllRoutes attaches all registered routes to the server.
func AttachAllRoutes(s *api.Server) {
	routes := []*echo.Route{
		common.GetHealthyRoute(s),
		common.GetReadyRoute(s),
		common.GetMetricsRoute(s),
		common.GetVersionRoute(s),
	}

	routes = append(routes, vaultops.DispatchUsersRoutes(s)...)

	s.Router.Routes = routes
}
