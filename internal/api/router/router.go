package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github/chapool/cardano-vault/internal/api"
	"github/chapool/cardano-vault/internal/api/handlers"
	"github/chapool/cardano-vault/internal/api/middleware"
)

// Init sets up the echo instance, middleware stack and all routes on the
// given server.
func Init(s *api.Server) {
	s.Echo = echo.New()

	s.Echo.Debug = s.Config.Echo.Debug
	s.Echo.HideBanner = true

	s.Echo.HTTPErrorHandler = HTTPErrorHandlerWithConfig(HTTPErrorHandlerConfig{
		HideInternalServerErrorDetails: s.Config.Echo.HideInternalServerErrorDetails,
	})

	if s.Config.Echo.EnableTrailingSlashMiddleware {
		s.Echo.Pre(echoMiddleware.RemoveTrailingSlash())
	}

	if s.Config.Echo.EnableRecoverMiddleware {
		s.Echo.Use(echoMiddleware.Recover())
	}

	if s.Config.Echo.EnableRequestIDMiddleware {
		s.Echo.Use(echoMiddleware.RequestID())
	}

	if s.Config.Echo.EnableLoggerMiddleware {
		s.Echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Level:            s.Config.Logger.RequestLevel,
			LogRequestHeader: s.Config.Logger.LogRequestHeader,
			LogRequestQuery:  s.Config.Logger.LogRequestQuery,
		}))
	}

	if s.Config.Echo.EnableCORSMiddleware {
		s.Echo.Use(echoMiddleware.CORS())
	}

	s.Router = &api.Router{
		Routes:     nil, // updated by handlers.AttachAllRoutes
		Root:       s.Echo.Group(""),
		Management: s.Echo.Group("/-", managementSecretMiddleware(s)),
		Users:      s.Echo.Group("/users"),
	}

	handlers.AttachAllRoutes(s)
}

// managementSecretMiddleware guards the management endpoints with the
// configured secret (?mgmt-secret=...). An empty secret disables the guard.
func managementSecretMiddleware(s *api.Server) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.Config.Management.Secret == "" {
				return next(c)
			}

			if c.QueryParam("mgmt-secret") != s.Config.Management.Secret {
				return echo.NewHTTPError(http.StatusUnauthorized)
			}

			return next(c)
		}
	}
}
