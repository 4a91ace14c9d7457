package vaultops

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github/chapool/cardano-vault/internal/api"
	"github/chapool/cardano-vault/internal/util"
)

// DispatchUsersRoutes funnels the whole /users subtree into the protocol
// dispatcher: routing, method checks and input validation happen there, so
// unknown operations and method mismatches answer in the vault error shape
// instead of the framework's.
func DispatchUsersRoutes(s *api.Server) []*echo.Route {
	return s.Router.Users.Any("/*", dispatchUsersHandler(s))
}

func dispatchUsersHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		start := time.Now()
		result := s.Dispatcher.Dispatch(ctx, newEchoBinding(c))

		outcome := "success"
		if result.Err != nil {
			outcome = "error"
			log.Debug().
				Int("status", result.Err.StatusCode).
				Str("message", result.Err.Message).
				Msg("Vault operation failed")
		}

		s.Metrics.ObserveOperation(operationFromPath(c.Request().URL.Path), outcome, time.Since(start))

		return sendResponse(c, result)
	}
}

// operationFromPath extracts the operation segment (/users/{id}/{op}) for the
// metrics label, collapsing unroutable paths into "unknown".
func operationFromPath(path string) string {
	segments := make([]string, 0, 3)
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			segments = append(segments, part)
		}
	}

	if len(segments) < 3 {
		return "unknown"
	}

	switch segments[2] {
	case "wallet", "sign-data", "sign-transaction":
		return segments[2]
	default:
		return "unknown"
	}
}
