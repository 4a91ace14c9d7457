package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github/chapool/cardano-vault/internal/util"
)

// LoggerConfig defines the config for the request Logger middleware.
type LoggerConfig struct {
	Skipper          echoMiddleware.Skipper
	Level            zerolog.Level
	LogRequestHeader bool
	LogRequestQuery  bool
}

// DefaultLoggerConfig is the default request Logger middleware config.
var DefaultLoggerConfig = LoggerConfig{
	Skipper: echoMiddleware.DefaultSkipper,
	Level:   zerolog.DebugLevel,
}

// Logger returns a request logging middleware with the default config.
func Logger() echo.MiddlewareFunc {
	return LoggerWithConfig(DefaultLoggerConfig)
}

// LoggerWithConfig returns a middleware attaching a request-scoped zerolog
// logger (request id, method, path) to the request context and logging the
// request outcome at the configured level.
func LoggerWithConfig(config LoggerConfig) echo.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = DefaultLoggerConfig.Skipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) {
				return next(c)
			}

			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = c.Response().Header().Get(echo.HeaderXRequestID)
			}

			logger := zerolog.Ctx(req.Context()).With().
				Str("request_id", id).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Logger()

			if config.LogRequestHeader {
				logger = logger.With().Interface("header", req.Header).Logger()
			}
			if config.LogRequestQuery {
				logger = logger.With().Str("query", req.URL.RawQuery).Logger()
			}

			ctx := logger.WithContext(req.Context())
			ctx = context.WithValue(ctx, util.CTXKeyRequestID, id)
			c.SetRequest(req.WithContext(ctx))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.WithLevel(config.Level).
				Int("status", c.Response().Status).
				Dur("duration", time.Since(start)).
				Msg("Request handled")

			return err
		}
	}
}
