package util

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	CTXKeyRequestID  contextKey = "request_id"
	CTXKeyDisableLog contextKey = "disable_log"
)

// LogFromContext returns a request-specific zerolog instance using the provided context.
// The returned logger will have the request ID as well as some other value predefined.
// If logging was disabled for the provided context, a disabled logger is returned instead.
func LogFromContext(ctx context.Context) *zerolog.Logger {
	l := log.Ctx(ctx)
	if shouldDisableLogging(ctx) {
		disabled := l.Level(zerolog.Disabled)
		l = &disabled
	}
	return l
}

// LogFromEchoContext returns a request-specific zerolog instance using the echo.Context of the request.
// The returned logger will have the request ID as well as some other value predefined.
func LogFromEchoContext(c echo.Context) *zerolog.Logger {
	return LogFromContext(c.Request().Context())
}

func LogLevelFromString(s string) zerolog.Level {
	l, err := zerolog.ParseLevel(s)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to parse log level, defaulting to %s", zerolog.DebugLevel)
		return zerolog.DebugLevel
	}
	return l
}

// DisableLogging disables logging for the passed context.
func DisableLogging(ctx context.Context) context.Context {
	return context.WithValue(ctx, CTXKeyDisableLog, true)
}

func shouldDisableLogging(ctx context.Context) bool {
	v := ctx.Value(CTXKeyDisableLog)
	if v == nil {
		return false
	}

	disabled, ok := v.(bool)
	return ok && disabled
}
