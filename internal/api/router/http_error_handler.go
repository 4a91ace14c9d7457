package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github/chapool/cardano-vault/internal/util"
	"github/chapool/cardano-vault/internal/vault"
)

// HTTPErrorHandlerConfig configures the global echo error handler.
type HTTPErrorHandlerConfig struct {
	HideInternalServerErrorDetails bool
}

// HTTPErrorHandlerWithConfig renders every error escaping a handler into the
// vault's wire error shape. Handlers normally answer through the dispatcher
// result path; this is the safety net for middleware and framework errors.
func HTTPErrorHandlerWithConfig(config HTTPErrorHandlerConfig) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var body *vault.ErrorBody
		code := http.StatusInternalServerError

		switch e := err.(type) {
		case *vault.VaultError:
			code = e.StatusCode
			body = e.Body()
		case *echo.HTTPError:
			code = e.Code
			body = &vault.ErrorBody{Error: http.StatusText(code)}
			if msg, ok := e.Message.(string); ok && msg != "" {
				body.Error = msg
			}
		default:
			body = &vault.ErrorBody{Error: http.StatusText(http.StatusInternalServerError)}
			if !config.HideInternalServerErrorDetails {
				body.Cause = &vault.ErrorBody{Error: err.Error()}
			}
		}

		if writeErr := c.JSON(code, body); writeErr != nil {
			util.LogFromEchoContext(c).Error().Err(writeErr).Msg("Failed to write error response")
		}
	}
}
