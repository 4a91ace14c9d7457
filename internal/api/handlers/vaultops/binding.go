package vaultops

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github/chapool/cardano-vault/internal/vault/dispatch"
)

// echoBinding adapts an echo request to the dispatcher's transport contract.
type echoBinding struct {
	c echo.Context
}

var _ dispatch.Binding = echoBinding{}

func newEchoBinding(c echo.Context) echoBinding {
	return echoBinding{c: c}
}

func (b echoBinding) Path(_ context.Context) (string, error) {
	return b.c.Request().URL.Path, nil
}

func (b echoBinding) Method(_ context.Context) (string, error) {
	return b.c.Request().Method, nil
}

// Body decodes the request body as a JSON object. Decode failures surface as
// errors; the dispatcher treats them as an empty input.
func (b echoBinding) Body(_ context.Context) (map[string]interface{}, error) {
	body := b.c.Request().Body
	if body == nil {
		return nil, errors.New("request has no body")
	}

	var input map[string]interface{}
	if err := json.NewDecoder(body).Decode(&input); err != nil {
		return nil, errors.Wrap(err, "failed to decode request body")
	}

	return input, nil
}

func (b echoBinding) Query(_ context.Context) (map[string]interface{}, error) {
	params := b.c.QueryParams()

	input := make(map[string]interface{}, len(params))
	for name, values := range params {
		if len(values) > 0 {
			input[name] = values[0]
		}
	}

	return input, nil
}

// sendResponse maps a dispatch result onto the wire: success as 200 with the
// operation output, failure as the error's status code with the nested cause
// chain.
func sendResponse(c echo.Context, result dispatch.Result) error {
	if result.Err != nil {
		return c.JSON(result.Err.StatusCode, result.Err.Body())
	}

	return c.JSON(http.StatusOK, result.Response)
}
