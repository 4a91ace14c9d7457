// Package dispatch is the framework-agnostic protocol layer of the vault: it
// maps an abstract inbound request onto one of the vault operations, validates
// the input against the operation's schema and normalizes every outcome into
// a single success/VaultError result shape.
package dispatch

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github/chapool/cardano-vault/internal/util"
	"github/chapool/cardano-vault/internal/vault"
)

// Binding is the contract a transport adapter fulfills: extract the abstract
// request parts from whatever the framework hands over. Extractors may fail;
// body/query failures are treated as an empty input rather than a request
// failure.
type Binding interface {
	Path(ctx context.Context) (string, error)
	Method(ctx context.Context) (string, error)
	Body(ctx context.Context) (map[string]interface{}, error)
	Query(ctx context.Context) (map[string]interface{}, error)
}

// Result is the uniform outcome of a dispatch: exactly one of Response and
// Err is set.
type Result struct {
	Response interface{}
	Err      *vault.VaultError
}

const tenantField = "userId"

// invoker calls one typed vault operation with the validated string fields.
type invoker func(ctx context.Context, v *vault.Service, fields map[string]string) (interface{}, error)

// field is one declared schema entry; fields are validated in declaration
// order so the first violation is deterministic.
type field struct {
	name     string
	required bool
}

// operation describes one dispatchable vault operation: its required HTTP
// method, the declared input schema and the typed invoker.
type operation struct {
	method string
	schema []field
	invoke invoker
}

// operations is the static dispatch table keyed by the path operation segment.
var operations = map[string]operation{
	"wallet": {
		method: http.MethodGet,
		schema: []field{{tenantField, true}},
		invoke: func(ctx context.Context, v *vault.Service, fields map[string]string) (interface{}, error) {
			return v.GetWallet(ctx, vault.GetWalletInput{TenantID: fields[tenantField]})
		},
	},
	"sign-data": {
		method: http.MethodPost,
		schema: []field{{tenantField, true}, {"payload", true}, {"externalAad", false}},
		invoke: func(ctx context.Context, v *vault.Service, fields map[string]string) (interface{}, error) {
			return v.SignData(ctx, vault.SignDataInput{
				TenantID:    fields[tenantField],
				Payload:     fields["payload"],
				ExternalAAD: fields["externalAad"],
			})
		},
	},
	"sign-transaction": {
		method: http.MethodPost,
		schema: []field{{tenantField, true}, {"transaction", true}},
		invoke: func(ctx context.Context, v *vault.Service, fields map[string]string) (interface{}, error) {
			return v.SignTransaction(ctx, vault.SignTransactionInput{
				TenantID:    fields[tenantField],
				Transaction: fields["transaction"],
			})
		},
	},
}

// Dispatcher routes abstract requests onto a vault instance. It is stateless
// apart from the vault reference and safe for concurrent use.
type Dispatcher struct {
	vault *vault.Service
}

func New(v *vault.Service) *Dispatcher {
	return &Dispatcher{vault: v}
}

// Dispatch runs the full protocol state machine for one request. It never
// panics outward: any escaped failure is normalized into a VaultError.
func (d *Dispatcher) Dispatch(ctx context.Context, binding Binding) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			util.LogFromContext(ctx).Error().Interface("panic", r).Msg("Recovered panic during request dispatch")
			result = Result{Err: vault.NewInternalError("Internal server error", errors.Errorf("panic: %v", r))}
		}
	}()

	path, err := binding.Path(ctx)
	if err != nil {
		return Result{Err: vault.NewInternalError("Internal server error", err)}
	}

	method, err := binding.Method(ctx)
	if err != nil {
		return Result{Err: vault.NewInternalError("Internal server error", err)}
	}

	segments := splitPath(path)
	if len(segments) < 3 || segments[0] != "users" {
		return Result{Err: vault.NewVaultError("Not found", http.StatusNotFound, nil)}
	}

	tenantID := segments[1]
	if tenantID == "" {
		return Result{Err: vault.NewVaultError("Not found", http.StatusNotFound, nil)}
	}

	op, ok := operations[segments[2]]
	if !ok {
		return Result{Err: vault.NewVaultError("Not found", http.StatusNotFound, nil)}
	}

	if !strings.EqualFold(method, op.method) {
		return Result{Err: vault.NewVaultError("Method not allowed", http.StatusMethodNotAllowed, nil)}
	}

	input := readInput(ctx, binding, op.method)

	// the path is the sole source of truth for tenant identity
	input[tenantField] = tenantID

	fields, verr := validate(input, op.schema)
	if verr != nil {
		return Result{Err: verr}
	}

	response, err := op.invoke(ctx, d.vault, fields)
	if err != nil {
		if vaultErr, ok := vault.AsVaultError(err); ok {
			return Result{Err: vaultErr}
		}

		return Result{Err: vault.NewInternalError("Unknown error", err)}
	}

	return Result{Response: response}
}

// splitPath splits the request path into segments, tolerating leading and
// trailing slashes. Inner empty segments are kept so that a path like
// /users//wallet carries an empty tenant id instead of collapsing into a
// different route.
func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// readInput extracts the operation input from the query (GET) or the body
// (everything else). A failing extractor yields an empty input instead of
// failing the request.
func readInput(ctx context.Context, binding Binding, method string) map[string]interface{} {
	var input map[string]interface{}
	var err error

	if method == http.MethodGet {
		input, err = binding.Query(ctx)
	} else {
		input, err = binding.Body(ctx)
	}

	if err != nil || input == nil {
		return map[string]interface{}{}
	}

	return input
}

// validate checks the merged input against the operation schema and reduces it
// to the declared string fields. The first violation fails the request.
func validate(input map[string]interface{}, schema []field) (map[string]string, *vault.VaultError) {
	fields := make(map[string]string, len(schema))

	for _, f := range schema {
		value, present := input[f.name]
		if !present || value == nil {
			if f.required {
				return nil, vault.NewVaultError("Bad request", http.StatusBadRequest,
					errors.Errorf("missing required field %q", f.name))
			}
			continue
		}

		str, ok := value.(string)
		if !ok {
			return nil, vault.NewVaultError("Bad request", http.StatusBadRequest,
				errors.Errorf("field %q must be a string", f.name))
		}

		if str == "" && f.required {
			return nil, vault.NewVaultError("Bad request", http.StatusBadRequest,
				errors.Errorf("missing required field %q", f.name))
		}

		fields[f.name] = str
	}

	return fields, nil
}
