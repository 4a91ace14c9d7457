package vault

import (
	"fmt"
	"net/http"
)

// VaultError is the single error type surfaced to callers of the vault. It
// carries an HTTP-style status code and an optional cause chain.
type VaultError struct {
	Message    string
	StatusCode int
	Cause      error
}

func NewVaultError(message string, statusCode int, cause error) *VaultError {
	return &VaultError{
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewInternalError wraps an internal failure with the given operation-fixed
// message and status code 500.
func NewInternalError(message string, cause error) *VaultError {
	return NewVaultError(message, http.StatusInternalServerError, cause)
}

func (e *VaultError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (status %d): %s", e.Message, e.StatusCode, e.Cause.Error())
	}

	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *VaultError) Unwrap() error {
	return e.Cause
}

// AsVaultError unwraps err into a *VaultError if it is one.
func AsVaultError(err error) (*VaultError, bool) {
	if err == nil {
		return nil, false
	}

	verr, ok := err.(*VaultError)
	return verr, ok
}

// ErrorBody is the wire form of a VaultError: the message plus a nested cause
// chain with consecutive duplicate messages collapsed.
type ErrorBody struct {
	Error string     `json:"error"`
	Cause *ErrorBody `json:"cause,omitempty"`
}

// Body renders the error into its wire form.
func (e *VaultError) Body() *ErrorBody {
	root := &ErrorBody{Error: e.Message}

	node := root
	cause := e.Cause
	for cause != nil {
		var message string
		var next error

		if verr, ok := AsVaultError(cause); ok {
			message = verr.Message
			next = verr.Cause
		} else {
			message = cause.Error()
			next = nil
		}

		// de-duplicate repeated messages at the same text
		if message != node.Error {
			node.Cause = &ErrorBody{Error: message}
			node = node.Cause
		}

		cause = next
	}

	return root
}
