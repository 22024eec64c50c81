package exchange

import "fmt"

// GatewayError is an exchange-side failure: declined order, insufficient
// balance, invalid symbol, auth failure, timeout. Recorded per user by
// the engine, never fatal to a run.
type GatewayError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway error %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError creates a gateway error
func NewGatewayError(code, message string, err error) *GatewayError {
	return &GatewayError{Code: code, Message: message, Err: err}
}

// Well-known gateway error codes
const (
	CodeInsufficientBalance = "insufficient_balance"
	CodeInvalidSymbol       = "invalid_symbol"
	CodeAuthFailure         = "auth_failure"
	CodeTimeout             = "timeout"
	CodeRejected            = "rejected"
)
