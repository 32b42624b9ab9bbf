package types

import "fmt"

// ValidationError marks client-correctable input problems (bad phone, bad
// amount, missing config). Surfaced as 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// GatewayError wraps a provider rejection or a failed network call to the
// payment gateway. Surfaced as 502.
type GatewayError struct {
	Msg  string
	Code string
	Body string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (code %s)", e.Msg, e.Code)
	}
	return e.Msg
}

// PersistenceConflict reports that an idempotency constraint was hit. Callers
// treat it as success-no-op.
type PersistenceConflict struct {
	Key string
}

func (e *PersistenceConflict) Error() string {
	return fmt.Sprintf("record already exists for key %s", e.Key)
}
