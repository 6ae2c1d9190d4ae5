package session

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrNotConnected    = errors.New("no open connection")
	ErrRateLimited     = errors.New("send rate limit exceeded")
)

// InitializationError reports that credential storage could not be
// prepared or the underlying connection could not be opened. It is
// surfaced to the immediate caller and never retried by the
// initializer itself.
type InitializationError struct {
	TenantID string
	Err      error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize session %s: %v", e.TenantID, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// PairingResult is the structured outcome of a pairing-code request.
// Failures are carried in the result, never thrown across the boundary.
type PairingResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}
