// Package cloud implements the HTTP client for the paper-tablet cloud
// service: device registration, token exchange, the flat node index,
// folder resolution, and signed-URL document transfer.
package cloud

import (
	"errors"
	"fmt"
)

// Sentinel errors for the client's failure taxonomy.
// Use errors.Is(err, cloud.ErrNotFound) to check.
var (
	// ErrNotConnected means no credential record exists for the user.
	ErrNotConnected = errors.New("cloud: not connected")

	// ErrAuthentication means device registration or token exchange was rejected.
	ErrAuthentication = errors.New("cloud: authentication rejected")

	// ErrNetwork is a transport-level failure (connection error, timeout).
	ErrNetwork = errors.New("cloud: network failure")

	// ErrNotFound means an unknown document or folder.
	ErrNotFound = errors.New("cloud: not found")

	// ErrTransfer is a non-success status on a data-moving call.
	ErrTransfer = errors.New("cloud: transfer failed")

	// ErrProtocol is a malformed or unexpected response from the remote.
	ErrProtocol = errors.New("cloud: protocol error")
)

// APIError wraps a sentinel error with the HTTP status code and response
// body of the failing call for debugging.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloud: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
