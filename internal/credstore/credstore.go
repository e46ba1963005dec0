// Package credstore persists per-user cloud credentials: the long-lived
// device token obtained at pairing and the short-lived session token with
// its client-assumed expiry.
package credstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no credential record exists for a user.
var ErrNotFound = errors.New("credstore: credential not found")

// Credential is the persisted record for one user. DeviceToken never
// expires from the client's perspective; UserToken and UserTokenExpiresAt
// are rewritten on every refresh. The whole record is destroyed on
// disconnect.
type Credential struct {
	UserID             string
	DeviceToken        string
	UserToken          string
	UserTokenExpiresAt time.Time
	Connected          bool
	LastSyncAt         time.Time
}

// Store is the credential persistence interface. Implementations must
// make each write a single complete operation; an abandoned caller must
// never leave a torn record.
type Store interface {
	// Get returns the credential for userID, or ErrNotFound.
	Get(ctx context.Context, userID string) (*Credential, error)

	// Put creates or overwrites the credential for cred.UserID.
	Put(ctx context.Context, cred *Credential) error

	// Delete removes the credential for userID. Deleting an absent
	// record is not an error.
	Delete(ctx context.Context, userID string) error
}
