// Package session owns the token lifecycle: device pairing, session
// token refresh, and the in-memory token cache layered over the
// credential store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papertablet/papercloud-go/internal/cloud"
	"github.com/papertablet/papercloud-go/internal/credstore"
)

// The remote documents a 24-hour server-side session token lifetime but
// never returns an expiry, so the client assumes 23 hours from issue
// time. Persisted tokens are refreshed behind a further 1-hour buffer so
// a token handed to a caller is never within an hour of dying.
const (
	userTokenLifetime = 23 * time.Hour
	refreshBuffer     = 1 * time.Hour
)

// Exchanger performs the credential protocol against the auth host.
// cloud.Authenticator is the real implementation.
type Exchanger interface {
	RegisterDevice(ctx context.Context, oneTimeCode, deviceDesc, deviceID string) (string, error)
	ExchangeUserToken(ctx context.Context, deviceToken string) (string, error)
}

// cachedToken is a process-local shadow of the persisted session token.
// The credential store is authoritative on any mismatch.
type cachedToken struct {
	token     string
	expiresAt time.Time
}

// Manager resolves valid session tokens for users, refreshing through the
// auth host when the cached and persisted tokens have expired. Safe for
// concurrent use: the mutex guarantees readers never observe a token
// paired with a mismatched expiry. Two concurrent refreshes may both hit
// the auth host; the remote tolerates multiple live session tokens, so
// the overlap is an idempotent overwrite rather than a serialized wait.
type Manager struct {
	store      credstore.Store
	auth       Exchanger
	deviceDesc string
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]cachedToken

	// now is a clock hook for tests. Defaults to time.Now.
	now func() time.Time
}

// NewManager creates a Manager. deviceDesc names this client installation
// in the remote's paired-devices list.
func NewManager(store credstore.Store, auth Exchanger, deviceDesc string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:      store,
		auth:       auth,
		deviceDesc: deviceDesc,
		logger:     logger,
		cache:      make(map[string]cachedToken),
		now:        time.Now,
	}
}

// Token returns a valid session token for userID, resolving cheapest
// first: the in-memory cache, then the persisted token (behind the
// refresh buffer), then a fresh exchange using the persisted device
// token. A refreshed token is persisted before the cache is updated, so
// a crash between the two never loses it. Returns cloud.ErrNotConnected
// when no credential record exists.
func (m *Manager) Token(ctx context.Context, userID string) (string, error) {
	now := m.now()

	m.mu.Lock()
	if entry, ok := m.cache[userID]; ok && entry.expiresAt.After(now) {
		m.mu.Unlock()
		return entry.token, nil
	}
	m.mu.Unlock()

	cred, err := m.store.Get(ctx, userID)
	if errors.Is(err, credstore.ErrNotFound) {
		return "", fmt.Errorf("%w: user %s", cloud.ErrNotConnected, userID)
	}

	if err != nil {
		return "", fmt.Errorf("session: reading credential: %w", err)
	}

	// Persisted token still valid beyond the buffer: adopt it without I/O.
	if cred.UserToken != "" && cred.UserTokenExpiresAt.After(now.Add(refreshBuffer)) {
		m.setCached(userID, cred.UserToken, cred.UserTokenExpiresAt)
		return cred.UserToken, nil
	}

	return m.refresh(ctx, userID, cred)
}

// refresh exchanges the device token for a fresh session token and
// writes it through to the store before updating the cache.
func (m *Manager) refresh(ctx context.Context, userID string, cred *credstore.Credential) (string, error) {
	m.logger.Debug("refreshing session token", slog.String("user_id", userID))

	token, err := m.auth.ExchangeUserToken(ctx, cred.DeviceToken)
	if err != nil {
		return "", err
	}

	expiresAt := m.now().Add(userTokenLifetime)

	cred.UserToken = token
	cred.UserTokenExpiresAt = expiresAt

	if err := m.store.Put(ctx, cred); err != nil {
		return "", fmt.Errorf("session: persisting refreshed token: %w", err)
	}

	m.setCached(userID, token, expiresAt)

	m.logger.Info("session token refreshed",
		slog.String("user_id", userID),
		slog.Time("expires_at", expiresAt),
	)

	return token, nil
}

func (m *Manager) setCached(userID, token string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache[userID] = cachedToken{token: token, expiresAt: expiresAt}
}

// Connect pairs this client with the user's remote account: it exchanges
// the one-time code for a device token, performs the initial session
// token exchange, and persists the full credential marked connected.
func (m *Manager) Connect(ctx context.Context, userID, oneTimeCode string) error {
	deviceID := uuid.New().String()

	deviceToken, err := m.auth.RegisterDevice(ctx, oneTimeCode, m.deviceDesc, deviceID)
	if err != nil {
		return err
	}

	userToken, err := m.auth.ExchangeUserToken(ctx, deviceToken)
	if err != nil {
		return err
	}

	expiresAt := m.now().Add(userTokenLifetime)

	cred := &credstore.Credential{
		UserID:             userID,
		DeviceToken:        deviceToken,
		UserToken:          userToken,
		UserTokenExpiresAt: expiresAt,
		Connected:          true,
	}

	if err := m.store.Put(ctx, cred); err != nil {
		return fmt.Errorf("session: persisting credential: %w", err)
	}

	m.setCached(userID, userToken, expiresAt)

	m.logger.Info("connected", slog.String("user_id", userID))

	return nil
}

// Disconnect destroys the user's credential record and clears the cache.
// After Disconnect, Token fails with cloud.ErrNotConnected.
func (m *Manager) Disconnect(ctx context.Context, userID string) error {
	if err := m.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("session: deleting credential: %w", err)
	}

	m.mu.Lock()
	delete(m.cache, userID)
	m.mu.Unlock()

	m.logger.Info("disconnected", slog.String("user_id", userID))

	return nil
}

// MarkSynced stamps the credential's last sync time. Called after a
// successful upload.
func (m *Manager) MarkSynced(ctx context.Context, userID string) error {
	cred, err := m.store.Get(ctx, userID)
	if errors.Is(err, credstore.ErrNotFound) {
		return fmt.Errorf("%w: user %s", cloud.ErrNotConnected, userID)
	}

	if err != nil {
		return fmt.Errorf("session: reading credential: %w", err)
	}

	cred.LastSyncAt = m.now().UTC()

	if err := m.store.Put(ctx, cred); err != nil {
		return fmt.Errorf("session: persisting sync time: %w", err)
	}

	return nil
}

// Status reports the persisted credential for userID, or
// cloud.ErrNotConnected.
func (m *Manager) Status(ctx context.Context, userID string) (*credstore.Credential, error) {
	cred, err := m.store.Get(ctx, userID)
	if errors.Is(err, credstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", cloud.ErrNotConnected, userID)
	}

	if err != nil {
		return nil, fmt.Errorf("session: reading credential: %w", err)
	}

	return cred, nil
}

// TokenSource adapts the manager to cloud.TokenSource for one user.
func (m *Manager) TokenSource(userID string) cloud.TokenSource {
	return tokenSource{mgr: m, userID: userID}
}

type tokenSource struct {
	mgr    *Manager
	userID string
}

func (t tokenSource) Token(ctx context.Context) (string, error) {
	return t.mgr.Token(ctx, t.userID)
}
