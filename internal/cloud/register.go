package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Auth endpoint paths.
const (
	registerDevicePath    = "/token/json/2/device/new"
	exchangeUserTokenPath = "/token/json/2/user/new"
)

// Authenticator performs the credential protocol against the auth host:
// one-time pairing code -> device token -> session token. It is separate
// from Client because these calls run before a session token exists.
type Authenticator struct {
	authURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAuthenticator creates an Authenticator for the given auth host base URL.
func NewAuthenticator(authURL string, httpClient *http.Client, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Authenticator{
		authURL:    authURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// registerDeviceRequest is the wire format for device registration.
type registerDeviceRequest struct {
	Code       string `json:"code"`
	DeviceDesc string `json:"deviceDesc"`
	DeviceID   string `json:"deviceID"`
}

// RegisterDevice exchanges a short-lived, user-supplied pairing code for a
// long-lived device token. The response body is the raw secret. Any
// non-success status is ErrAuthentication; a rejected code is not retryable.
func (a *Authenticator) RegisterDevice(ctx context.Context, oneTimeCode, deviceDesc, deviceID string) (string, error) {
	a.logger.Info("registering device",
		slog.String("device_id", deviceID),
		slog.String("device_desc", deviceDesc),
	)

	body, err := json.Marshal(registerDeviceRequest{
		Code:       oneTimeCode,
		DeviceDesc: deviceDesc,
		DeviceID:   deviceID,
	})
	if err != nil {
		return "", fmt.Errorf("cloud: marshaling registration request: %w", err)
	}

	tok, err := a.postForToken(ctx, registerDevicePath, bytes.NewReader(body), "")
	if err != nil {
		return "", err
	}

	a.logger.Info("device registered", slog.String("device_id", deviceID))

	return tok, nil
}

// ExchangeUserToken trades the device token for a session token. The remote
// does not report an expiry; the caller assumes one (see session package).
func (a *Authenticator) ExchangeUserToken(ctx context.Context, deviceToken string) (string, error) {
	a.logger.Debug("exchanging device token for session token")

	tok, err := a.postForToken(ctx, exchangeUserTokenPath, http.NoBody, deviceToken)
	if err != nil {
		return "", err
	}

	a.logger.Info("session token refreshed")

	return tok, nil
}

// postForToken POSTs to an auth endpoint and returns the raw response body
// as the token. bearer is optional; when set it is sent as a Bearer header.
func (a *Authenticator) postForToken(ctx context.Context, path string, body io.Reader, bearer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL+path, body)
	if err != nil {
		return "", fmt.Errorf("cloud: creating auth request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	if body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("cloud: auth request canceled: %w", ctx.Err())
		}

		return "", fmt.Errorf("%w: POST %s: %v", ErrNetwork, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("cloud: reading auth response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		a.logger.Warn("auth request rejected",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(raw),
			Err:        ErrAuthentication,
		}
	}

	tok := strings.TrimSpace(string(raw))
	if tok == "" {
		return "", fmt.Errorf("%w: auth endpoint %s returned an empty token", ErrProtocol, path)
	}

	return tok, nil
}
