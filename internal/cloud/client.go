package cloud

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const userAgent = "papercloud-go/0.1"

// TokenSource provides session bearer tokens. Defined at the consumer
// (cloud package) per Go convention "accept interfaces, return structs".
// The session package provides the real implementation.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is an HTTP client for the sync host: the node index, signed-URL
// transfer, and the notification stream. It handles request construction,
// authentication, and error classification. Auth-host calls (device
// registration, token exchange) live in Authenticator, which runs before
// a session token exists.
//
// The client never retries: every failure is surfaced to the caller,
// which owns retry policy.
type Client struct {
	syncURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
}

// NewClient creates a sync host client. syncURL is the host base URL
// without a trailing slash. A nil httpClient falls back to
// http.DefaultClient; callers should pass one with a request timeout.
func NewClient(syncURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		syncURL:    syncURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}
}

// do executes a bearer-authenticated request against the sync host.
// The path is appended to the sync base URL. For non-nil bodies,
// Content-Type is set to application/json. Non-2xx responses are
// classified with the given sentinel. The caller is responsible for
// closing the response body on success.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, failSentinel error) (*http.Response, error) {
	tok, err := c.token.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloud: obtaining token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.syncURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("cloud: creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("cloud: request canceled: %w", ctx.Err())
		}

		c.logger.Warn("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.statusError(resp, method, path, failSentinel)
	}

	c.logger.Debug("request succeeded",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	return resp, nil
}

// statusError reads and closes the error response body and wraps it in an
// APIError carrying the given sentinel. 401 always maps to ErrAuthentication
// regardless of the caller's sentinel, so stale tokens surface uniformly.
func (c *Client) statusError(resp *http.Response, method, path string, sentinel error) error {
	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		sentinel = ErrAuthentication
	}

	c.logger.Warn("request returned error status",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(errBody),
		Err:        sentinel,
	}
}
