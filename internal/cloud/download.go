package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

type signedURLResponse struct {
	URL string `json:"url"`
}

// Download streams the content of a document to the given writer. Step
// one asks the sync API for a signed download URL scoped to the document;
// step two fetches the blob from that URL without authentication. A
// rejected first step is ErrNotFound, a failed second step ErrTransfer.
// Returns the number of bytes written.
//
// The signed URL embeds its own authorization and is never logged.
func (c *Client) Download(ctx context.Context, documentID string, w io.Writer) (int64, error) {
	c.logger.Info("downloading document", slog.String("document_id", documentID))

	resp, err := c.do(ctx, http.MethodGet, downloadURLPath+"?doc="+url.QueryEscape(documentID), nil, ErrNotFound)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var sur signedURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&sur); err != nil {
		return 0, fmt.Errorf("%w: decoding download URL response: %v", ErrProtocol, err)
	}

	if sur.URL == "" {
		return 0, fmt.Errorf("%w: download URL response missing url", ErrProtocol)
	}

	n, err := c.fetchBlob(ctx, sur.URL, w)
	if err != nil {
		return n, err
	}

	c.logger.Debug("download complete",
		slog.String("document_id", documentID),
		slog.Int64("bytes_written", n),
	)

	return n, nil
}

// fetchBlob streams a signed URL's content directly to the writer.
func (c *Client) fetchBlob(ctx context.Context, signedURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("cloud: creating blob request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("cloud: blob fetch canceled: %w", ctx.Err())
		}

		return 0, fmt.Errorf("%w: fetching blob: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message

		return 0, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Err:        ErrTransfer,
		}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		c.logger.Error("streaming blob failed",
			slog.String("error", err.Error()),
			slog.Int64("bytes_before_error", n),
		)

		return n, fmt.Errorf("%w: streaming blob: %v", ErrTransfer, err)
	}

	return n, nil
}
