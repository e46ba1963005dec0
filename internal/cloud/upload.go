package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// pdfContentType is the content type for blob PUTs of generated documents.
const pdfContentType = "application/pdf"

// UploadStep identifies which step of the multi-request upload sequence
// failed. The sequence has no server-side atomicity: steps already
// completed are not rolled back, so callers deciding on compensating
// actions (e.g. deleting an orphaned blob) need to know how far it got.
type UploadStep string

const (
	StepFolder    UploadStep = "folder"     // resolving/creating the destination folder
	StepSignURL   UploadStep = "sign-url"   // requesting the signed upload URL
	StepBlob      UploadStep = "blob"       // PUT of the raw bytes to the signed URL
	StepRegister  UploadStep = "register"   // registering the node metadata
	StepSyncStamp UploadStep = "sync-stamp" // recording lastSyncAt on the credential
)

// UploadError reports a failed upload step. Unwraps to the step's
// originating error.
type UploadError struct {
	Step       UploadStep
	DocumentID string
	Err        error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("cloud: upload step %s failed for document %s: %v", e.Step, e.DocumentID, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

type uploadURLRequest struct {
	DocID   string `json:"docID"`
	DocType string `json:"docType"`
}

// Upload transfers a generated PDF to the remote and registers it under
// folderPath, creating missing folders on demand. The steps are strictly
// ordered, each depending on the previous response:
//
//  1. generate a fresh document id
//  2. resolve/create the destination folder
//  3. request a signed upload URL for the id
//  4. PUT the raw bytes to the signed URL
//  5. register the node metadata
//
// Any failing step aborts the operation with an *UploadError naming the
// step; completed steps are not rolled back. Returns the new document id.
func (c *Client) Upload(ctx context.Context, r io.Reader, size int64, name, folderPath string) (string, error) {
	documentID := uuid.New().String()

	c.logger.Info("uploading document",
		slog.String("document_id", documentID),
		slog.String("name", name),
		slog.String("folder", CleanPath(folderPath)),
		slog.Int64("size", size),
	)

	parentID, err := c.GetOrCreateFolder(ctx, folderPath)
	if err != nil {
		return "", &UploadError{Step: StepFolder, DocumentID: documentID, Err: err}
	}

	signedURL, err := c.requestUploadURL(ctx, documentID)
	if err != nil {
		return "", &UploadError{Step: StepSignURL, DocumentID: documentID, Err: err}
	}

	if err := c.putBlob(ctx, signedURL, r, size); err != nil {
		return "", &UploadError{Step: StepBlob, DocumentID: documentID, Err: err}
	}

	doc := Node{
		ID:       documentID,
		Version:  1,
		Name:     name,
		Kind:     KindDocument,
		ParentID: parentID,
		Pinned:   false,
	}

	if err := c.CreateNode(ctx, doc); err != nil {
		return "", &UploadError{Step: StepRegister, DocumentID: documentID, Err: err}
	}

	c.logger.Info("upload complete",
		slog.String("document_id", documentID),
		slog.String("name", name),
	)

	return documentID, nil
}

// requestUploadURL asks the sync API for a signed upload URL scoped to the
// new document id.
func (c *Client) requestUploadURL(ctx context.Context, documentID string) (string, error) {
	body, err := json.Marshal(uploadURLRequest{DocID: documentID, DocType: "pdf"})
	if err != nil {
		return "", fmt.Errorf("cloud: marshaling upload URL request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, uploadURLPath, bytes.NewReader(body), ErrTransfer)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var sur signedURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&sur); err != nil {
		return "", fmt.Errorf("%w: decoding upload URL response: %v", ErrProtocol, err)
	}

	if sur.URL == "" {
		return "", fmt.Errorf("%w: upload URL response missing url", ErrProtocol)
	}

	return sur.URL, nil
}

// putBlob PUTs the raw document bytes to a signed URL. The URL embeds its
// own authorization, so no bearer token is sent.
func (c *Client) putBlob(ctx context.Context, signedURL string, r io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, r)
	if err != nil {
		return fmt.Errorf("cloud: creating blob upload request: %w", err)
	}

	req.Header.Set("Content-Type", pdfContentType)
	req.Header.Set("User-Agent", userAgent)
	req.ContentLength = size

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("cloud: blob upload canceled: %w", ctx.Err())
		}

		return fmt.Errorf("%w: uploading blob: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message

		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Err:        ErrTransfer,
		}
	}

	// Drain so the connection can be reused.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("cloud: draining blob upload response: %w", err)
	}

	return nil
}
