// Package docs is the public operation surface of the sync client. It is
// the single owner of the "valid token -> authenticated cloud client"
// glue: every operation resolves a session token through the session
// manager (which may hit the network) before touching the sync host, and
// uploads stamp the credential's last sync time on success.
package docs

import (
	"context"
	"io"
	"log/slog"

	"github.com/papertablet/papercloud-go/internal/cloud"
)

// SyncMarker records a completed upload on the user's credential.
// Satisfied by *session.Manager.
type SyncMarker interface {
	MarkSynced(ctx context.Context, userID string) error
}

// Service exposes the document operations the rest of the product calls:
// listing, download, PDF upload, and folder provisioning.
type Service struct {
	client *cloud.Client
	marker SyncMarker
	userID string
	logger *slog.Logger
}

// NewService wires a cloud client to the session layer for one user.
func NewService(client *cloud.Client, marker SyncMarker, userID string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		client: client,
		marker: marker,
		userID: userID,
		logger: logger,
	}
}

// Documents returns the Document nodes in the folder at path. Root ("" or
// "/") lists root-level documents; an unresolvable path yields an empty
// slice, not an error.
func (s *Service) Documents(ctx context.Context, path string) ([]cloud.Node, error) {
	return s.client.ListDocumentsIn(ctx, path)
}

// Nodes returns the complete flat listing.
func (s *Service) Nodes(ctx context.Context) ([]cloud.Node, error) {
	return s.client.ListNodes(ctx)
}

// Download streams the document's content to w and returns the byte count.
func (s *Service) Download(ctx context.Context, documentID string, w io.Writer) (int64, error) {
	return s.client.Download(ctx, documentID, w)
}

// UploadPDF transfers a generated PDF into folderPath and returns the new
// document id. Recording the user's last sync time is the final step of
// the upload sequence; if it fails, the error surfaces as an
// *cloud.UploadError for the sync-stamp step. The returned document id is
// valid in that case: the document is registered and reachable, only the
// local stamp is missing.
func (s *Service) UploadPDF(ctx context.Context, r io.Reader, size int64, name, folderPath string) (string, error) {
	documentID, err := s.client.Upload(ctx, r, size, name, folderPath)
	if err != nil {
		return "", err
	}

	if err := s.marker.MarkSynced(ctx, s.userID); err != nil {
		s.logger.Error("failed to record sync time",
			slog.String("user_id", s.userID),
			slog.String("document_id", documentID),
			slog.String("error", err.Error()),
		)

		return documentID, &cloud.UploadError{Step: cloud.StepSyncStamp, DocumentID: documentID, Err: err}
	}

	return documentID, nil
}

// CreateFolder provisions the folder at path (and any missing ancestors)
// and returns its id. Useful for pre-creating a destination before
// multiple uploads.
func (s *Service) CreateFolder(ctx context.Context, path string) (string, error) {
	return s.client.GetOrCreateFolder(ctx, path)
}
