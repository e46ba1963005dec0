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
	"time"

	"github.com/google/uuid"

	"golang.org/x/text/unicode/norm"
)

const createNodePath = "/document-storage/json/2/docs"

// CleanPath normalizes a slash-separated logical path: NFC, single leading
// slash, no trailing slash, repeated slashes collapsed. Root is "/".
func CleanPath(path string) string {
	return "/" + strings.Join(splitPath(path), "/")
}

// splitPath returns the non-empty segments of a path, NFC-normalized, or
// nil for root. Empty segments from doubled slashes are dropped so a
// sloppy path can never name an empty folder.
func splitPath(path string) []string {
	var segments []string

	for _, seg := range strings.Split(norm.NFC.String(path), "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	return segments
}

// ResolveFolder looks up the folder id for an exact logical path from a
// fresh listing. Returns ErrNotFound if no folder has that path.
func (c *Client) ResolveFolder(ctx context.Context, path string) (string, error) {
	nodes, err := c.ListNodes(ctx)
	if err != nil {
		return "", err
	}

	paths, err := BuildFolderPaths(nodes)
	if err != nil {
		return "", err
	}

	clean := CleanPath(path)
	for id, p := range paths {
		if p == clean {
			return id, nil
		}
	}

	return "", fmt.Errorf("%w: folder %s", ErrNotFound, clean)
}

// ListDocumentsIn returns the Document nodes directly inside the folder at
// the given path. A path that does not resolve yields an empty slice, not
// an error; absence of a folder and an empty folder look the same to
// callers listing documents. Root ("" or "/") lists root-level documents.
func (c *Client) ListDocumentsIn(ctx context.Context, path string) ([]Node, error) {
	nodes, err := c.ListNodes(ctx)
	if err != nil {
		return nil, err
	}

	clean := CleanPath(path)

	parentID := ""

	if clean != "/" {
		paths, err := BuildFolderPaths(nodes)
		if err != nil {
			return nil, err
		}

		found := false

		for id, p := range paths {
			if p == clean {
				parentID = id
				found = true

				break
			}
		}

		if !found {
			c.logger.Debug("folder path does not resolve", slog.String("path", clean))
			return []Node{}, nil
		}
	}

	docs := make([]Node, 0)

	for i := range nodes {
		if nodes[i].Kind == KindDocument && nodes[i].ParentID == parentID {
			docs = append(docs, nodes[i])
		}
	}

	return docs, nil
}

// GetOrCreateFolder resolves a logical path to a folder id, creating any
// missing segments left to right. Each level re-reads the current index
// rather than trusting a snapshot, so a concurrent or previously failed
// walk's folders are found instead of duplicated. The walk is not
// transactional: a failure partway leaves already-created ancestors in
// place, and the next call finds them.
//
// Root ("" or "/") returns the empty id without any network call.
func (c *Client) GetOrCreateFolder(ctx context.Context, path string) (string, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return "", nil
	}

	c.logger.Debug("resolving folder path", slog.String("path", CleanPath(path)))

	parentID := ""
	built := ""

	for _, seg := range segments {
		built = built + "/" + seg

		nodes, err := c.ListNodes(ctx)
		if err != nil {
			return "", err
		}

		paths, err := BuildFolderPaths(nodes)
		if err != nil {
			return "", err
		}

		if id := idForPath(paths, built); id != "" {
			parentID = id
			continue
		}

		folder := Node{
			ID:       uuid.New().String(),
			Version:  1,
			Name:     seg,
			Kind:     KindCollection,
			ParentID: parentID,
			Modified: time.Now().UTC(),
		}

		if err := c.CreateNode(ctx, folder); err != nil {
			return "", fmt.Errorf("creating folder %q: %w", built, err)
		}

		c.logger.Info("created folder",
			slog.String("path", built),
			slog.String("id", folder.ID),
		)

		parentID = folder.ID
	}

	return parentID, nil
}

// idForPath returns the id mapped to path, or "" if absent.
func idForPath(paths map[string]string, path string) string {
	for id, p := range paths {
		if p == path {
			return id
		}
	}

	return ""
}

// CreateNode registers a node record (document metadata or new folder)
// with the sync API.
func (c *Client) CreateNode(ctx context.Context, n Node) error {
	body, err := json.Marshal(n.toRecord())
	if err != nil {
		return fmt.Errorf("cloud: marshaling node record: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, createNodePath, bytes.NewReader(body), ErrTransfer)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("cloud: draining create node response: %w", err)
	}

	return nil
}
