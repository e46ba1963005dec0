package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Sync endpoint paths.
const (
	listNodesPath   = "/document-storage/json/2/docs"
	downloadURLPath = "/document-storage/json/2/download"
	uploadURLPath   = "/document-storage/json/2/upload/request"
)

type listNodesResponse struct {
	Docs []nodeRecord `json:"docs"`
}

// ListNodes fetches the complete flat listing of the user's remote storage
// in a single call. The endpoint has no pagination; one response is the
// full set.
func (c *Client) ListNodes(ctx context.Context) ([]Node, error) {
	c.logger.Debug("listing nodes")

	resp, err := c.do(ctx, http.MethodGet, listNodesPath, nil, ErrTransfer)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var lnr listNodesResponse
	if err := json.NewDecoder(resp.Body).Decode(&lnr); err != nil {
		return nil, fmt.Errorf("%w: decoding node listing: %v", ErrProtocol, err)
	}

	nodes := make([]Node, 0, len(lnr.Docs))
	for i := range lnr.Docs {
		nodes = append(nodes, lnr.Docs[i].toNode())
	}

	c.logger.Debug("listed nodes", slog.Int("total", len(nodes)))

	return nodes, nil
}

// visiting marks a node currently on the walk stack in BuildFolderPaths.
// Seeing it again means the parent graph has a cycle.
const visiting = "\x00visiting"

// BuildFolderPaths computes the canonical slash-separated path of every
// Collection node by walking parentId links to the root. Results are
// memoized so shared prefixes are computed once. A cyclic or dangling
// parent graph is a remote protocol violation and fails with ErrProtocol
// instead of walking forever.
func BuildFolderPaths(nodes []Node) (map[string]string, error) {
	byID := make(map[string]*Node, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}

	paths := make(map[string]string)

	for i := range nodes {
		if !nodes[i].IsFolder() {
			continue
		}

		if _, err := folderPath(&nodes[i], byID, paths); err != nil {
			return nil, err
		}
	}

	return paths, nil
}

// folderPath resolves one folder's path, walking up the parent chain
// iteratively and memoizing every ancestor it touches along the way.
func folderPath(n *Node, byID map[string]*Node, paths map[string]string) (string, error) {
	if p, ok := paths[n.ID]; ok {
		// Already resolved as an ancestor of an earlier folder.
		return p, nil
	}

	// Collect the chain from n up to the first memoized ancestor or the root.
	var chain []*Node

	cur := n

	for {
		if p, ok := paths[cur.ID]; ok {
			if p == visiting {
				return "", fmt.Errorf("%w: cyclic parent chain at folder %s (%s)", ErrProtocol, cur.ID, cur.Name)
			}

			break
		}

		paths[cur.ID] = visiting
		chain = append(chain, cur)

		if cur.ParentID == "" {
			break
		}

		parent, ok := byID[cur.ParentID]
		if !ok {
			unwindVisiting(chain, paths)
			return "", fmt.Errorf("%w: folder %s references unknown parent %s", ErrProtocol, cur.ID, cur.ParentID)
		}

		cur = parent
	}

	// Resolve root-to-leaf: the deepest chain entry hangs off either the
	// memoized ancestor's path or the root.
	base := ""
	if last := chain[len(chain)-1]; last.ParentID != "" {
		base = paths[last.ParentID]
	}

	for i := len(chain) - 1; i >= 0; i-- {
		base = base + "/" + chain[i].Name
		paths[chain[i].ID] = base
	}

	return paths[n.ID], nil
}

// unwindVisiting clears visiting markers after a failed walk so the memo
// table never leaks the sentinel to later lookups.
func unwindVisiting(chain []*Node, paths map[string]string) {
	for _, c := range chain {
		delete(paths, c.ID)
	}
}
