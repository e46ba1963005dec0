package cloud

import (
	"time"

	"golang.org/x/text/unicode/norm"
)

// Node kinds in the remote's flat storage model.
const (
	KindDocument   = "Document"
	KindCollection = "Collection"
)

// Node is a single entry in the remote storage: a document or a
// collection (folder). Fields are normalized from the wire format;
// callers never see raw API data.
type Node struct {
	ID       string
	Version  int
	Name     string // NFC-normalized
	Kind     string // KindDocument or KindCollection
	ParentID string // empty for nodes at the root
	Modified time.Time
	Pinned   bool
}

// IsFolder reports whether the node is a Collection.
func (n *Node) IsFolder() bool {
	return n.Kind == KindCollection
}

// nodeRecord mirrors the sync API's node JSON exactly.
// Unexported; callers use Node via toNode() normalization.
type nodeRecord struct {
	ID       string `json:"id"`
	Version  int    `json:"version"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Parent   string `json:"parent"`
	Modified string `json:"modified,omitempty"`
	Pinned   bool   `json:"pinned"`
}

// toNode normalizes a wire record into a Node. Names are normalized to
// NFC so paths built from them compare consistently regardless of how
// the creating client encoded them.
func (r *nodeRecord) toNode() Node {
	n := Node{
		ID:       r.ID,
		Version:  r.Version,
		Name:     norm.NFC.String(r.Name),
		Kind:     r.Type,
		ParentID: r.Parent,
		Pinned:   r.Pinned,
	}

	if r.Modified != "" {
		if t, err := time.Parse(time.RFC3339, r.Modified); err == nil {
			n.Modified = t
		}
	}

	return n
}

// toRecord converts a Node back to the wire format for create/update calls.
func (n *Node) toRecord() nodeRecord {
	rec := nodeRecord{
		ID:      n.ID,
		Version: n.Version,
		Name:    n.Name,
		Type:    n.Kind,
		Parent:  n.ParentID,
		Pinned:  n.Pinned,
	}

	if !n.Modified.IsZero() {
		rec.Modified = n.Modified.UTC().Format(time.RFC3339)
	}

	return rec
}
