package cloud

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// staticToken is a test TokenSource that returns a fixed token.
type staticToken string

func (t staticToken) Token(_ context.Context) (string, error) {
	return string(t), nil
}

// fakeCloud is an in-memory sync host: a flat node table plus a blob
// store, served over httptest. It implements the listing, node
// registration, signed-URL, and blob endpoints.
type fakeCloud struct {
	t *testing.T

	mu    sync.Mutex
	nodes map[string]nodeRecord
	blobs map[string][]byte

	listCalls   int
	createCalls []string // created folder names, in registration order

	srv *httptest.Server
}

func newFakeCloud(t *testing.T) *fakeCloud {
	t.Helper()

	fc := &fakeCloud{
		t:     t,
		nodes: make(map[string]nodeRecord),
		blobs: make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+listNodesPath, fc.handleList)
	mux.HandleFunc("PUT "+createNodePath, fc.handleCreate)
	mux.HandleFunc("GET "+downloadURLPath, fc.handleDownloadURL)
	mux.HandleFunc("PUT "+uploadURLPath, fc.handleUploadURL)
	mux.HandleFunc("GET /blob/{id}", fc.handleBlobGet)
	mux.HandleFunc("PUT /blob/{id}", fc.handleBlobPut)

	fc.srv = httptest.NewServer(mux)
	t.Cleanup(fc.srv.Close)

	return fc
}

// client returns a Client wired to the fake.
func (fc *fakeCloud) client() *Client {
	return NewClient(fc.srv.URL, fc.srv.Client(), staticToken("test-token"), slog.Default())
}

// addNode seeds a node directly into the fake's table.
func (fc *fakeCloud) addNode(id, name, kind, parent string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.nodes[id] = nodeRecord{ID: id, Version: 1, Name: name, Type: kind, Parent: parent}
}

func (fc *fakeCloud) requireBearer(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer test-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}

	return true
}

func (fc *fakeCloud) handleList(w http.ResponseWriter, r *http.Request) {
	if !fc.requireBearer(w, r) {
		return
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.listCalls++

	docs := make([]nodeRecord, 0, len(fc.nodes))
	for _, n := range fc.nodes {
		docs = append(docs, n)
	}

	if err := json.NewEncoder(w).Encode(listNodesResponse{Docs: docs}); err != nil {
		fc.t.Errorf("encoding listing: %v", err)
	}
}

func (fc *fakeCloud) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !fc.requireBearer(w, r) {
		return
	}

	var rec nodeRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.nodes[rec.ID] = rec

	if rec.Type == KindCollection {
		fc.createCalls = append(fc.createCalls, rec.Name)
	}

	w.WriteHeader(http.StatusOK)
}

func (fc *fakeCloud) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	if !fc.requireBearer(w, r) {
		return
	}

	id := r.URL.Query().Get("doc")

	fc.mu.Lock()
	_, ok := fc.blobs[id]
	fc.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err := json.NewEncoder(w).Encode(signedURLResponse{URL: fc.srv.URL + "/blob/" + id}); err != nil {
		fc.t.Errorf("encoding download URL: %v", err)
	}
}

func (fc *fakeCloud) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	if !fc.requireBearer(w, r) {
		return
	}

	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if req.DocType != "pdf" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := json.NewEncoder(w).Encode(signedURLResponse{URL: fc.srv.URL + "/blob/" + req.DocID}); err != nil {
		fc.t.Errorf("encoding upload URL: %v", err)
	}
}

func (fc *fakeCloud) handleBlobGet(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	data, ok := fc.blobs[r.PathValue("id")]
	fc.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if _, err := w.Write(data); err != nil {
		fc.t.Errorf("writing blob: %v", err)
	}
}

func (fc *fakeCloud) handleBlobPut(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != pdfContentType {
		fc.t.Errorf("blob PUT content type = %q, want %q", ct, pdfContentType)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	fc.mu.Lock()
	fc.blobs[r.PathValue("id")] = data
	fc.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}
