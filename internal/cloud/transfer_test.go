package cloud

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadDownloadRoundTrip(t *testing.T) {
	fc := newFakeCloud(t)
	client := fc.client()
	ctx := context.Background()

	content := []byte("%PDF-1.7 agenda body")

	id, err := client.Upload(ctx, bytes.NewReader(content), int64(len(content)), "Agenda 2024-01-01", "/Calendar")
	require.NoError(t, err)
	require.NoError(t, uuid.Validate(id))

	// The node was registered with the expected metadata.
	fc.mu.Lock()
	doc, ok := fc.nodes[id]
	fc.mu.Unlock()

	require.True(t, ok, "document node not registered")
	assert.Equal(t, "Agenda 2024-01-01", doc.Name)
	assert.Equal(t, KindDocument, doc.Type)
	assert.Equal(t, 1, doc.Version)
	assert.False(t, doc.Pinned)
	assert.NotEmpty(t, doc.Parent, "document should live in the created folder")

	var buf bytes.Buffer

	n, err := client.Download(ctx, id, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, content, buf.Bytes())
}

func TestUpload_RootDestination(t *testing.T) {
	fc := newFakeCloud(t)

	content := []byte("data")

	id, err := fc.client().Upload(context.Background(), bytes.NewReader(content), 4, "Loose", "/")
	require.NoError(t, err)

	fc.mu.Lock()
	defer fc.mu.Unlock()

	assert.Empty(t, fc.nodes[id].Parent)
	assert.Empty(t, fc.createCalls, "no folders should be created for root uploads")
}

func TestUpload_RegisterFailureReportsStep(t *testing.T) {
	fc := newFakeCloud(t)

	// Wrap the fake so node registration fails while everything else works.
	wrapped := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == createNodePath {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		fc.srv.Config.Handler.ServeHTTP(w, r)
	}))
	defer wrapped.Close()

	client := NewClient(wrapped.URL, wrapped.Client(), staticToken("test-token"), nil)

	_, err := client.Upload(context.Background(), bytes.NewReader([]byte("x")), 1, "Doc", "/")
	require.Error(t, err)

	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, StepRegister, upErr.Step)
	assert.ErrorIs(t, err, ErrTransfer)

	// The blob made it up before registration failed; the accepted
	// inconsistency window.
	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.Len(t, fc.blobs, 1)
}

func TestUpload_SignURLFailureReportsStep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == listNodesPath && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"docs":[]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), staticToken("tok"), nil)

	_, err := client.Upload(context.Background(), bytes.NewReader([]byte("x")), 1, "Doc", "/")
	require.Error(t, err)

	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, StepSignURL, upErr.Step)
}

func TestDownload_UnknownDocument(t *testing.T) {
	fc := newFakeCloud(t)

	var buf bytes.Buffer

	_, err := fc.client().Download(context.Background(), uuid.New().String(), &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, buf.Len())
}

func TestDownload_BlobFetchFailure(t *testing.T) {
	// Step 1 succeeds but the signed URL itself 403s: ErrTransfer.
	var srvURL string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case downloadURLPath:
			_, _ = w.Write([]byte(`{"url":"` + srvURL + `/blob/x"}`))
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	srvURL = srv.URL

	client := NewClient(srv.URL, srv.Client(), staticToken("tok"), nil)

	var buf bytes.Buffer

	_, err := client.Download(context.Background(), "some-id", &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransfer)
}

func TestDownload_MalformedURLResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"nope":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), staticToken("tok"), nil)

	var buf bytes.Buffer

	_, err := client.Download(context.Background(), "some-id", &buf)
	assert.ErrorIs(t, err, ErrProtocol)
}
