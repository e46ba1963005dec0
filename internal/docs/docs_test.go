package docs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papertablet/papercloud-go/internal/cloud"
)

type staticToken string

func (t staticToken) Token(_ context.Context) (string, error) {
	return string(t), nil
}

// fakeMarker records MarkSynced calls.
type fakeMarker struct {
	calls   int
	userIDs []string
	err     error
}

func (f *fakeMarker) MarkSynced(_ context.Context, userID string) error {
	f.calls++
	f.userIDs = append(f.userIDs, userID)

	return f.err
}

// uploadHost serves just enough of the sync API for a root-level PDF
// upload: signed-URL request, blob PUT, and node registration.
func uploadHost(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	var srv *httptest.Server

	mux.HandleFunc("PUT /document-storage/json/2/upload/request", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DocID string `json:"docID"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		json.NewEncoder(w).Encode(map[string]string{"url": srv.URL + "/blob/" + req.DocID})
	})
	mux.HandleFunc("PUT /blob/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PUT /document-storage/json/2/docs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func newTestService(t *testing.T, srv *httptest.Server, marker *fakeMarker) *Service {
	t.Helper()

	client := cloud.NewClient(srv.URL, srv.Client(), staticToken("test-token"), slog.Default())

	return NewService(client, marker, "alice", slog.Default())
}

func TestUploadPDF_StampsSyncTime(t *testing.T) {
	marker := &fakeMarker{}
	svc := newTestService(t, uploadHost(t), marker)

	content := strings.NewReader("%PDF-1.4 test")

	id, err := svc.UploadPDF(context.Background(), content, int64(content.Len()), "Report", "/")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.Equal(t, 1, marker.calls)
	assert.Equal(t, []string{"alice"}, marker.userIDs)
}

func TestUploadPDF_StampFailureSurfaces(t *testing.T) {
	marker := &fakeMarker{err: errors.New("store unavailable")}
	svc := newTestService(t, uploadHost(t), marker)

	content := strings.NewReader("%PDF-1.4 test")

	id, err := svc.UploadPDF(context.Background(), content, int64(content.Len()), "Report", "/")
	require.Error(t, err)

	var upErr *cloud.UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, cloud.StepSyncStamp, upErr.Step)
	assert.Equal(t, id, upErr.DocumentID)

	// The transfer itself completed, so the id is still usable.
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, marker.calls)
}

func TestUploadPDF_FailedRegistrationDoesNotStamp(t *testing.T) {
	// Signed URL and blob PUT succeed; node registration fails. The
	// sync time must stay untouched because the document never became
	// visible.
	inner := uploadHost(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/document-storage/json/2/docs" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		inner.Config.Handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	marker := &fakeMarker{}
	svc := newTestService(t, srv, marker)

	content := strings.NewReader("%PDF-1.4 test")

	_, err := svc.UploadPDF(context.Background(), content, int64(content.Len()), "Report", "/")
	require.Error(t, err)

	var upErr *cloud.UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, cloud.StepRegister, upErr.Step)

	assert.Zero(t, marker.calls)
}
