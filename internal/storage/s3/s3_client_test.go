package s3_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aforo/internal/config"
	"aforo/internal/domain"
	s3storage "aforo/internal/storage/s3"
)

// fakeS3 serves one object at /docs/batches/bl.pdf.
func fakeS3(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/docs" && r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/docs/batches/bl.pdf" && r.Method == http.MethodHead:
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/docs/batches/bl.pdf" && r.Method == http.MethodGet:
			w.Header().Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", len(body)-1, len(body)))
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestStore(t *testing.T, endpoint string, maxMB int64) *s3storage.Store {
	t.Helper()
	store, err := s3storage.NewStore(&config.S3Config{
		Region:        "us-east-1",
		Bucket:        "docs",
		Endpoint:      endpoint,
		AccessKey:     "test",
		SecretKey:     "test",
		MaxFileSizeMB: maxMB,
	})
	require.NoError(t, err)
	return store
}

func TestStore_Download(t *testing.T) {
	server := fakeS3(t, []byte("%PDF-1.4 bl"))
	defer server.Close()
	store := newTestStore(t, server.URL, 1)

	data, err := store.Download(context.Background(), "docs", "batches/bl.pdf")

	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 bl", string(data))
}

func TestStore_DownloadMissingKey(t *testing.T) {
	server := fakeS3(t, []byte("x"))
	defer server.Close()
	store := newTestStore(t, server.URL, 1)

	_, err := store.Download(context.Background(), "docs", "batches/gone.pdf")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_DownloadRefusesOversizedObject(t *testing.T) {
	server := fakeS3(t, make([]byte, 2<<20))
	defer server.Close()
	store := newTestStore(t, server.URL, 1)

	_, err := store.Download(context.Background(), "docs", "batches/bl.pdf")

	assert.ErrorIs(t, err, domain.ErrFileTooLarge)
}

func TestStore_PingContext(t *testing.T) {
	server := fakeS3(t, nil)
	defer server.Close()

	require.NoError(t, newTestStore(t, server.URL, 1).PingContext(context.Background()))

	missing, err := s3storage.NewStore(&config.S3Config{
		Region: "us-east-1", Bucket: "other", Endpoint: server.URL, AccessKey: "test", SecretKey: "test",
	})
	require.NoError(t, err)
	assert.Error(t, missing.PingContext(context.Background()))
}
