package gcs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
)

func testClient(server *httptest.Server) *Client {
	return &Client{
		httpClient:    server.Client(),
		defaultBucket: "bucket",
		tokenSource:   staticTokenSource("test-token"),
		apiBase:       server.URL + "/storage/v1",
		uploadBase:    server.URL + "/upload/storage/v1",
		publicBase:    defaultPublicBase,
	}
}

func TestUploadIsUpsertAndReturnsPublicURL(t *testing.T) {
	t.Parallel()

	var uploads int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(t, "media", r.URL.Query().Get("uploadType"))
		require.Equal(t, "public/u1/products/p1.jpg", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(body))

		uploads++
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "public/u1/products/p1.jpg"})
	}))
	defer server.Close()

	client := testClient(server)

	url1, err := client.Upload(context.Background(), "public/u1/products/p1.jpg", []byte("payload"), "image/jpeg")
	require.NoError(t, err)
	url2, err := client.Upload(context.Background(), "public/u1/products/p1.jpg", []byte("payload"), "image/jpeg")
	require.NoError(t, err)

	// Same path, same URL; the second call overwrites rather than duplicating.
	assert.Equal(t, url1, url2)
	assert.Equal(t, "https://storage.googleapis.com/bucket/public/u1/products/p1.jpg", url1)
	assert.Equal(t, 2, uploads)
}

func TestListFollowsPagination(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "public/u1/", r.URL.Query().Get("prefix"))
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"items":[{"name":"public/u1/a.jpg","size":"10"}],"nextPageToken":"tok"}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"name":"public/u1/b.jpg","size":"20"}]}`))
	}))
	defer server.Close()

	objects, err := testClient(server).List(context.Background(), "public/u1/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "public/u1/a.jpg", objects[0].Path)
	assert.Equal(t, int64(20), objects[1].Size)
}

func TestDownloadErrorsCarryStorageCode(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such object", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server).Download(context.Background(), "missing.jpg")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStorage, typed.Code())
}

func TestMoveRewritesThenDeletes(t *testing.T) {
	t.Parallel()

	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if strings.Contains(r.URL.Path, "rewriteTo") {
			_, _ = w.Write([]byte(`{"done":true}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := testClient(server).Move(context.Background(), "u1/repair/x.jpg", "u1/trash/x.jpg")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0], "rewriteTo")
	assert.True(t, strings.HasPrefix(calls[1], "DELETE "))
}

func TestDeleteIgnoresMissingObjects(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "gone.jpg") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := testClient(server).Delete(context.Background(), "gone.jpg", "present.jpg")
	require.NoError(t, err)
}

func TestPublicURLWithCDNBase(t *testing.T) {
	t.Parallel()

	client := &Client{defaultBucket: "bucket", publicBase: "https://cdn.example.com"}
	assert.Equal(t, "https://cdn.example.com/public/u1/p1.jpg", client.PublicURL("public/u1/p1.jpg"))
}
