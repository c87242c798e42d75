package fetch

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartavio/imagesync-backend/pkg/config"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
)

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newTestClient(cfg config.FetchConfig) *Client {
	return NewClient(cfg, config.AppConfig{Env: "dev"}, nil)
}

func TestFetchSuccessReturnsImageBytes(t *testing.T) {
	t.Parallel()

	payload := jpegBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	res, err := newTestClient(config.FetchConfig{Timeout: 5 * time.Second}).Fetch(context.Background(), server.URL+"/img.jpg")
	require.NoError(t, err)
	assert.Equal(t, payload, res.Bytes)
	assert.Equal(t, "image/jpeg", res.ContentType)
}

func TestFetchAppliesHostHeaderOverrides(t *testing.T) {
	payload := jpegBytes(t)
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)

	t.Setenv("IMAGESYNC_FETCH_HEADER_OVERRIDES",
		parsed.Hostname()+"=User-Agent:Mozilla/5.0|Referer:https://supplier.example")
	t.Setenv("IMAGESYNC_APP_ENV", "dev")
	t.Setenv("IMAGESYNC_GCS_BUCKET_NAME", "bucket")
	t.Setenv("IMAGESYNC_DB_DSN", "postgres://app@localhost/imagesync")
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Fetch.Timeout = 5 * time.Second

	_, err = newTestClient(cfg.Fetch).Fetch(context.Background(), server.URL+"/img.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Mozilla/5.0", gotUA)
	assert.Equal(t, "https://supplier.example", gotReferer)
}

func TestFetchNon2xxIsHTTPStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(config.FetchConfig{Timeout: 5 * time.Second}).Fetch(context.Background(), server.URL+"/img.jpg")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeHTTPStatus, typed.Code())
	assert.True(t, pkgerrors.Retryable(err))
}

func TestFetchHTMLBodyIsNotAnImage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>blocked</body></html>"))
	}))
	defer server.Close()

	_, err := newTestClient(config.FetchConfig{Timeout: 5 * time.Second}).Fetch(context.Background(), server.URL+"/img.jpg")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotAnImage, typed.Code())
	assert.False(t, pkgerrors.Retryable(err))
}

func TestFetchConnectFailureIsNetworkError(t *testing.T) {
	t.Parallel()

	// Reserved TEST-NET address; connect fails fast with the short timeout.
	client := newTestClient(config.FetchConfig{Timeout: time.Second})
	_, err := client.Fetch(context.Background(), "http://192.0.2.1:9/img.jpg")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNetwork, typed.Code())
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	client := newTestClient(config.FetchConfig{Timeout: time.Second})

	_, err := client.Fetch(context.Background(), "not a url")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = client.Fetch(context.Background(), "ftp://host/file.jpg")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestFetchSniffsMislabeledImages(t *testing.T) {
	t.Parallel()

	payload := jpegBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	res, err := newTestClient(config.FetchConfig{Timeout: 5 * time.Second}).Fetch(context.Background(), server.URL+"/img.bin")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", res.ContentType)
}

func TestInsecureTLSIgnoredInProd(t *testing.T) {
	t.Parallel()

	cfg := config.FetchConfig{Timeout: time.Second, InsecureTLSHosts: []string{"bad-cert.example"}}
	client := NewClient(cfg, config.AppConfig{Env: "prod"}, nil)
	assert.Empty(t, client.allowTLS)

	dev := NewClient(cfg, config.AppConfig{Env: "dev"}, nil)
	assert.True(t, dev.allowTLS["bad-cert.example"])
}
