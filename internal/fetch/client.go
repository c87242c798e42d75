package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cartavio/imagesync-backend/pkg/config"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
	"github.com/cartavio/imagesync-backend/pkg/logger"
)

// Result carries the fetched bytes and the negotiated content type.
type Result struct {
	Bytes       []byte
	ContentType string
}

// Client retrieves supplier-hosted images with per-host policy. Each policy
// lives on its own transport; no setting is ever applied process-wide.
type Client struct {
	cfg        config.FetchConfig
	allowTLS   map[string]bool
	preferIPv4 map[string]bool
	logg       *logger.Logger

	standard *http.Client
	insecure *http.Client
}

// NewClient builds a fetch client. The insecure-TLS allowance is honored
// only outside prod; in prod the host list is ignored and logged once.
func NewClient(cfg config.FetchConfig, app config.AppConfig, logg *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	allowTLS := map[string]bool{}
	if !app.IsProd() {
		for _, host := range cfg.InsecureTLSHosts {
			allowTLS[strings.ToLower(strings.TrimSpace(host))] = true
		}
	} else if len(cfg.InsecureTLSHosts) > 0 && logg != nil {
		logg.Warn(context.Background(), "insecure TLS host list ignored in prod")
	}

	preferIPv4 := map[string]bool{}
	for _, host := range cfg.PreferIPv4Hosts {
		preferIPv4[strings.ToLower(strings.TrimSpace(host))] = true
	}

	client := &Client{
		cfg:        cfg,
		allowTLS:   allowTLS,
		preferIPv4: preferIPv4,
		logg:       logg,
	}

	client.standard = &http.Client{
		Timeout:   timeout,
		Transport: client.newTransport(false),
	}
	client.insecure = &http.Client{
		Timeout:   timeout,
		Transport: client.newTransport(true),
	}

	return client
}

func (c *Client) newTransport(insecureTLS bool) *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, err := net.SplitHostPort(addr)
			if err == nil && c.preferIPv4[strings.ToLower(host)] {
				// Some supplier hosts publish broken AAAA records.
				return dialer.DialContext(ctx, "tcp4", addr)
			}
			return dialer.DialContext(ctx, network, addr)
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return transport
}

// Fetch retrieves one image. Failures are typed: NETWORK_ERROR for
// DNS/connect/timeout, HTTP_STATUS_ERROR for non-2xx, NOT_AN_IMAGE when the
// payload is not image content. There is no retry loop; requeueing a failed
// item is an explicit external operation.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid image url %q", rawURL))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported scheme %q", parsed.Scheme))
	}

	host := strings.ToLower(parsed.Hostname())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "building fetch request")
	}

	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "image/*,*/*;q=0.8")
	for name, value := range c.cfg.HostHeaders(host) {
		req.Header.Set(name, value)
	}

	httpClient := c.standard
	if c.allowTLS[host] {
		httpClient = c.insecure
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "fetching "+host)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, pkgerrors.New(pkgerrors.CodeHTTPStatus,
			fmt.Sprintf("upstream returned %s", resp.Status)).
			WithDetails(map[string]any{"status": resp.StatusCode, "host": host})
	}

	maxBytes := c.cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "reading response body")
	}
	if int64(len(body)) > maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeNotAnImage,
			fmt.Sprintf("payload exceeds %d bytes", maxBytes))
	}
	if len(body) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotAnImage, "empty response body")
	}

	contentType := sniffContentType(resp.Header.Get("Content-Type"), body)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, pkgerrors.New(pkgerrors.CodeNotAnImage,
			fmt.Sprintf("content type %q is not an image", contentType)).
			WithDetails(map[string]any{"content_type": contentType, "host": host})
	}

	return &Result{Bytes: body, ContentType: contentType}, nil
}

// sniffContentType trusts the payload over the header: supplier hosts are
// known to mislabel images as octet-stream or text.
func sniffContentType(header string, body []byte) string {
	sniffed := http.DetectContentType(body)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	if header == "" {
		return sniffed
	}
	mediaType, _, found := strings.Cut(header, ";")
	if found || mediaType != "" {
		return strings.TrimSpace(strings.ToLower(mediaType))
	}
	return sniffed
}
