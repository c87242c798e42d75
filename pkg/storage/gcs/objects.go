package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
)

// Object describes one stored blob as returned by List.
type Object struct {
	Path        string
	Size        int64
	ContentType string
	Updated     time.Time
}

// Upload writes data at path with upsert semantics: re-uploading the same
// path overwrites the previous object, never duplicates it. Returns the
// public URL of the object.
func (c *Client) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if path == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "object path is required")
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	u := fmt.Sprintf("%s/b/%s/o?uploadType=media&name=%s",
		c.uploadBase, url.PathEscape(c.defaultBucket), url.QueryEscape(path))

	resp, err := c.do(ctx, http.MethodPost, u, bytes.NewReader(data), contentType)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeStorage, err, "upload object")
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatus(resp, "upload"); err != nil {
		return "", err
	}

	return c.PublicURL(path), nil
}

// List returns all objects under the given prefix, following pagination.
func (c *Client) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	pageToken := ""
	for {
		u := fmt.Sprintf("%s/b/%s/o?prefix=%s",
			c.apiBase, url.PathEscape(c.defaultBucket), url.QueryEscape(prefix))
		if pageToken != "" {
			u += "&pageToken=" + url.QueryEscape(pageToken)
		}

		resp, err := c.do(ctx, http.MethodGet, u, nil, "")
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list objects")
		}

		var page struct {
			Items []struct {
				Name        string    `json:"name"`
				Size        int64     `json:"size,string"`
				ContentType string    `json:"contentType"`
				Updated     time.Time `json:"updated"`
			} `json:"items"`
			NextPageToken string `json:"nextPageToken"`
		}
		err = c.decodeBody(resp, "list", &page)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			out = append(out, Object{
				Path:        item.Name,
				Size:        item.Size,
				ContentType: item.ContentType,
				Updated:     item.Updated,
			})
		}

		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

// Download returns the raw bytes stored at path.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	u := fmt.Sprintf("%s/b/%s/o/%s?alt=media",
		c.apiBase, url.PathEscape(c.defaultBucket), url.PathEscape(path))

	resp, err := c.do(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "download object")
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatus(resp, "download"); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read object body")
	}
	return data, nil
}

// Move rewrites src to dst and deletes src. GCS has no rename; rewrite plus
// delete is the supported sequence.
func (c *Client) Move(ctx context.Context, src, dst string) error {
	u := fmt.Sprintf("%s/b/%s/o/%s/rewriteTo/b/%s/o/%s",
		c.apiBase,
		url.PathEscape(c.defaultBucket), url.PathEscape(src),
		url.PathEscape(c.defaultBucket), url.PathEscape(dst))

	rewriteToken := ""
	for {
		reqURL := u
		if rewriteToken != "" {
			reqURL += "?rewriteToken=" + url.QueryEscape(rewriteToken)
		}
		resp, err := c.do(ctx, http.MethodPost, reqURL, strings.NewReader("{}"), "application/json")
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "rewrite object")
		}
		var rewrite struct {
			Done         bool   `json:"done"`
			RewriteToken string `json:"rewriteToken"`
		}
		if err := c.decodeBody(resp, "rewrite", &rewrite); err != nil {
			return err
		}
		if rewrite.Done {
			break
		}
		rewriteToken = rewrite.RewriteToken
	}

	return c.Delete(ctx, src)
}

// Delete removes the given paths. Missing objects are ignored so deletes
// stay idempotent.
func (c *Client) Delete(ctx context.Context, paths ...string) error {
	for _, path := range paths {
		u := fmt.Sprintf("%s/b/%s/o/%s",
			c.apiBase, url.PathEscape(c.defaultBucket), url.PathEscape(path))

		resp, err := c.do(ctx, http.MethodDelete, u, nil, "")
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "delete object")
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return pkgerrors.New(pkgerrors.CodeStorage,
				fmt.Sprintf("delete %s: %s", path, resp.Status))
		}
	}
	return nil
}

// PublicURL resolves the public URL for an object path.
func (c *Client) PublicURL(path string) string {
	if c.publicBase == defaultPublicBase {
		return fmt.Sprintf("%s/%s/%s", c.publicBase, c.defaultBucket, path)
	}
	return fmt.Sprintf("%s/%s", c.publicBase, path)
}

func (c *Client) checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := fmt.Sprintf("%s failed: %s", op, resp.Status)
	if len(b) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.TrimSpace(string(b)))
	}
	return pkgerrors.New(pkgerrors.CodeStorage, msg)
}

func (c *Client) decodeBody(resp *http.Response, op string, dest any) error {
	defer func() { _ = resp.Body.Close() }()
	if err := c.checkStatus(resp, op); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, op+" response decode")
	}
	return nil
}
