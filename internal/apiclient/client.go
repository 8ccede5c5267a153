// Package apiclient talks JSON to the yield-curve web application.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/yieldview/internal/apperr"
)

const maxErrorBody = 4 << 10

// Client issues single-attempt JSON requests against the backend. Every
// request carries the CSRF token last seen on a page.
type Client struct {
	base *url.URL
	http *http.Client

	mu    sync.RWMutex
	token string
}

// New returns a client rooted at baseURL. A nil httpClient uses a client with
// a 15 second timeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: base url must be http or https, got %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: u, http: httpClient}, nil
}

// SetToken replaces the CSRF token sent with subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current CSRF token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", apperr.New(apperr.CodeValidation, "invalid request path "+path, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	out := *c.base
	out.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	out.RawPath = strings.TrimRight(c.base.EscapedPath(), "/") + "/" + strings.TrimLeft(ref.EscapedPath(), "/")
	out.RawQuery = ref.RawQuery
	return out.String(), nil
}

// Do sends one JSON request. A nil body sends no payload; a nil out discards
// the response. Non-2xx responses return a NETWORK error carrying the status.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	target, err := c.resolve(path)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return apperr.New(apperr.CodeNetwork, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CSRFToken", c.Token())
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("API request failed", "method", method, "path", path, "error", err)
		return apperr.New(apperr.CodeNetwork, method+" "+path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("backend response close failed", "path", path, "error", err)
		}
	}()

	slog.Debug("backend request", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.Warn("API request failed", "method", method, "path", path, "status", resp.StatusCode, "body", strings.TrimSpace(string(snippet)))
		return apperr.HTTPStatus(resp.StatusCode)
	}
	if out == nil {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			slog.Debug("backend response drain failed", "path", path, "error", err)
		}
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.New(apperr.CodeNetwork, "read response "+path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.New(apperr.CodeBackend, "decode response "+path, err)
	}
	return nil
}

// Post sends a JSON POST.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Delete sends a DELETE without a body.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Get sends a GET without a body.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// GetHTML fetches a page as raw bytes. Non-2xx responses return a NETWORK
// error carrying the status.
func (c *Client) GetHTML(ctx context.Context, path string) ([]byte, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperr.New(apperr.CodeNetwork, "build request", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.CodeNetwork, "GET "+path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("backend response close failed", "path", path, "error", err)
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.HTTPStatus(resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.New(apperr.CodeNetwork, "read page "+path, err)
	}
	return body, nil
}

// ID is a backend identifier that may arrive as a JSON number or string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("apiclient: id must be a number or string")
	}
	*id = ID(n.String())
	return nil
}
