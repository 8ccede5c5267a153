// Package notify forwards console alerts to an ntfy topic.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Send posts a plain-text message to an ntfy endpoint. A non-empty title is
// carried in the Title header; priority maps to the Priority header.
func Send(ctx context.Context, client *http.Client, endpoint, title, priority, message string) error {
	if strings.TrimSpace(endpoint) == "" {
		return errors.New("ntfy endpoint is required")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}
	if priority != "" {
		req.Header.Set("Priority", priority)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("ntfy response close failed", "error", err)
		}
	}()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		slog.Debug("ntfy response drain failed", "error", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
