// Package listing fetches the authoritative list of pages and their content
// hashes from the remote directory listing.
package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/pagecache/internal/page"
)

// ErrRequest marks a failed or non-successful listing request.
var ErrRequest = errors.New("listing request failed")

// Entry is one item of the remote directory listing.
type Entry struct {
	Name        string `json:"name"`
	Sha         string `json:"sha"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

// Client reads the remote listing.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	log        *slog.Logger

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(listingURL, token string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:   listingURL,
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:   log,
		sleep: sleepCtx,
	}
}

// Fetch returns a descriptor for every Markdown file in the listing.
// Transient failures are retried; the final failure wraps ErrRequest.
func (c *Client) Fetch(ctx context.Context) ([]page.Descriptor, error) {
	var entries []Entry
	var lastErr error
	for attempt := range MaxRetries {
		entries, lastErr = c.fetchOnce(ctx)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		if attempt == MaxRetries-1 {
			break
		}
		c.log.Warn("retryable listing error", "attempt", attempt, "error", lastErr)
		if err := c.sleep(ctx, Backoff(attempt)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRequest, err)
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return Descriptors(entries), nil
}

// Descriptors keeps the Markdown files of a listing and parses their names.
func Descriptors(entries []Entry) []page.Descriptor {
	pages := make([]page.Descriptor, 0, len(entries))
	for _, e := range entries {
		if e.Type != "file" || !strings.HasSuffix(e.Name, ".md") {
			continue
		}
		d := page.ParseName(e.Name)
		d.Sha = e.Sha
		d.Source = e.DownloadURL
		pages = append(pages, d)
	}
	return pages
}

func (c *Client) fetchOnce(ctx context.Context) ([]Entry, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrRequest, err)
		}
		return nil, &RetryableError{Err: fmt.Errorf("%w: %v", ErrRequest, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("%w: status %d: %s", ErrRequest, resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &RetryableError{Err: err}
		}
		return nil, err
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: decode listing: %v", ErrRequest, err)
	}
	return entries, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
