// Package content retrieves rendered page fragments from the content server.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrRequest marks a failed or non-successful content request.
var ErrRequest = errors.New("content request failed")

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// Client fetches page fragments.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Fetch returns the display fragment of the named page. An empty name is
// logged and yields "" without a request.
func (c *Client) Fetch(ctx context.Context, name string) (string, error) {
	if name == "" {
		c.log.Error("requested an empty page")
		return "", nil
	}
	body, err := c.get(ctx, c.baseURL+"/pages/"+url.PathEscape(name))
	if err != nil {
		return "", fmt.Errorf("fetch page %s: %w", name, err)
	}
	defer body.Close()

	frag, err := ExtractFragment(io.LimitReader(body, maxBody))
	if err != nil {
		return "", fmt.Errorf("page %s: %w", name, err)
	}
	return frag, nil
}

// FetchMarkdown downloads raw Markdown and renders it into a display fragment.
func (c *Client) FetchMarkdown(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", nil
	}
	body, err := c.get(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch markdown: %w", err)
	}
	defer body.Close()

	src, err := io.ReadAll(io.LimitReader(body, maxBody))
	if err != nil {
		return "", fmt.Errorf("%w: read markdown: %v", ErrRequest, err)
	}
	return RenderMarkdown(src)
}

func (c *Client) get(ctx context.Context, u string) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequest, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return resp.Body, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
