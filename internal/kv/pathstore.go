package kv

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
)

// Pathstore keeps the cache in a remote pathstore instance. Each request is
// applied atomically by the server, which stands in for a local transaction.
type Pathstore struct {
	baseURL    string
	apiKey     string
	prefix     string
	httpClient *http.Client
}

func NewPathstore(baseURL, apiKey, prefix string) *Pathstore {
	return &Pathstore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		prefix:  strings.Trim(prefix, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// nodeRequest is the body for PUT /kv/{key}.
type nodeRequest struct {
	Value  string `json:"value"`
	Source string `json:"source,omitempty"`
}

// nodeResponse is the response from GET /kv/{key}.
type nodeResponse struct {
	Key   string `json:"key_path"`
	Value any    `json:"value"`
}

func (p *Pathstore) path(key string) string {
	k := url.PathEscape(key)
	if p.prefix != "" {
		k = p.prefix + "/" + k
	}
	return p.baseURL + "/kv/" + k
}

func (p *Pathstore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.path(key), nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, false, fmt.Errorf("%w: get node %s: %v", ErrStore, key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, false, fmt.Errorf("%w: get node %s: status %d: %s", ErrStore, key, resp.StatusCode, string(respBody))
	}

	var node nodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return nil, false, fmt.Errorf("%w: decode node %s: %v", ErrStore, key, err)
	}
	s, ok := node.Value.(string)
	if !ok {
		return nil, false, fmt.Errorf("%w: node %s holds %T, not a string", ErrStore, key, node.Value)
	}
	return []byte(s), true, nil
}

func (p *Pathstore) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return p.Delete(ctx, key)
	}
	body, err := json.Marshal(nodeRequest{
		Value:  string(value),
		Source: "pagecache",
	})
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, p.path(key), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: put node %s: %v", ErrStore, key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: put node %s: status %d: %s", ErrStore, key, resp.StatusCode, string(respBody))
	}
	return nil
}

func (p *Pathstore) Delete(ctx context.Context, key string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.path(key), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: delete node %s: %v", ErrStore, key, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%w: delete node %s: status %d: %s", ErrStore, key, resp.StatusCode, string(respBody))
}

// Close releases idle connections.
func (p *Pathstore) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
