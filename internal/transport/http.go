package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPSource polls an alert endpoint with cursor-based pagination.
// The endpoint answers {"alerts": [...], "cursor": "..."}.
type HTTPSource struct {
	url    string
	client *http.Client
	state  int32 // atomic ConnectionState

	mu     sync.Mutex
	cursor string

	pollCount        int64
	messagesReceived int64
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		url:    baseURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPSource) Fetch(ctx context.Context) ([]RawAlert, error) {
	atomic.AddInt64(&c.pollCount, 1)
	atomic.StoreInt32(&c.state, int32(StateConnecting))

	pollURL := c.url
	if cur := c.Cursor(); cur != "" {
		u, err := url.Parse(pollURL)
		if err != nil {
			return nil, fmt.Errorf("parse url: %w", err)
		}
		q := u.Query()
		q.Set("cursor", cur)
		u.RawQuery = q.Encode()
		pollURL = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		atomic.StoreInt32(&c.state, int32(StateDisconnected))
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		atomic.StoreInt32(&c.state, int32(StateDisconnected))
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var response struct {
		Alerts []RawAlert `json:"alerts"`
		Cursor string     `json:"cursor"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	atomic.StoreInt32(&c.state, int32(StateConnected))
	atomic.AddInt64(&c.messagesReceived, int64(len(response.Alerts)))
	if response.Cursor != "" {
		c.mu.Lock()
		c.cursor = response.Cursor
		c.mu.Unlock()
	}
	return response.Alerts, nil
}

// Cursor is the resume position sent with the next poll.
func (c *HTTPSource) Cursor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

func (c *HTTPSource) ConnectionState() ConnectionState {
	return ConnectionState(atomic.LoadInt32(&c.state))
}

// Stats returns poll and message counters.
func (c *HTTPSource) Stats() (polls, messages int64) {
	return atomic.LoadInt64(&c.pollCount), atomic.LoadInt64(&c.messagesReceived)
}
