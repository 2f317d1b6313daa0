package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 4096

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Status, e.Body)
}

// Client is the outbound transport of one chain: attachment downloads and
// answer submissions.
type Client struct {
	client  *http.Client
	retries int
	backoff time.Duration
}

func New(timeout time.Duration, retries int, backoff time.Duration) *Client {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if backoff == 0 {
		backoff = 300 * time.Millisecond
	}
	return &Client{client: &http.Client{Timeout: timeout}, retries: retries, backoff: backoff}
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// Get downloads url and returns the body. Non-2xx responses are errors; 5xx
// and transport errors are retried.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.do(ctx, c.retries+1, http.MethodGet, url, nil, nil, func(resp *http.Response) error {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		body = b
		return nil
	})
	return body, err
}

// PostJSON sends body as JSON and decodes the JSON response into out. It is
// attempted once. A positive timeout bounds this request regardless of the
// client default.
func (c *Client) PostJSON(ctx context.Context, url string, body any, out any, timeout time.Duration) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	headers := map[string]string{"Content-Type": "application/json", "Accept": "application/json"}
	return c.do(ctx, 1, http.MethodPost, url, headers, b, func(resp *http.Response) error {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func (c *Client) do(ctx context.Context, tries int, method, url string, headers map[string]string, payload []byte, onOK func(*http.Response) error) error {
	var lastErr error
	for attempt := 0; attempt < tries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			done, err := handle(resp, method, url, onOK)
			if done {
				return err
			}
			lastErr = err
		}

		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// handle reports done=true when the response is final (success or a decode
// failure); retryable status errors return done=false.
func handle(resp *http.Response, method, url string, onOK func(*http.Response) error) (bool, error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, onOK(resp)
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err := &StatusError{Method: method, URL: url, Code: resp.StatusCode, Status: resp.Status, Body: string(b)}
	return resp.StatusCode < 500, err
}
