package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultStreamBuffer = 64

// ErrUpstreamRejected marks a stream refused by the backend itself with an
// HTTP status. The request reached the server, so dialing another one will
// not change the answer.
var ErrUpstreamRejected = errors.New("upstream rejected stream")

// Client opens chat streams against an A2A backend endpoint.
// Implementations must be thread-safe for concurrent use.
type Client interface {
	// Stream posts the request and returns a channel of response fragments.
	// The error channel delivers at most one error when the stream breaks
	// mid-flight; the fragment channel is closed when the stream ends
	// either way. A non-nil error return means the stream never opened.
	Stream(ctx context.Context, endpoint string, req ChatRequest) (<-chan Fragment, <-chan error, error)

	// Close releases resources held by the client.
	Close() error
}

// HTTPClient implements Client over HTTP server-sent events.
type HTTPClient struct {
	httpClient *http.Client
	bufferSize int
	logger     *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a streaming client. The timeout bounds connection
// establishment; an open stream is only bounded by its context.
func NewHTTPClient(connectTimeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: connectTimeout,
			},
		},
		bufferSize: defaultStreamBuffer,
		logger:     slog.Default().With("component", "relay-client"),
	}
}

// Stream posts the request to the endpoint's chat stream route and parses
// the SSE response.
func (c *HTTPClient) Stream(ctx context.Context, endpoint string, chatReq ChatRequest) (<-chan Fragment, <-chan error, error) {
	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, nil, err
	}

	target := strings.TrimSuffix(endpoint, "/") + "/chat/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("%w: status %d", ErrUpstreamRejected, resp.StatusCode)
	}

	fragments := make(chan Fragment, c.bufferSize)
	errs := make(chan error, 1)

	go func() {
		defer close(fragments)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var fragment Fragment
			if err := json.Unmarshal([]byte(data), &fragment); err != nil {
				c.logger.Warn("skipping malformed fragment", "err", err)
				continue
			}

			select {
			case fragments <- fragment:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
			if fragment.Finish {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- err
			return
		}
		// Stream ended without a finish fragment.
		errs <- fmt.Errorf("upstream closed stream early")
	}()

	return fragments, errs, nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
