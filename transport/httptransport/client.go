// Package httptransport implements the offsync Transport over plain
// HTTP/JSON. Each mutation is POSTed to {baseURL}/{entity}; the server
// answers 2xx when the mutation applied and 409 with its own copy of
// the record when the write conflicts.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/offlinekit/offsync"
	syncErrors "github.com/offlinekit/offsync/errors"
)

const defaultMaxResponseSize = 1 << 20 // 1 MiB

// dispatchRequest is the wire form of one mutation.
type dispatchRequest struct {
	Operation string          `json:"operation"`
	Payload   offsync.Payload `json:"payload,omitempty"`
}

// Transport sends queued mutations to a remote HTTP endpoint.
type Transport struct {
	client          *http.Client
	baseURL         string
	maxResponseSize int64
}

var _ offsync.Transport = (*Transport)(nil)

// Option configures the Transport.
type Option func(*Transport)

// WithHTTPClient replaces the default http.Client, e.g. to set timeouts
// or inject a test client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithMaxResponseSize caps how many response bytes are read when
// decoding a conflict payload or an error body.
func WithMaxResponseSize(n int64) Option {
	return func(t *Transport) {
		if n > 0 {
			t.maxResponseSize = n
		}
	}
}

// NewTransport creates a Transport posting to baseURL.
func NewTransport(baseURL string, opts ...Option) (*Transport, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	t := &Transport{
		client:          http.DefaultClient,
		baseURL:         strings.TrimRight(baseURL, "/"),
		maxResponseSize: defaultMaxResponseSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Dispatch submits one mutation. Connection failures, 5xx responses and
// 429 are reported as retryable; other non-2xx responses are terminal.
func (t *Transport) Dispatch(ctx context.Context, entity string, op offsync.Operation, payload offsync.Payload) (offsync.DispatchResult, error) {
	body, err := json.Marshal(dispatchRequest{Operation: string(op), Payload: payload})
	if err != nil {
		return offsync.DispatchResult{}, syncErrors.NewWithComponent(syncErrors.OpDispatch, "transport",
			fmt.Errorf("failed to marshal payload: %w", err))
	}

	url := t.baseURL + "/" + entity
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return offsync.DispatchResult{}, syncErrors.NewWithComponent(syncErrors.OpDispatch, "transport",
			fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return offsync.DispatchResult{}, syncErrors.NewNetworkError(syncErrors.OpDispatch,
			fmt.Errorf("network error: %w", err))
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, t.maxResponseSize)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return offsync.DispatchResult{Status: offsync.DispatchApplied}, nil

	case resp.StatusCode == http.StatusConflict:
		var server offsync.Payload
		if err := json.NewDecoder(limited).Decode(&server); err != nil && err != io.EOF {
			return offsync.DispatchResult{}, syncErrors.NewWithComponent(syncErrors.OpDispatch, "transport",
				fmt.Errorf("failed to decode conflict payload: %w", err))
		}
		return offsync.DispatchResult{Status: offsync.DispatchConflict, ServerPayload: server}, nil

	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		msg, _ := io.ReadAll(limited)
		return offsync.DispatchResult{}, syncErrors.NewNetworkError(syncErrors.OpDispatch,
			fmt.Errorf("server error (status %d): %s", resp.StatusCode, string(msg)))

	default:
		msg, _ := io.ReadAll(limited)
		return offsync.DispatchResult{}, syncErrors.NewWithComponent(syncErrors.OpDispatch, "transport",
			fmt.Errorf("request rejected (status %d): %s", resp.StatusCode, string(msg)))
	}
}

// Close does nothing for this transport, as the underlying http.Client
// is managed externally.
func (t *Transport) Close() error {
	return nil
}
