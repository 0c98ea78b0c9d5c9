package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/collazomanuel/cetec-asistente-backend/relay"
)

// MockClient is a test double for relay.Client. Responses are scripted per
// endpoint; unscripted endpoints refuse the stream.
type MockClient struct {
	// StreamFunc is called by Stream if set, overriding the scripts.
	StreamFunc func(ctx context.Context, endpoint string, req relay.ChatRequest) (<-chan relay.Fragment, <-chan error, error)

	mu      sync.Mutex
	scripts map[string]script
	calls   []string
}

type script struct {
	fragments []relay.Fragment
	midErr    error
}

// NewMockClient creates a mock client with no scripted endpoints.
func NewMockClient() *MockClient {
	return &MockClient{scripts: make(map[string]script)}
}

// Script makes the endpoint answer with the given fragments.
func (m *MockClient) Script(endpoint string, fragments ...relay.Fragment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[endpoint] = script{fragments: fragments}
}

// ScriptBroken makes the endpoint stream the given fragments and then break
// with err instead of finishing.
func (m *MockClient) ScriptBroken(endpoint string, err error, fragments ...relay.Fragment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[endpoint] = script{fragments: fragments, midErr: err}
}

// Stream replays the endpoint's script.
func (m *MockClient) Stream(ctx context.Context, endpoint string, req relay.ChatRequest) (<-chan relay.Fragment, <-chan error, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, endpoint, req)
	}

	m.mu.Lock()
	m.calls = append(m.calls, endpoint)
	sc, ok := m.scripts[endpoint]
	m.mu.Unlock()

	if !ok {
		return nil, nil, errors.New("connection refused")
	}

	fragments := make(chan relay.Fragment, len(sc.fragments)+1)
	errs := make(chan error, 1)

	go func() {
		defer close(fragments)
		for _, fragment := range sc.fragments {
			select {
			case fragments <- fragment:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if sc.midErr != nil {
			errs <- sc.midErr
			return
		}
		fragments <- relay.Fragment{Finish: true}
	}()

	return fragments, errs, nil
}

// Close is a no-op.
func (m *MockClient) Close() error {
	return nil
}

// Calls returns the endpoints dialed, in order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
