package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sseServer(t *testing.T, handler func(w http.ResponseWriter, req ChatRequest)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/stream" {
			http.NotFound(w, r)
			return
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		handler(w, req)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func writeEvent(w http.ResponseWriter, fragment Fragment) {
	data, _ := json.Marshal(fragment)
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func drainStream(t *testing.T, fragments <-chan Fragment, errs <-chan error) ([]Fragment, error) {
	t.Helper()
	var out []Fragment
	timeout := time.After(5 * time.Second)
	for {
		select {
		case fragment, ok := <-fragments:
			if !ok {
				select {
				case err := <-errs:
					return out, err
				default:
					return out, nil
				}
			}
			out = append(out, fragment)
		case <-timeout:
			t.Fatal("timed out draining stream")
		}
	}
}

func TestHTTPClientStream(t *testing.T) {
	ts := sseServer(t, func(w http.ResponseWriter, req ChatRequest) {
		if req.Content != "hola" {
			t.Errorf("Unexpected request content %q", req.Content)
		}
		writeEvent(w, Fragment{Delta: "buenos "})
		writeEvent(w, Fragment{Delta: "dias"})
		writeEvent(w, Fragment{Finish: true})
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	client := NewHTTPClient(2 * time.Second)
	defer client.Close()

	fragments, errs, err := client.Stream(context.Background(), ts.URL, ChatRequest{Content: "hola"})
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}

	out, streamErr := drainStream(t, fragments, errs)
	if streamErr != nil {
		t.Fatalf("Unexpected stream error: %v", streamErr)
	}
	if len(out) != 3 || !out[2].Finish {
		t.Fatalf("Expected 3 fragments ending in finish, got %+v", out)
	}
	if out[0].Delta+out[1].Delta != "buenos dias" {
		t.Fatalf("Unexpected deltas %+v", out)
	}
}

func TestHTTPClientSkipsNonDataLines(t *testing.T) {
	ts := sseServer(t, func(w http.ResponseWriter, _ ChatRequest) {
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, "event: delta\n")
		writeEvent(w, Fragment{Delta: "ok", Finish: true})
	})

	client := NewHTTPClient(2 * time.Second)
	defer client.Close()

	fragments, errs, err := client.Stream(context.Background(), ts.URL, ChatRequest{Content: "x"})
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}
	out, streamErr := drainStream(t, fragments, errs)
	if streamErr != nil {
		t.Fatalf("Unexpected stream error: %v", streamErr)
	}
	if len(out) != 1 || out[0].Delta != "ok" {
		t.Fatalf("Expected single fragment, got %+v", out)
	}
}

func TestHTTPClientEarlyClose(t *testing.T) {
	ts := sseServer(t, func(w http.ResponseWriter, _ ChatRequest) {
		writeEvent(w, Fragment{Delta: "parcial"})
		// Connection drops without a finish fragment.
	})

	client := NewHTTPClient(2 * time.Second)
	defer client.Close()

	fragments, errs, err := client.Stream(context.Background(), ts.URL, ChatRequest{Content: "x"})
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}
	out, streamErr := drainStream(t, fragments, errs)
	if streamErr == nil {
		t.Fatal("Expected an error for a stream without finish")
	}
	if len(out) != 1 {
		t.Fatalf("Expected the partial fragment, got %+v", out)
	}
}

func TestHTTPClientNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := NewHTTPClient(2 * time.Second)
	defer client.Close()

	_, _, err := client.Stream(context.Background(), ts.URL, ChatRequest{Content: "x"})
	if !errors.Is(err, ErrUpstreamRejected) {
		t.Fatalf("Expected ErrUpstreamRejected for non-200 response, got %v", err)
	}
}

func TestHTTPClientConnectionRefused(t *testing.T) {
	client := NewHTTPClient(500 * time.Millisecond)
	defer client.Close()

	_, _, err := client.Stream(context.Background(), "http://127.0.0.1:1", ChatRequest{Content: "x"})
	if err == nil {
		t.Fatal("Expected connection error")
	}
	if errors.Is(err, ErrUpstreamRejected) {
		t.Fatalf("A transport failure must not classify as a rejection: %v", err)
	}
}
