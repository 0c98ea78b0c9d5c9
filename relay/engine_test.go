package relay_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/relay"
	"github.com/collazomanuel/cetec-asistente-backend/relay/mock"
	"github.com/collazomanuel/cetec-asistente-backend/storage/badger"
)

// fakeRouter resolves every subject to primary, with def as the policy
// default.
type fakeRouter struct {
	primary string
	def     string
}

func (r *fakeRouter) Resolve(subjectID string) (string, error) {
	if r.primary == "" {
		return "", core.ErrNoRouteAvailable
	}
	return r.primary, nil
}

func (r *fakeRouter) Default() string {
	return r.def
}

// fakeDirectory maps server IDs to endpoints and records reported outcomes.
type fakeDirectory struct {
	mu        sync.Mutex
	endpoints map[string]string
	outcomes  map[string][]bool
}

func newFakeDirectory(endpoints map[string]string) *fakeDirectory {
	return &fakeDirectory{endpoints: endpoints, outcomes: make(map[string][]bool)}
}

func (d *fakeDirectory) Get(ctx context.Context, id string) (*core.A2AServer, error) {
	endpoint, ok := d.endpoints[id]
	if !ok {
		return nil, fmt.Errorf("%w: server %s", core.ErrNotFound, id)
	}
	return &core.A2AServer{ID: id, Endpoint: endpoint, Health: core.HealthHealthy}, nil
}

func (d *fakeDirectory) ReportOutcome(id string, ok bool) core.HealthStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcomes[id] = append(d.outcomes[id], ok)
	if ok {
		return core.HealthHealthy
	}
	return core.HealthDegraded
}

func (d *fakeDirectory) outcomesFor(id string) []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.outcomes[id]...)
}

type engineEnv struct {
	engine    *relay.Engine
	repos     *badger.Repositories
	client    *mock.MockClient
	directory *fakeDirectory
}

func newEngineEnv(t *testing.T, router relay.Router, endpoints map[string]string) *engineEnv {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	t.Cleanup(func() { repos.Close() })

	client := mock.NewMockClient()
	directory := newFakeDirectory(endpoints)

	engine, err := relay.NewEngine(repos.Chat, router, directory, client)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return &engineEnv{engine: engine, repos: repos, client: client, directory: directory}
}

func collect(t *testing.T, fragments <-chan relay.Fragment) []relay.Fragment {
	t.Helper()
	var out []relay.Fragment
	timeout := time.After(5 * time.Second)
	for {
		select {
		case fragment, ok := <-fragments:
			if !ok {
				return out
			}
			out = append(out, fragment)
		case <-timeout:
			t.Fatal("timed out collecting fragments")
		}
	}
}

func TestStreamHappyPath(t *testing.T) {
	router := &fakeRouter{primary: "srv-a", def: "srv-a"}
	env := newEngineEnv(t, router, map[string]string{"srv-a": "http://mesh-a:9000"})
	ctx := context.Background()

	conv, err := env.engine.StartConversation(ctx, "math-2", "Derivadas")
	if err != nil {
		t.Fatalf("Failed to start conversation: %v", err)
	}

	env.client.Script("http://mesh-a:9000",
		relay.Fragment{Delta: "La derivada "},
		relay.Fragment{Delta: "mide el cambio.", Citations: []core.Citation{{Title: "Apunte", DocumentID: "d1", Score: 0.9}}},
	)

	fragments, err := env.engine.Stream(ctx, conv.ID, "que es una derivada?", "")
	if err != nil {
		t.Fatalf("Failed to stream: %v", err)
	}
	out := collect(t, fragments)

	final := out[len(out)-1]
	if !final.Finish || final.MessageID == "" {
		t.Fatalf("Expected final fragment with message ID, got %+v", final)
	}
	if final.RoutedTo != "srv-a" || final.Subject != "math-2" {
		t.Fatalf("Final fragment missing routing info: %+v", final)
	}
	if out[0].RunID == "" || final.RunID != out[0].RunID {
		t.Fatalf("Expected a stable run ID on every fragment, got %+v", out)
	}

	history, err := env.repos.Chat.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("Failed to list messages: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected user and assistant messages, got %d", len(history))
	}
	assistant := history[1]
	if assistant.Content != "La derivada mide el cambio." {
		t.Fatalf("Unexpected assistant content %q", assistant.Content)
	}
	if assistant.RoutedTo != "srv-a" || len(assistant.Citations) != 1 {
		t.Fatalf("Assistant message missing attribution: %+v", assistant)
	}

	outcomes := env.directory.outcomesFor("srv-a")
	if len(outcomes) != 1 || !outcomes[0] {
		t.Fatalf("Expected one successful outcome, got %v", outcomes)
	}
}

func TestStreamReroutesToDefault(t *testing.T) {
	router := &fakeRouter{primary: "srv-a", def: "srv-b"}
	env := newEngineEnv(t, router, map[string]string{
		"srv-a": "http://mesh-a:9000",
		"srv-b": "http://mesh-b:9000",
	})
	ctx := context.Background()

	conv, _ := env.engine.StartConversation(ctx, "math-2", "")

	// Only the default is reachable.
	env.client.Script("http://mesh-b:9000", relay.Fragment{Delta: "respuesta"})

	fragments, err := env.engine.Stream(ctx, conv.ID, "hola", "")
	if err != nil {
		t.Fatalf("Expected re-route to succeed, got %v", err)
	}
	out := collect(t, fragments)

	final := out[len(out)-1]
	if final.RoutedTo != "srv-b" {
		t.Fatalf("Expected response from srv-b, got %s", final.RoutedTo)
	}

	calls := env.client.Calls()
	if len(calls) != 2 || calls[0] != "http://mesh-a:9000" || calls[1] != "http://mesh-b:9000" {
		t.Fatalf("Expected primary then default, got %v", calls)
	}
	if outcomes := env.directory.outcomesFor("srv-a"); len(outcomes) != 1 || outcomes[0] {
		t.Fatalf("Expected failure recorded for srv-a, got %v", outcomes)
	}
}

func TestStreamRejectionSkipsReroute(t *testing.T) {
	router := &fakeRouter{primary: "srv-a", def: "srv-b"}
	env := newEngineEnv(t, router, map[string]string{
		"srv-a": "http://mesh-a:9000",
		"srv-b": "http://mesh-b:9000",
	})
	ctx := context.Background()

	conv, _ := env.engine.StartConversation(ctx, "math-2", "")

	var mu sync.Mutex
	var dialed []string
	env.client.StreamFunc = func(ctx context.Context, endpoint string, req relay.ChatRequest) (<-chan relay.Fragment, <-chan error, error) {
		mu.Lock()
		dialed = append(dialed, endpoint)
		mu.Unlock()
		return nil, nil, fmt.Errorf("%w: status 422", relay.ErrUpstreamRejected)
	}

	_, err := env.engine.Stream(ctx, conv.ID, "hola", "")
	if !errors.Is(err, core.ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
	}
	if len(dialed) != 1 || dialed[0] != "http://mesh-a:9000" {
		t.Fatalf("A rejected dial must not hit the default server, dialed %v", dialed)
	}

	outcomes := env.directory.outcomesFor("srv-a")
	if len(outcomes) != 1 || outcomes[0] {
		t.Fatalf("Expected one failed outcome for the primary, got %v", outcomes)
	}
}

func TestStreamUpstreamUnavailable(t *testing.T) {
	router := &fakeRouter{primary: "srv-a", def: "srv-a"}
	env := newEngineEnv(t, router, map[string]string{"srv-a": "http://mesh-a:9000"})
	ctx := context.Background()

	conv, _ := env.engine.StartConversation(ctx, "math-2", "")

	// Nothing scripted: the only server refuses, and the default is the
	// same server.
	_, err := env.engine.Stream(ctx, conv.ID, "hola", "")
	if err == nil {
		t.Fatal("Expected upstream error")
	}

	// The failed attempt persisted nothing.
	history, _ := env.repos.Chat.ListMessages(ctx, conv.ID, 0)
	if len(history) != 0 {
		t.Fatalf("Expected empty history, got %d messages", len(history))
	}
}

func TestStreamMidErrorPersistsNoAssistant(t *testing.T) {
	router := &fakeRouter{primary: "srv-a", def: "srv-a"}
	env := newEngineEnv(t, router, map[string]string{"srv-a": "http://mesh-a:9000"})
	ctx := context.Background()

	conv, _ := env.engine.StartConversation(ctx, "fisica-2", "")

	env.client.ScriptBroken("http://mesh-a:9000",
		fmt.Errorf("connection reset"),
		relay.Fragment{Delta: "respuesta par"},
	)

	fragments, err := env.engine.Stream(ctx, conv.ID, "hola", "")
	if err != nil {
		t.Fatalf("Failed to stream: %v", err)
	}
	out := collect(t, fragments)

	final := out[len(out)-1]
	if final.Error == "" || !final.Finish {
		t.Fatalf("Expected terminal error fragment, got %+v", final)
	}

	history, _ := env.repos.Chat.ListMessages(ctx, conv.ID, 0)
	if len(history) != 1 || history[0].Role != core.RoleUser {
		t.Fatalf("Expected only the user message, got %d messages", len(history))
	}
	if outcomes := env.directory.outcomesFor("srv-a"); len(outcomes) != 1 || outcomes[0] {
		t.Fatalf("Expected failure recorded, got %v", outcomes)
	}
}

func TestStreamCancelDropsPartialResponse(t *testing.T) {
	router := &fakeRouter{primary: "srv-a", def: "srv-a"}
	env := newEngineEnv(t, router, map[string]string{"srv-a": "http://mesh-a:9000"})

	streamCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conv, _ := env.engine.StartConversation(context.Background(), "math-2", "")

	started := make(chan struct{})
	env.client.StreamFunc = func(ctx context.Context, endpoint string, req relay.ChatRequest) (<-chan relay.Fragment, <-chan error, error) {
		fragments := make(chan relay.Fragment, 1)
		errs := make(chan error, 1)
		go func() {
			defer close(fragments)
			fragments <- relay.Fragment{Delta: "parcial"}
			close(started)
			<-ctx.Done()
			errs <- ctx.Err()
		}()
		return fragments, errs, nil
	}

	fragments, err := env.engine.Stream(streamCtx, conv.ID, "hola", "")
	if err != nil {
		t.Fatalf("Failed to stream: %v", err)
	}

	<-started
	cancel()
	collect(t, fragments)

	history, _ := env.repos.Chat.ListMessages(context.Background(), conv.ID, 0)
	if len(history) != 1 || history[0].Role != core.RoleUser {
		t.Fatalf("Cancelled stream must not persist an assistant message, got %d messages", len(history))
	}
}

func TestAbortCancelsUpstreamCall(t *testing.T) {
	router := &fakeRouter{primary: "srv-a", def: "srv-a"}
	env := newEngineEnv(t, router, map[string]string{"srv-a": "http://mesh-a:9000"})
	ctx := context.Background()

	conv, _ := env.engine.StartConversation(ctx, "math-2", "")

	upstreamDone := make(chan struct{})
	env.client.StreamFunc = func(ctx context.Context, endpoint string, req relay.ChatRequest) (<-chan relay.Fragment, <-chan error, error) {
		fragments := make(chan relay.Fragment, 1)
		errs := make(chan error, 1)
		go func() {
			defer close(fragments)
			fragments <- relay.Fragment{Delta: "parcial"}
			<-ctx.Done()
			errs <- ctx.Err()
			close(upstreamDone)
		}()
		return fragments, errs, nil
	}

	fragments, err := env.engine.Stream(ctx, conv.ID, "hola", "")
	if err != nil {
		t.Fatalf("Failed to stream: %v", err)
	}

	first := <-fragments
	if first.RunID == "" {
		t.Fatalf("Expected a run ID on the first fragment, got %+v", first)
	}
	if !env.engine.Abort(first.RunID) {
		t.Fatal("Abort must report the run as active")
	}

	select {
	case <-upstreamDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Abort did not cancel the upstream call")
	}
	collect(t, fragments)

	if env.engine.Abort(first.RunID) {
		t.Fatal("Abort must report a finished run as unknown")
	}

	history, _ := env.repos.Chat.ListMessages(ctx, conv.ID, 0)
	if len(history) != 1 || history[0].Role != core.RoleUser {
		t.Fatalf("Aborted stream must not persist an assistant message, got %d messages", len(history))
	}
}

func TestSubjectHintOverridesRouting(t *testing.T) {
	router := &fakeRouter{primary: "srv-a", def: "srv-a"}
	env := newEngineEnv(t, router, map[string]string{"srv-a": "http://mesh-a:9000"})
	ctx := context.Background()

	conv, _ := env.engine.StartConversation(ctx, "math-2", "")
	env.client.Script("http://mesh-a:9000", relay.Fragment{Delta: "ok"})

	fragments, err := env.engine.Stream(ctx, conv.ID, "hola", "fisica-2")
	if err != nil {
		t.Fatalf("Failed to stream: %v", err)
	}
	out := collect(t, fragments)

	final := out[len(out)-1]
	if final.Subject != "fisica-2" {
		t.Fatalf("Expected overridden subject, got %s", final.Subject)
	}
}

func TestHandleCallbackIdempotent(t *testing.T) {
	router := &fakeRouter{primary: "srv-a", def: "srv-a"}
	env := newEngineEnv(t, router, map[string]string{"srv-a": "http://mesh-a:9000"})
	ctx := context.Background()

	conv, _ := env.engine.StartConversation(ctx, "math-2", "")

	cb := relay.Callback{
		ConversationID: conv.ID,
		MessageID:      core.NewID(),
		Content:        "respuesta tardia",
		Subject:        "math-2",
		Success:        true,
	}

	appended, err := env.engine.HandleCallback(ctx, "srv-a", cb)
	if err != nil || !appended {
		t.Fatalf("Expected first callback to append, appended=%v err=%v", appended, err)
	}

	appended, err = env.engine.HandleCallback(ctx, "srv-a", cb)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if appended {
		t.Fatal("Expected replay to be ignored")
	}

	history, _ := env.repos.Chat.ListMessages(ctx, conv.ID, 0)
	if len(history) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(history))
	}

	if outcomes := env.directory.outcomesFor("srv-a"); len(outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes recorded, got %v", outcomes)
	}
}

func TestSendReturnsAssistantMessage(t *testing.T) {
	router := &fakeRouter{primary: "srv-a", def: "srv-a"}
	env := newEngineEnv(t, router, map[string]string{"srv-a": "http://mesh-a:9000"})
	ctx := context.Background()

	conv, _ := env.engine.StartConversation(ctx, "math-2", "")
	env.client.Script("http://mesh-a:9000",
		relay.Fragment{Delta: "respuesta "},
		relay.Fragment{Delta: "completa"},
	)

	msg, err := env.engine.Send(ctx, conv.ID, "hola", "")
	if err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	if msg.Content != "respuesta completa" {
		t.Fatalf("Unexpected content %q", msg.Content)
	}
	if msg.Role != core.RoleAssistant {
		t.Fatalf("Expected assistant role, got %s", msg.Role)
	}
}
