package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
)

const historyLimit = 20

var (
	// ErrChatRepositoryRequired is returned when a chat repository is not provided.
	ErrChatRepositoryRequired = errors.New("chat repository required")

	// ErrRouterRequired is returned when a router is not provided.
	ErrRouterRequired = errors.New("router required")

	// ErrDirectoryRequired is returned when a server directory is not provided.
	ErrDirectoryRequired = errors.New("server directory required")

	// ErrClientRequired is returned when an upstream client is not provided.
	ErrClientRequired = errors.New("upstream client required")
)

// Router resolves subjects to server IDs. The routing resolver implements
// it.
type Router interface {
	Resolve(subjectID string) (string, error)
	Default() string
}

// Directory looks up servers and records call outcomes. The registry
// implements it.
type Directory interface {
	Get(ctx context.Context, id string) (*core.A2AServer, error)
	ReportOutcome(id string, ok bool) core.HealthStatus
}

// Engine relays chat messages to A2A backends and persists the exchange.
type Engine struct {
	chat      storage.ChatRepository
	router    Router
	directory Directory
	client    Client
	logger    *slog.Logger

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
}

// NewEngine creates a relay engine.
func NewEngine(chat storage.ChatRepository, router Router, directory Directory, client Client) (*Engine, error) {
	if chat == nil {
		return nil, ErrChatRepositoryRequired
	}
	if router == nil {
		return nil, ErrRouterRequired
	}
	if directory == nil {
		return nil, ErrDirectoryRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}

	return &Engine{
		chat:       chat,
		router:     router,
		directory:  directory,
		client:     client,
		logger:     slog.Default().With("component", "relay"),
		activeRuns: make(map[string]context.CancelFunc),
	}, nil
}

// StartConversation creates a new conversation for a subject.
func (e *Engine) StartConversation(ctx context.Context, subjectID, title string) (*core.Conversation, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, fmt.Errorf("%w: subject is required", core.ErrValidation)
	}

	conv := &core.Conversation{
		ID:        core.NewID(),
		SubjectID: subjectID,
		Title:     title,
	}
	if err := e.chat.AddConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// History returns a conversation's messages in chronological order. A
// positive limit keeps the newest limit messages.
func (e *Engine) History(ctx context.Context, conversationID string, limit int) ([]*core.Message, error) {
	if _, err := e.chat.GetConversation(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
	}
	return e.chat.ListMessages(ctx, conversationID, limit)
}

// Stream relays a user message and returns a channel of response fragments.
// subjectHint, when non-empty, overrides the conversation's subject for
// routing only. The final fragment carries the persisted assistant message
// ID; a broken stream ends with an error fragment and persists no assistant
// message.
func (e *Engine) Stream(ctx context.Context, conversationID, content, subjectHint string) (<-chan Fragment, error) {
	if err := core.ValidateMessageContent(content); err != nil {
		return nil, err
	}

	conv, err := e.chat.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
	}

	subject := conv.SubjectID
	if subjectHint != "" {
		subject = subjectHint
	}

	history, err := e.chat.ListMessages(ctx, conversationID, historyLimit)
	if err != nil {
		return nil, err
	}

	chatReq := ChatRequest{
		ConversationID: conversationID,
		Subject:        subject,
		Content:        content,
	}
	for _, msg := range history {
		chatReq.History = append(chatReq.History, *msg)
	}

	// The run is registered before dialing so Abort can cancel the
	// upstream call itself, not just the forwarding loop.
	runID := core.NewID()
	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.activeRuns[runID] = cancel
	e.mu.Unlock()

	serverID, fragments, errs, err := e.open(runCtx, subject, chatReq)
	if err != nil {
		e.releaseRun(runID)
		return nil, err
	}

	// The upstream accepted the call; the user message is now part of
	// history even if the stream breaks later.
	userMsg := &core.Message{
		ID:             core.NewID(),
		ConversationID: conversationID,
		Role:           core.RoleUser,
		Content:        content,
		Subject:        subject,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := e.chat.AppendMessage(ctx, userMsg); err != nil {
		e.releaseRun(runID)
		return nil, err
	}

	out := make(chan Fragment, defaultStreamBuffer)
	go e.pump(runCtx, runID, conversationID, subject, serverID, fragments, errs, out)

	return out, nil
}

// Send relays a user message and blocks until the full assistant response
// is available.
func (e *Engine) Send(ctx context.Context, conversationID, content, subjectHint string) (*core.Message, error) {
	fragments, err := e.Stream(ctx, conversationID, content, subjectHint)
	if err != nil {
		return nil, err
	}

	var final Fragment
	for fragment := range fragments {
		if fragment.Error != "" {
			return nil, fmt.Errorf("%w: %s", core.ErrUpstreamUnavailable, fragment.Error)
		}
		if fragment.Finish {
			final = fragment
		}
	}
	if final.MessageID == "" {
		return nil, fmt.Errorf("%w: stream ended without a response", core.ErrUpstreamUnavailable)
	}

	messages, err := e.chat.ListMessages(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}
	for _, msg := range messages {
		if msg.ID == final.MessageID {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("%w: message %s", core.ErrNotFound, final.MessageID)
}

// Callback is an out-of-band completion pushed by an A2A backend.
type Callback struct {
	ConversationID string          `json:"conversation_id"`
	MessageID      string          `json:"message_id"`
	Content        string          `json:"content"`
	Subject        string          `json:"subject,omitempty"`
	Citations      []core.Citation `json:"citations,omitempty"`
	Success        bool            `json:"success"`
}

// HandleCallback feeds a backend callback into health tracking and, for
// successful completions, appends the assistant message. Appending is
// idempotent by message ID, so webhook replays are safe.
func (e *Engine) HandleCallback(ctx context.Context, serverID string, cb Callback) (bool, error) {
	e.directory.ReportOutcome(serverID, cb.Success)

	if !cb.Success || cb.Content == "" {
		return false, nil
	}
	if cb.MessageID == "" || cb.ConversationID == "" {
		return false, fmt.Errorf("%w: callback requires message and conversation IDs", core.ErrValidation)
	}

	msg := &core.Message{
		ID:             cb.MessageID,
		ConversationID: cb.ConversationID,
		Role:           core.RoleAssistant,
		Content:        cb.Content,
		RoutedTo:       serverID,
		Subject:        cb.Subject,
		Citations:      cb.Citations,
		CreatedAt:      time.Now().UTC(),
	}
	appended, err := e.chat.AppendMessage(ctx, msg)
	if err != nil {
		return false, err
	}
	if !appended {
		e.logger.Info("callback replay ignored", "message", cb.MessageID)
	}
	return appended, nil
}

// Abort cancels an in-flight stream. It reports whether the run was known
// and still active.
func (e *Engine) Abort(runID string) bool {
	e.mu.Lock()
	cancel, ok := e.activeRuns[runID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// releaseRun cancels the run context and forgets the run.
func (e *Engine) releaseRun(runID string) {
	e.mu.Lock()
	cancel, ok := e.activeRuns[runID]
	delete(e.activeRuns, runID)
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// open connects to the resolved server, re-routing once to the policy
// default when the primary is unreachable. A dial the primary answered
// with an error status is not re-routed: the server is up and said no.
func (e *Engine) open(ctx context.Context, subject string, chatReq ChatRequest) (string, <-chan Fragment, <-chan error, error) {
	serverID, err := e.router.Resolve(subject)
	if err != nil {
		return "", nil, nil, err
	}

	fragments, errs, err := e.dial(ctx, serverID, chatReq)
	if err == nil {
		return serverID, fragments, errs, nil
	}
	e.directory.ReportOutcome(serverID, false)
	e.logger.Warn("upstream refused stream", "server", serverID, "err", err)

	if errors.Is(err, ErrUpstreamRejected) {
		return "", nil, nil, fmt.Errorf("%w: %v", core.ErrUpstreamUnavailable, err)
	}

	fallback := e.router.Default()
	if fallback == "" || fallback == serverID {
		return "", nil, nil, fmt.Errorf("%w: %v", core.ErrUpstreamUnavailable, err)
	}

	fragments, errs, err = e.dial(ctx, fallback, chatReq)
	if err != nil {
		e.directory.ReportOutcome(fallback, false)
		return "", nil, nil, fmt.Errorf("%w: %v", core.ErrUpstreamUnavailable, err)
	}
	e.logger.Info("re-routed to default server", "server", fallback, "subject", subject)
	return fallback, fragments, errs, nil
}

func (e *Engine) dial(ctx context.Context, serverID string, chatReq ChatRequest) (<-chan Fragment, <-chan error, error) {
	server, err := e.directory.Get(ctx, serverID)
	if err != nil {
		return nil, nil, err
	}
	return e.client.Stream(ctx, server.Endpoint, chatReq)
}

// pump forwards upstream fragments to the client channel and persists the
// assistant message once the stream finishes cleanly.
func (e *Engine) pump(ctx context.Context, runID, conversationID, subject, serverID string, fragments <-chan Fragment, errs <-chan error, out chan<- Fragment) {
	defer close(out)
	defer e.releaseRun(runID)

	var (
		parts     []string
		citations []core.Citation
		finished  bool
	)

	for fragment := range fragments {
		if fragment.Delta != "" {
			parts = append(parts, fragment.Delta)
		}
		if len(fragment.Citations) > 0 {
			citations = append(citations, fragment.Citations...)
		}
		if fragment.Finish {
			finished = true
			break
		}

		fragment.RunID = runID
		fragment.RoutedTo = serverID
		fragment.Subject = subject
		select {
		case out <- fragment:
		case <-ctx.Done():
		}
	}

	if ctx.Err() != nil {
		// Client went away; drop the partial response.
		e.logger.Info("stream aborted", "conversation", conversationID, "server", serverID)
		return
	}

	if !finished {
		var cause error
		select {
		case cause = <-errs:
		default:
			cause = errors.New("upstream closed stream early")
		}
		e.directory.ReportOutcome(serverID, false)
		e.logger.Warn("stream broke mid-flight", "conversation", conversationID, "server", serverID, "err", cause)
		out <- Fragment{RunID: runID, Error: cause.Error(), Finish: true, RoutedTo: serverID, Subject: subject}
		return
	}

	e.directory.ReportOutcome(serverID, true)

	msg := &core.Message{
		ID:             core.NewID(),
		ConversationID: conversationID,
		Role:           core.RoleAssistant,
		Content:        strings.Join(parts, ""),
		RoutedTo:       serverID,
		Subject:        subject,
		Citations:      citations,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := e.chat.AppendMessage(context.Background(), msg); err != nil {
		e.logger.Error("failed to persist assistant message", "conversation", conversationID, "err", err)
		out <- Fragment{RunID: runID, Error: "failed to persist response", Finish: true, RoutedTo: serverID, Subject: subject}
		return
	}

	out <- Fragment{
		RunID:     runID,
		Finish:    true,
		RoutedTo:  serverID,
		Subject:   subject,
		MessageID: msg.ID,
		Citations: citations,
	}
}
