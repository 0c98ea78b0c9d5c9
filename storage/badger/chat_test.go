package badger

import (
	"context"
	"testing"
	"time"

	"github.com/collazomanuel/cetec-asistente-backend/core"
)

func TestMessageAppendAndList(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	conv := &core.Conversation{ID: core.NewID(), SubjectID: "math-2", Title: "Derivadas"}
	if err := repos.Chat.AddConversation(ctx, conv); err != nil {
		t.Fatalf("Failed to add conversation: %v", err)
	}

	now := time.Now().UTC()
	msgs := []*core.Message{
		{ID: core.NewID(), ConversationID: conv.ID, Role: core.RoleUser, Content: "que es una derivada?", CreatedAt: now},
		{ID: core.NewID(), ConversationID: conv.ID, Role: core.RoleAssistant, Content: "La derivada mide...", RoutedTo: "srv-a", Subject: "math-2", CreatedAt: now.Add(2 * time.Second)},
	}
	for _, m := range msgs {
		appended, err := repos.Chat.AppendMessage(ctx, m)
		if err != nil {
			t.Fatalf("Failed to append message: %v", err)
		}
		if !appended {
			t.Fatal("Expected first append to take effect")
		}
	}

	history, err := repos.Chat.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("Failed to list messages: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(history))
	}
	if history[0].Role != core.RoleUser || history[1].Role != core.RoleAssistant {
		t.Fatal("Expected chronological order")
	}
}

func TestListMessagesLimitKeepsNewest(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()
	convID := core.NewID()

	now := time.Now().UTC()
	contents := []string{"uno", "dos", "tres", "cuatro", "cinco"}
	for i, content := range contents {
		msg := &core.Message{
			ID:             core.NewID(),
			ConversationID: convID,
			Role:           core.RoleUser,
			Content:        content,
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		}
		if _, err := repos.Chat.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("Failed to append message %d: %v", i, err)
		}
	}

	history, err := repos.Chat.ListMessages(ctx, convID, 2)
	if err != nil {
		t.Fatalf("Failed to list messages: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(history))
	}
	if history[0].Content != "cuatro" || history[1].Content != "cinco" {
		t.Fatalf("Limit must keep the newest messages oldest first, got %q then %q",
			history[0].Content, history[1].Content)
	}

	full, err := repos.Chat.ListMessages(ctx, convID, 0)
	if err != nil {
		t.Fatalf("Failed to list full history: %v", err)
	}
	if len(full) != len(contents) || full[0].Content != "uno" {
		t.Fatalf("Unlimited list must stay chronological from the start, got %d messages", len(full))
	}
}

func TestMessageAppendIdempotent(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	msg := &core.Message{
		ID:             core.NewID(),
		ConversationID: core.NewID(),
		Role:           core.RoleAssistant,
		Content:        "respuesta",
		CreatedAt:      time.Now().UTC(),
	}

	appended, err := repos.Chat.AppendMessage(ctx, msg)
	if err != nil || !appended {
		t.Fatalf("Expected first append to succeed, appended=%v err=%v", appended, err)
	}

	appended, err = repos.Chat.AppendMessage(ctx, msg)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if appended {
		t.Fatal("Expected replay to be a no-op")
	}

	history, err := repos.Chat.ListMessages(ctx, msg.ConversationID, 0)
	if err != nil {
		t.Fatalf("Failed to list messages: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(history))
	}
}
