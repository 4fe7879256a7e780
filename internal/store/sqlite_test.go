package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aimbrill/supportchat/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return repo
}

func TestCreateOrTouchSession(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	sess, err := repo.CreateOrTouchSession(ctx, "sess-1", &domain.OriginMetadata{
		IPAddress: "10.0.0.1",
		UserAgent: "widget/1.0",
	})
	if err != nil {
		t.Fatalf("CreateOrTouchSession failed: %v", err)
	}
	if sess.SessionKey != "sess-1" {
		t.Errorf("Expected session key sess-1, got %q", sess.SessionKey)
	}
	if sess.IPAddress != "10.0.0.1" || sess.UserAgent != "widget/1.0" {
		t.Errorf("Origin metadata not stored: %+v", sess)
	}
	if sess.HandedOff {
		t.Error("Expected new session to start assistant-eligible")
	}

	// A second call with different origin metadata is a touch, not an
	// overwrite.
	again, err := repo.CreateOrTouchSession(ctx, "sess-1", &domain.OriginMetadata{
		IPAddress: "192.168.1.1",
		UserAgent: "other/2.0",
	})
	if err != nil {
		t.Fatalf("Second CreateOrTouchSession failed: %v", err)
	}
	if again.IPAddress != "10.0.0.1" || again.UserAgent != "widget/1.0" {
		t.Errorf("Touch overwrote origin metadata: %+v", again)
	}
}

func TestCreateOrTouchSessionConcurrent(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateOrTouchSession(ctx, "sess-race", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent upsert failed: %v", err)
		}
	}

	summaries, err := repo.ListSessionSummaries(ctx)
	if err != nil {
		t.Fatalf("ListSessionSummaries failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("Expected exactly 1 session row, got %d", len(summaries))
	}
}

func TestTouchPreservesHandedOff(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if _, err := repo.CreateOrTouchSession(ctx, "sess-1", nil); err != nil {
		t.Fatalf("CreateOrTouchSession failed: %v", err)
	}
	if err := repo.SetHandedOff(ctx, "sess-1"); err != nil {
		t.Fatalf("SetHandedOff failed: %v", err)
	}

	sess, err := repo.CreateOrTouchSession(ctx, "sess-1", nil)
	if err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	if !sess.HandedOff {
		t.Error("Expected touch to preserve handed_off flag")
	}
}

func TestSetHandedOff(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.SetHandedOff(ctx, "missing"); err == nil {
		t.Error("Expected error for unknown session")
	}

	if _, err := repo.CreateOrTouchSession(ctx, "sess-1", nil); err != nil {
		t.Fatalf("CreateOrTouchSession failed: %v", err)
	}

	// Idempotent.
	for i := 0; i < 2; i++ {
		if err := repo.SetHandedOff(ctx, "sess-1"); err != nil {
			t.Fatalf("SetHandedOff attempt %d failed: %v", i, err)
		}
	}

	sess, err := repo.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !sess.HandedOff {
		t.Error("Expected handed_off to be set")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	repo := newTestStore(t)

	sess, err := repo.GetSession(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess != nil {
		t.Errorf("Expected nil for unknown session, got %+v", sess)
	}
}

func TestAppendAndListMessages(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if _, err := repo.CreateOrTouchSession(ctx, "sess-1", nil); err != nil {
		t.Fatalf("CreateOrTouchSession failed: %v", err)
	}

	base := time.Now()
	bodies := []string{"first", "second", "third"}
	for i, body := range bodies {
		msg := &domain.Message{
			SessionKey: "sess-1",
			Sender:     domain.SenderVisitor,
			Body:       body,
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		if msg.ID == "" {
			t.Error("Expected AppendMessage to assign an ID")
		}
	}

	msgs, err := repo.ListMessages(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	for i, body := range bodies {
		if msgs[i].Body != body {
			t.Errorf("Message %d: expected %q, got %q", i, body, msgs[i].Body)
		}
	}
}

func TestListMessagesTimestampTieBreak(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if _, err := repo.CreateOrTouchSession(ctx, "sess-1", nil); err != nil {
		t.Fatalf("CreateOrTouchSession failed: %v", err)
	}

	ts := time.Now()
	for _, body := range []string{"earlier insert", "later insert"} {
		err := repo.AppendMessage(ctx, &domain.Message{
			SessionKey: "sess-1",
			Sender:     domain.SenderVisitor,
			Body:       body,
			Timestamp:  ts,
		})
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	msgs, err := repo.ListMessages(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Body != "earlier insert" || msgs[1].Body != "later insert" {
		t.Errorf("Equal timestamps should preserve insertion order, got %q then %q",
			msgs[0].Body, msgs[1].Body)
	}
}

func TestAppendMessageWithoutSession(t *testing.T) {
	repo := newTestStore(t)

	err := repo.AppendMessage(context.Background(), &domain.Message{
		SessionKey: "missing",
		Sender:     domain.SenderVisitor,
		Body:       "orphan",
		Timestamp:  time.Now(),
	})
	if err == nil {
		t.Error("Expected foreign key error for unknown session")
	}
}

func TestListRecentMessages(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if _, err := repo.CreateOrTouchSession(ctx, "sess-1", nil); err != nil {
		t.Fatalf("CreateOrTouchSession failed: %v", err)
	}

	base := time.Now()
	for i := 0; i < 15; i++ {
		err := repo.AppendMessage(ctx, &domain.Message{
			SessionKey: "sess-1",
			Sender:     domain.SenderVisitor,
			Body:       "msg",
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	msgs, err := repo.ListRecentMessages(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("ListRecentMessages failed: %v", err)
	}
	if len(msgs) != 10 {
		t.Fatalf("Expected 10 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Errorf("Expected chronological order, message %d out of order", i)
		}
	}
	// The window keeps the newest messages.
	want := base.Add(5 * time.Second)
	if !msgs[0].Timestamp.Equal(time.UnixMilli(want.UnixMilli())) {
		t.Errorf("Expected window to start at the 6th message, got %v", msgs[0].Timestamp)
	}
}

func TestMarkMessageRead(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if _, err := repo.CreateOrTouchSession(ctx, "sess-1", nil); err != nil {
		t.Fatalf("CreateOrTouchSession failed: %v", err)
	}
	msg := &domain.Message{
		SessionKey: "sess-1",
		Sender:     domain.SenderVisitor,
		Body:       "hi",
		Timestamp:  time.Now(),
	}
	if err := repo.AppendMessage(ctx, msg); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	updated, err := repo.MarkMessageRead(ctx, msg.ID)
	if err != nil {
		t.Fatalf("MarkMessageRead failed: %v", err)
	}
	if updated == nil || !updated.IsRead {
		t.Errorf("Expected message to be marked read, got %+v", updated)
	}

	none, err := repo.MarkMessageRead(ctx, "unknown-id")
	if err != nil {
		t.Fatalf("MarkMessageRead for unknown id failed: %v", err)
	}
	if none != nil {
		t.Errorf("Expected nil for unknown message, got %+v", none)
	}
}

func TestAssistantConfigDefaults(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	cfg, err := repo.AssistantConfig(ctx)
	if err != nil {
		t.Fatalf("AssistantConfig failed: %v", err)
	}
	if cfg.Enabled {
		t.Error("Expected assistant to default to disabled")
	}
	if cfg.Provider != domain.ProviderOpenRouter {
		t.Errorf("Expected default provider openrouter, got %q", cfg.Provider)
	}
	if cfg.Temperature != 0.7 || cfg.MaxTokens != 500 {
		t.Errorf("Unexpected default tuning: temp=%v maxTokens=%d", cfg.Temperature, cfg.MaxTokens)
	}
}

func TestUpdateAssistantConfigPartial(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	enabled := true
	model := "gpt-4o-mini"
	cfg, err := repo.UpdateAssistantConfig(ctx, domain.AssistantConfigUpdate{
		Enabled: &enabled,
		Model:   &model,
	})
	if err != nil {
		t.Fatalf("UpdateAssistantConfig failed: %v", err)
	}
	if !cfg.Enabled || cfg.Model != "gpt-4o-mini" {
		t.Errorf("Update not applied: %+v", cfg)
	}
	// Untouched fields keep their values.
	if cfg.Provider != domain.ProviderOpenRouter || cfg.Temperature != 0.7 {
		t.Errorf("Partial update clobbered other fields: %+v", cfg)
	}

	reread, err := repo.AssistantConfig(ctx)
	if err != nil {
		t.Fatalf("AssistantConfig failed: %v", err)
	}
	if !reread.Enabled || reread.Model != "gpt-4o-mini" {
		t.Errorf("Update not persisted: %+v", reread)
	}
}

func TestListSessionSummaries(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"sess-a", "sess-b"} {
		if _, err := repo.CreateOrTouchSession(ctx, key, nil); err != nil {
			t.Fatalf("CreateOrTouchSession failed: %v", err)
		}
	}

	base := time.Now()
	for i, body := range []string{"old", "latest"} {
		err := repo.AppendMessage(ctx, &domain.Message{
			SessionKey: "sess-a",
			Sender:     domain.SenderVisitor,
			Body:       body,
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	summaries, err := repo.ListSessionSummaries(ctx)
	if err != nil {
		t.Fatalf("ListSessionSummaries failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}

	byKey := make(map[string]*domain.SessionSummary)
	for _, sum := range summaries {
		byKey[sum.SessionKey] = sum
	}
	a, ok := byKey["sess-a"]
	if !ok || a.LastMessage == nil {
		t.Fatal("Expected summary with last message for sess-a")
	}
	if a.LastMessage.Body != "latest" {
		t.Errorf("Expected latest message, got %q", a.LastMessage.Body)
	}
	b, ok := byKey["sess-b"]
	if !ok {
		t.Fatal("Expected summary for sess-b")
	}
	if b.LastMessage != nil {
		t.Errorf("Expected no last message for empty session, got %+v", b.LastMessage)
	}
}
